package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ironsheep/image-analyzer/internal/analyzer"
	"github.com/ironsheep/image-analyzer/internal/app"
	"github.com/ironsheep/image-analyzer/internal/config"
	"github.com/ironsheep/image-analyzer/internal/imaging"
	"github.com/ironsheep/image-analyzer/internal/registry"
	"github.com/ironsheep/image-analyzer/internal/results"
	"github.com/ironsheep/image-analyzer/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("image-analyzer - classify text regions of images")
	fmt.Println()
	fmt.Println("Usage: image-analyzer [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                     Run the MCP server on stdin/stdout (default)")
	fmt.Println("  analyze [options] PATH... Analyze image files or folders")
	fmt.Println("  models                    List registered models")
	fmt.Println("  config                    Print the effective configuration")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Run 'image-analyzer COMMAND -h' for command options.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  IMAGE_ANALYZER_CONFIG=PATH        Configuration file")
	fmt.Println("  IMAGE_ANALYZER_LOG_LEVEL=debug    Enable debug logging")
}

func main() {
	command := "serve"
	args := os.Args[1:]

	// Handle --version and -v flags
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("image-analyzer %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
		if !strings.HasPrefix(args[0], "-") {
			command, args = args[0], args[1:]
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol and reports)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("IMAGE_ANALYZER_LOG_LEVEL") == "debug" {
		log.Printf("Image Analyzer v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	var err error
	switch command {
	case "serve":
		err = runServe(args)
	case "analyze":
		err = runAnalyze(args)
	case "models":
		err = runModels(args)
	case "config":
		err = runConfig(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadApp parses the shared -config flag and builds the pipeline.
func loadApp(fs *flag.FlagSet, args []string) (*app.App, error) {
	configPath := fs.String("config", "", "configuration file (default $IMAGE_ANALYZER_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		return nil, err
	}
	return app.Build(cfg)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	a, err := loadApp(fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	server.Version = Version
	srv := a.Server()
	defer srv.Close()
	return srv.Run()
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	modelName := fs.String("model", registry.DefaultName, "registered model to classify with")
	outDir := fs.String("out", "", "export a results bundle under this directory")
	bundle := fs.String("name", "results", "bundle folder name, with -out")
	overwrite := fs.Bool("overwrite", false, "write into an existing bundle folder")

	a, err := loadApp(fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	paths, err := expandPaths(fs.Args())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images given")
	}

	session, err := a.Analyzer.SetModel(*modelName)
	if err != nil {
		return err
	}
	defer session.Close()

	images := make([]*imaging.Image, 0, len(paths))
	for _, p := range paths {
		img, err := a.Cache.Load(p)
		if err != nil {
			log.Printf("Skipping %s: %v", p, err)
			continue
		}
		images = append(images, img)
	}

	items, err := a.Analyzer.Batch(session, images, func(done, total int, item analyzer.BatchItem) {
		log.Printf("Analyzed %d/%d: %s", done, total, item.Path)
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			log.Printf("Error analyzing %s: %v", item.Path, item.Err)
			failed++
			continue
		}
		a.Store.Put(item.Path, item.Result)
		if err := results.WriteReport(os.Stdout, item.Result); err != nil {
			return err
		}
		fmt.Println()
	}

	if *outDir != "" && a.Store.Len() > 0 {
		if _, err := a.Store.Export(*outDir, *bundle, results.ExportOptions{
			Overwrite: *overwrite,
			Style:     a.Style,
			Images:    a.Cache,
		}); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(items))
	}
	return nil
}

// expandPaths replaces folders by the supported images they contain.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := imaging.ListImages(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func runModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	a, err := loadApp(fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tLABELS")
	for _, d := range a.Registry.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Path, strings.Join(d.Labels, ", "))
	}
	return w.Flush()
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file (default $IMAGE_ANALYZER_CONFIG)")
	out := fs.String("write", "", "write the configuration to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		return err
	}
	if *out != "" {
		return config.Write(cfg, *out)
	}
	return config.Encode(os.Stdout, cfg)
}

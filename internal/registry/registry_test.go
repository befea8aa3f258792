package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// createModelFile writes a placeholder model file and returns its path.
func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("onnx"), 0644); err != nil {
		t.Fatalf("failed to write model file: %v", err)
	}
	return path
}

// createClassesFile writes a classes JSON file and returns its path.
func createClassesFile(t *testing.T, dir string, classes map[string][]string) string {
	t.Helper()
	data, err := json.Marshal(classes)
	if err != nil {
		t.Fatalf("failed to encode classes: %v", err)
	}
	path := filepath.Join(dir, "class_names.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write classes file: %v", err)
	}
	return path
}

func readStore(t *testing.T, path string) map[string]map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}
	var out map[string]map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse store: %v", err)
	}
	return out
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "store", "custom_models.json")), dir
}

func TestLoadDefault(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "Default.onnx")
	classes := createClassesFile(t, dir, map[string][]string{"default": {"a", "b", "c"}})

	if err := r.LoadDefault(model, classes); err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}

	d, ok := r.Get(DefaultName)
	if !ok {
		t.Fatal("Default not registered")
	}
	if d.Path != model || !reflect.DeepEqual(d.Labels, []string{"a", "b", "c"}) {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestLoadDefault_Errors(t *testing.T) {
	dir := t.TempDir()
	model := createModelFile(t, dir, "Default.onnx")
	good := createClassesFile(t, dir, map[string][]string{"default": {"a"}})

	noKey := filepath.Join(dir, "nokey.json")
	os.WriteFile(noKey, []byte(`{"other": ["x"]}`), 0644)
	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte(`{not json`), 0644)

	tests := []struct {
		name    string
		model   string
		classes string
		is      error
	}{
		{"missing model", filepath.Join(dir, "nope.onnx"), good, ErrModelFileMissing},
		{"missing classes", model, filepath.Join(dir, "nope.json"), os.ErrNotExist},
		{"no default key", model, noKey, ErrConfiguration},
		{"unparsable classes", model, broken, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("")
			err := r.LoadDefault(tt.model, tt.classes)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
			if _, ok := r.Get(DefaultName); ok {
				t.Error("Default registered despite failure")
			}
			if len(r.Names()) != 0 {
				t.Errorf("registry not empty: %v", r.Names())
			}
		})
	}
}

func TestAdd(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "digits.onnx")

	if err := r.Add("digits", model, []string{"0", "1"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	d, ok := r.Get("digits")
	if !ok || d.Path != model || !reflect.DeepEqual(d.Labels, []string{"0", "1"}) {
		t.Fatalf("unexpected descriptor: %+v (ok=%v)", d, ok)
	}

	store := readStore(t, r.StoreFile())
	entry, ok := store["digits"]
	if !ok {
		t.Fatalf("store missing digits: %v", store)
	}
	if entry["path"] != model {
		t.Errorf("stored path: got %v, want %s", entry["path"], model)
	}
}

func TestAdd_Rejections(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "m.onnx")

	tests := []struct {
		name   string
		model  string
		path   string
		labels []string
		is     error
	}{
		{"reserved", DefaultName, model, []string{"a"}, ErrReservedName},
		{"missing file", "x", filepath.Join(dir, "missing.onnx"), []string{"a"}, ErrModelFileMissing},
		{"directory", "x", dir, []string{"a"}, ErrModelFileMissing},
		{"no labels", "x", model, nil, ErrNoLabels},
		{"empty name", "", model, []string{"a"}, ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Add(tt.model, tt.path, tt.labels); !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
			if len(r.Names()) != 0 {
				t.Errorf("registry changed: %v", r.Names())
			}
		})
	}

	if _, err := os.Stat(r.StoreFile()); !os.IsNotExist(err) {
		t.Error("rejected adds should not write the store")
	}
}

func TestAdd_ReservedKeepsDefault(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "Default.onnx")
	other := createModelFile(t, dir, "other.onnx")
	classes := createClassesFile(t, dir, map[string][]string{"default": {"a"}})
	if err := r.LoadDefault(model, classes); err != nil {
		t.Fatal(err)
	}

	if err := r.Add(DefaultName, other, []string{"z"}); !errors.Is(err, ErrReservedName) {
		t.Fatalf("expected ErrReservedName, got %v", err)
	}

	d, _ := r.Get(DefaultName)
	if d.Path != model {
		t.Errorf("Default was overwritten: %+v", d)
	}
}

func TestAdd_OverwriteKeepsPosition(t *testing.T) {
	r, dir := newTestRegistry(t)
	a := createModelFile(t, dir, "a.onnx")
	b := createModelFile(t, dir, "b.onnx")

	r.Add("first", a, []string{"x"})
	r.Add("second", b, []string{"y"})
	if err := r.Add("first", b, []string{"z"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if got := r.Names(); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Errorf("Names: got %v", got)
	}
	d, _ := r.Get("first")
	if d.Path != b || d.Labels[0] != "z" {
		t.Errorf("descriptor not replaced: %+v", d)
	}
}

func TestAddFromClassesFile(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "digits.onnx")
	classes := createClassesFile(t, dir, map[string][]string{"default": {"a"}, "digits": {"0", "1", "2"}})

	if err := r.AddFromClassesFile("digits", model, classes); err != nil {
		t.Fatalf("AddFromClassesFile failed: %v", err)
	}
	d, _ := r.Get("digits")
	if len(d.Labels) != 3 {
		t.Errorf("labels: got %v", d.Labels)
	}

	if err := r.AddFromClassesFile("shapes", model, classes); !errors.Is(err, ErrNoLabels) {
		t.Errorf("expected ErrNoLabels for a name without labels, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "m.onnx")
	r.Add("one", model, []string{"a"})
	r.Add("two", model, []string{"b"})

	if err := r.Remove("one"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := r.Get("one"); ok {
		t.Error("model still registered after Remove")
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"two"}) {
		t.Errorf("Names: got %v", got)
	}

	store := readStore(t, r.StoreFile())
	if _, ok := store["one"]; ok {
		t.Error("removed model still persisted")
	}
	if _, ok := store["two"]; !ok {
		t.Error("remaining model not persisted")
	}
}

func TestRemove_Rejections(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "Default.onnx")
	classes := createClassesFile(t, dir, map[string][]string{"default": {"a"}})
	r.LoadDefault(model, classes)

	if err := r.Remove(DefaultName); !errors.Is(err, ErrReservedName) {
		t.Errorf("expected ErrReservedName, got %v", err)
	}
	if err := r.Remove("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{DefaultName}) {
		t.Errorf("registry changed: %v", got)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "custom_models.json")
	model := createModelFile(t, dir, "m.onnx")
	defModel := createModelFile(t, dir, "Default.onnx")
	classes := createClassesFile(t, dir, map[string][]string{"default": {"d"}})

	r := New(store)
	r.LoadDefault(defModel, classes)
	r.Add("zeta", model, []string{"z1", "z2"})
	r.Add("alpha", model, []string{"a1"})

	raw, err := os.ReadFile(store)
	if err != nil {
		t.Fatalf("store not written: %v", err)
	}
	if strings.Contains(string(raw), DefaultName) {
		t.Errorf("store must never contain the built-in model:\n%s", raw)
	}

	reloaded := New(store)
	reloaded.LoadDefault(defModel, classes)

	// Persisted models come back in sorted order after Default.
	want := []string{DefaultName, "alpha", "zeta"}
	if got := reloaded.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names: got %v, want %v", got, want)
	}
	d, _ := reloaded.Get("zeta")
	if !reflect.DeepEqual(d.Labels, []string{"z1", "z2"}) {
		t.Errorf("labels not restored: %v", d.Labels)
	}
}

func TestLoadStore_LegacyClassesKey(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "custom_models.json")
	legacy := `{"old": {"path": "/models/old.onnx", "classes": ["x", "y"]}, "Default": {"path": "/d.onnx", "classes": ["d"]}}`
	if err := os.WriteFile(store, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(store)
	d, ok := r.Get("old")
	if !ok || !reflect.DeepEqual(d.Labels, []string{"x", "y"}) {
		t.Errorf("legacy entry not loaded: %+v", d)
	}
	if _, ok := r.Get(DefaultName); ok {
		t.Error("a persisted Default entry must be ignored")
	}
}

func TestLoadStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "custom_models.json")
	os.WriteFile(store, []byte("garbage"), 0644)

	r := New(store)
	if len(r.Names()) != 0 {
		t.Errorf("corrupt store should load nothing, got %v", r.Names())
	}

	// The registry keeps working and overwrites the corrupt file.
	model := createModelFile(t, dir, "m.onnx")
	if err := r.Add("fresh", model, []string{"a"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := readStore(t, store)["fresh"]; !ok {
		t.Error("store not rewritten")
	}
}

func TestSave_FailureIsNotReturnedByAdd(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	os.WriteFile(blocker, []byte("file"), 0644)

	// The store's parent is a regular file, so every save fails.
	r := New(filepath.Join(blocker, "custom_models.json"))
	model := createModelFile(t, dir, "m.onnx")

	if err := r.Add("m", model, []string{"a"}); err != nil {
		t.Fatalf("Add should succeed even when saving fails: %v", err)
	}
	if _, ok := r.Get("m"); !ok {
		t.Error("model not registered")
	}
	if err := r.Save(); err == nil {
		t.Error("Save should report the failure")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "m.onnx")
	labels := []string{"a", "b"}
	r.Add("m", model, labels)

	labels[0] = "mutated"
	d, _ := r.Get("m")
	d.Labels[1] = "mutated"

	again, _ := r.Get("m")
	if !reflect.DeepEqual(again.Labels, []string{"a", "b"}) {
		t.Errorf("registry state leaked: %v", again.Labels)
	}
}

func TestList(t *testing.T) {
	r, dir := newTestRegistry(t)
	model := createModelFile(t, dir, "m.onnx")
	r.Add("b", model, []string{"1"})
	r.Add("a", model, []string{"2"})

	list := r.List()
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
		t.Errorf("List: got %+v", list)
	}
}

func TestInMemoryRegistry(t *testing.T) {
	dir := t.TempDir()
	r := New("")
	model := createModelFile(t, dir, "m.onnx")

	if err := r.Add("m", model, []string{"a"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Save(); err != nil {
		t.Errorf("Save on in-memory registry: %v", err)
	}
}

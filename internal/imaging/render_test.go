package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestRender_DrawsBoxOutline(t *testing.T) {
	img := solidImage(100, 100, color.White)
	style := DefaultStyle()

	out := Render(img, []BoundingBox{NewBox(20, 30, 60, 70)}, style)

	// Corners and edges carry the box color.
	for _, p := range []image.Point{{20, 30}, {60, 30}, {20, 70}, {60, 70}, {40, 30}, {20, 50}} {
		if got := out.RGBAAt(p.X, p.Y); got != style.BoxColor {
			t.Errorf("pixel %v: got %v, want box color", p, got)
		}
	}

	// Interior is untouched.
	if got := out.RGBAAt(40, 50); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("interior pixel: got %v, want white", got)
	}
}

func TestRender_DoesNotMutateInput(t *testing.T) {
	img := solidImage(50, 50, color.White)

	_ = Render(img, []BoundingBox{NewBox(5, 5, 40, 40)}, DefaultStyle())

	if got := img.RGBAAt(5, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("input was modified: pixel (5,5) = %v", got)
	}
}

func TestRender_DrawsCaption(t *testing.T) {
	img := solidImage(120, 80, color.White)
	style := DefaultStyle()

	out := Render(img, []BoundingBox{NewBox(10, 40, 100, 70)}, style)

	// Caption baseline sits 10px above the box; look for label pixels there.
	found := false
	for y := 20; y < 31 && !found; y++ {
		for x := 10; x < 60; x++ {
			if out.RGBAAt(x, y) == style.LabelColor {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no caption pixels found above the box")
	}
}

func TestRender_InvalidBoxesDoNotPanic(t *testing.T) {
	img := solidImage(40, 40, color.White)
	boxes := []BoundingBox{
		NewBox(-100, -100, -50, -50),
		NewBox(1000, 1000, 2000, 2000),
		NewBox(30, 30, 10, 10),
		NewBox(-10, -10, 1<<20, 1<<20),
		NewBox(0, 0, 0, 0),
	}

	out := Render(img, boxes, DefaultStyle())
	if out.Bounds() != img.Bounds() {
		t.Errorf("bounds changed: got %v, want %v", out.Bounds(), img.Bounds())
	}
}

func TestRender_SkipsInvertedBox(t *testing.T) {
	img := solidImage(40, 40, color.White)
	out := Render(img, []BoundingBox{NewBox(30, 30, 10, 10)}, DefaultStyle())

	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if out.RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				t.Fatalf("inverted box drew pixel at (%d,%d)", x, y)
			}
		}
	}
}

func TestRenderPredictions_UsesOrdinals(t *testing.T) {
	img := solidImage(200, 100, color.White)
	style := DefaultStyle()
	boxes := []BoundingBox{NewBox(10, 40, 60, 60), NewBox(100, 40, 190, 60)}

	plain := Render(img, boxes, style)
	labelled := RenderPredictions(img, boxes, map[int]string{2: "cat"}, style)

	// Box 1 has no label, so its caption area is identical in both renders.
	for y := 20; y < 31; y++ {
		for x := 10; x < 95; x++ {
			if plain.RGBAAt(x, y) != labelled.RGBAAt(x, y) {
				t.Fatalf("box 1 caption differs at (%d,%d)", x, y)
			}
		}
	}

	// Box 2 carries the longer "Box 2: cat" caption.
	differs := false
	for y := 20; y < 31 && !differs; y++ {
		for x := 100; x < 200; x++ {
			if plain.RGBAAt(x, y) != labelled.RGBAAt(x, y) {
				differs = true
				break
			}
		}
	}
	if !differs {
		t.Error("box 2 caption should include its label")
	}
}

func TestParseStyle(t *testing.T) {
	style, err := ParseStyle("#ff0000", "", 3)
	if err != nil {
		t.Fatalf("ParseStyle failed: %v", err)
	}
	if style.BoxColor != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("BoxColor: got %v", style.BoxColor)
	}
	if style.LabelColor != DefaultStyle().LabelColor {
		t.Errorf("LabelColor should keep the default, got %v", style.LabelColor)
	}
	if style.Thickness != 3 {
		t.Errorf("Thickness: got %d, want 3", style.Thickness)
	}

	for _, bad := range []string{"red", "#12", "#gggggg"} {
		if _, err := ParseStyle(bad, "", 0); err == nil {
			t.Errorf("ParseStyle(%q) should fail", bad)
		}
	}
}

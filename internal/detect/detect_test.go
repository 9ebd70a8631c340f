package detect

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestNormalizeInputSize(t *testing.T) {
	testCases := []struct {
		name string
		hint int
		want int
	}{
		{"zero falls back to default", 0, defaultInputSize},
		{"negative falls back to default", -5, defaultInputSize},
		{"already multiple of 32", 1024, 1024},
		{"rounded down", 1050, 1024},
		{"typical page height", 1650, 1632},
		{"tiny hint clamped", 10, 32},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeInputSize(tc.hint); got != tc.want {
				t.Errorf("normalizeInputSize(%d) = %d, want %d", tc.hint, got, tc.want)
			}
		})
	}
}

func TestLetterboxGeometry(t *testing.T) {
	// Wide 200x100 image into a 64x64 canvas: scale 0.32, vertical padding.
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	canvas, tf := letterbox(src, 64)

	if got := canvas.Bounds(); got.Dx() != 64 || got.Dy() != 64 {
		t.Fatalf("canvas bounds = %v, want 64x64", got)
	}
	if math.Abs(tf.scale-0.32) > 1e-9 {
		t.Errorf("scale = %v, want 0.32", tf.scale)
	}
	if tf.padX != 0 {
		t.Errorf("padX = %v, want 0", tf.padX)
	}
	if tf.padY != 16 {
		t.Errorf("padY = %v, want 16", tf.padY)
	}

	// The padding band must be the gray fill.
	r, g, b, _ := canvas.At(0, 0).RGBA()
	if r>>8 != 114 || g>>8 != 114 || b>>8 != 114 {
		t.Errorf("padding pixel = (%d,%d,%d), want (114,114,114)", r>>8, g>>8, b>>8)
	}
}

func TestTensorDataLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	data := tensorData(img)
	if len(data) != 3*2*2 {
		t.Fatalf("tensor length = %d, want 12", len(data))
	}

	// CHW layout: red plane first.
	wantR := []float32{1, 0, 0, 1}
	wantG := []float32{0, 1, 0, 1}
	wantB := []float32{0, 0, 1, 1}
	for i := 0; i < 4; i++ {
		if data[i] != wantR[i] {
			t.Errorf("R plane[%d] = %v, want %v", i, data[i], wantR[i])
		}
		if data[4+i] != wantG[i] {
			t.Errorf("G plane[%d] = %v, want %v", i, data[4+i], wantG[i])
		}
		if data[8+i] != wantB[i] {
			t.Errorf("B plane[%d] = %v, want %v", i, data[8+i], wantB[i])
		}
	}
}

func TestDecodeDetections(t *testing.T) {
	// Identity transform: no padding, scale 1.
	tf := letterboxTransform{scale: 1}

	raw := []float32{
		// x0, y0, x1, y1, conf, class
		10, 20, 110, 80, 0.9, 1, // kept
		5, 5, 50, 50, 0.1, 3, // below threshold
		-20, -10, 700, 900, 0.5, 5, // clamped to image bounds
	}

	boxes := decodeDetections(raw, 3, tf, 640, 800)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(boxes))
	}

	first := boxes[0]
	if first.X0 != 10 || first.Y0 != 20 || first.X1 != 110 || first.Y1 != 80 {
		t.Errorf("unexpected first box: %+v", first)
	}
	if first.Class != 1 || first.Confidence != 0.9 {
		t.Errorf("unexpected first class/confidence: %+v", first)
	}

	clamped := boxes[1]
	if clamped.X0 != 0 || clamped.Y0 != 0 || clamped.X1 != 640 || clamped.Y1 != 800 {
		t.Errorf("expected clamped box, got %+v", clamped)
	}
	if clamped.Class != 5 {
		t.Errorf("unexpected clamped class: %d", clamped.Class)
	}
}

func TestDecodeDetectionsScalesBack(t *testing.T) {
	// Letterboxed with scale 0.5 and 16px vertical padding.
	tf := letterboxTransform{scale: 0.5, padY: 16}

	raw := []float32{16, 56, 116, 156, 0.8, 0}
	boxes := decodeDetections(raw, 1, tf, 400, 600)
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	b := boxes[0]
	if b.X0 != 32 || b.X1 != 232 {
		t.Errorf("X scale-back wrong: %+v", b)
	}
	if b.Y0 != 80 || b.Y1 != 280 {
		t.Errorf("Y pad/scale-back wrong: %+v", b)
	}
}

func TestDecodeDetectionsTruncatedOutput(t *testing.T) {
	raw := []float32{10, 10, 20, 20, 0.9, 1, 30, 30} // second row incomplete
	boxes := decodeDetections(raw, 2, letterboxTransform{scale: 1}, 100, 100)
	if len(boxes) != 1 {
		t.Errorf("truncated rows should be ignored, got %d boxes", len(boxes))
	}
}

func TestClassifyRow(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		fontSize float64
		topFrac  float64
		botFrac  float64
		want     int
	}{
		{"body text", "The quick brown fox jumps over the lazy dog.", 10, 0.4, 0.42, classPlainText},
		{"large font is a title", "Introduction", 18, 0.2, 0.23, classTitle},
		{"page header", "Journal of Examples", 9, 0.01, 0.03, classAbandon},
		{"page footer", "17", 9, 0.97, 0.99, classAbandon},
		{"equation row", "∑ xᵢ = ∫ f(x) dx ± ε", 10, 0.5, 0.52, classIsolateFormula},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRow(tc.text, tc.fontSize, tc.topFrac, tc.botFrac)
			if got != tc.want {
				t.Errorf("classifyRow(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestIsFormulaText(t *testing.T) {
	formulas := []string{
		"∫f(x)dx = F(b) − F(a)",
		"α + β ≥ γ",
		"x^2.1 = y_i",
	}
	prose := []string{
		"This sentence has no mathematics in it.",
		"Results are shown in Table 2.",
		"ab", // too short to classify
	}

	for _, s := range formulas {
		if !isFormulaText(s) {
			t.Errorf("expected %q to be classified as formula", s)
		}
	}
	for _, s := range prose {
		if isFormulaText(s) {
			t.Errorf("expected %q to be classified as prose", s)
		}
	}
}

func TestPredictionClassName(t *testing.T) {
	p := Prediction{Classes: DocLayoutClasses}

	if got := p.ClassName(3); got != "figure" {
		t.Errorf("ClassName(3) = %q, want figure", got)
	}
	if got := p.ClassName(-1); got != "" {
		t.Errorf("ClassName(-1) = %q, want empty", got)
	}
	if got := p.ClassName(len(DocLayoutClasses)); got != "" {
		t.Errorf("out-of-range ClassName = %q, want empty", got)
	}
}

func TestDocLayoutClassTable(t *testing.T) {
	// The mask builder's preserve set depends on these exact names.
	wantAt := map[int]string{
		2: "abandon",
		3: "figure",
		5: "table",
		8: "isolate_formula",
		9: "formula_caption",
	}
	for id, name := range wantAt {
		if DocLayoutClasses[id] != name {
			t.Errorf("DocLayoutClasses[%d] = %q, want %q", id, DocLayoutClasses[id], name)
		}
	}
}

func TestHeuristicDetectorRequiresInputs(t *testing.T) {
	d := NewHeuristicDetector()

	if _, err := d.Predict(Request{}); err == nil {
		t.Error("expected error without page image")
	}

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if _, err := d.Predict(Request{Image: img}); err == nil {
		t.Error("expected error without source path")
	}
}

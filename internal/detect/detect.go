// Package detect locates layout regions on rendered PDF pages. The primary
// implementation runs a DocLayout-YOLO ONNX model; a text-layer heuristic
// stands in when no model is available.
package detect

import "image"

// DocLayoutClasses is the class table of the DocLayout-YOLO DocStructBench
// model, indexed by class id.
var DocLayoutClasses = []string{
	"title",
	"plain text",
	"abandon",
	"figure",
	"figure_caption",
	"table",
	"table_caption",
	"table_footnote",
	"isolate_formula",
	"formula_caption",
}

// Box is one detected region, in page-image pixel coordinates with the
// origin at the top-left corner.
type Box struct {
	X0, Y0     float64
	X1, Y1     float64
	Class      int
	Confidence float32
}

// Prediction is the detection result for one page image.
type Prediction struct {
	Boxes []Box
	// Classes maps class ids to names. Detectors using the DocLayout
	// model set it to DocLayoutClasses.
	Classes []string
}

// ClassName returns the name for a class id, or "" when out of range.
func (p Prediction) ClassName(id int) string {
	if id < 0 || id >= len(p.Classes) {
		return ""
	}
	return p.Classes[id]
}

// Request carries everything a detector may need for one page.
// Model-based detectors consume Image and SizeHint; the text-layer
// heuristic works from PDFPath, PageIndex and DPI instead.
type Request struct {
	Image     image.Image
	PDFPath   string
	PageIndex int // zero-based
	DPI       int
	// SizeHint is the model input size, a multiple of 32 derived from the
	// rendered page height.
	SizeHint int
}

// Detector finds layout regions on one page.
type Detector interface {
	Predict(req Request) (Prediction, error)
	Close() error
}

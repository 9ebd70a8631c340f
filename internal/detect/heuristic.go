package detect

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/logger"
)

// DocLayout class ids used by the heuristic classifier.
const (
	classTitle          = 0
	classPlainText      = 1
	classAbandon        = 2
	classIsolateFormula = 8
)

// HeuristicDetector approximates layout regions from the PDF text layer.
// It is used when no ONNX model is configured. Regions it cannot see
// (figures, tables without text rows) are simply not reported, which keeps
// their cells translatable-by-default in the mask.
type HeuristicDetector struct{}

// NewHeuristicDetector creates a text-layer detector.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

// Predict derives one box per text row and classifies it by position,
// font size and symbol content.
func (d *HeuristicDetector) Predict(req Request) (Prediction, error) {
	if req.Image == nil {
		return Prediction{}, fmt.Errorf("no page image supplied")
	}
	if req.PDFPath == "" {
		return Prediction{}, fmt.Errorf("no source path supplied")
	}

	f, r, err := pdf.Open(req.PDFPath)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pageNum := req.PageIndex + 1
	if pageNum < 1 || pageNum > r.NumPage() {
		return Prediction{}, fmt.Errorf("page %d out of range (1-%d)", pageNum, r.NumPage())
	}

	page := r.Page(pageNum)
	if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
		return Prediction{Classes: DocLayoutClasses}, nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to read text rows: %w", err)
	}

	scale := float64(req.DPI) / 72.0
	if scale <= 0 {
		scale = 1
	}
	imgH := float64(req.Image.Bounds().Dy())
	imgW := float64(req.Image.Bounds().Dx())

	var boxes []Box
	for _, row := range rows {
		if len(row.Content) == 0 {
			continue
		}

		var sb strings.Builder
		var minX, maxX, rowY, totalFont float64
		first := true
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			sb.WriteString(t.S)
			if first {
				minX, maxX, rowY = t.X, t.X, t.Y
				first = false
			} else {
				if t.X < minX {
					minX = t.X
				}
				if t.X > maxX {
					maxX = t.X
				}
			}
			totalFont += t.FontSize
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}

		avgFont := totalFont / float64(len(row.Content))
		if avgFont <= 0 {
			avgFont = 10.0
		}

		// Row bounds in image pixels. PDF Y grows upward, image Y
		// downward, so the flip happens here.
		x0 := minX * scale
		x1 := (maxX + avgFont) * scale
		y0 := imgH - (rowY+avgFont)*scale
		y1 := imgH - (rowY-avgFont*0.3)*scale

		boxes = append(boxes, Box{
			X0:         clampF(x0, 0, imgW),
			Y0:         clampF(y0, 0, imgH),
			X1:         clampF(x1, 0, imgW),
			Y1:         clampF(y1, 0, imgH),
			Class:      classifyRow(text, avgFont, y0/imgH, y1/imgH),
			Confidence: 1.0,
		})
	}

	logger.Debug("heuristic detection complete",
		logger.Int("page", req.PageIndex),
		logger.Int("boxes", len(boxes)))

	return Prediction{Boxes: boxes, Classes: DocLayoutClasses}, nil
}

// Close implements Detector. Nothing to release.
func (d *HeuristicDetector) Close() error { return nil }

// classifyRow assigns a DocLayout class to a text row. topFrac and botFrac
// are the row's vertical bounds as fractions of the page height.
func classifyRow(text string, fontSize, topFrac, botFrac float64) int {
	// Page headers and footers sit in narrow bands at the page edges.
	if botFrac <= 0.05 || topFrac >= 0.95 {
		return classAbandon
	}
	if isFormulaText(text) {
		return classIsolateFormula
	}
	if fontSize >= 16 {
		return classTitle
	}
	return classPlainText
}

// The minus sign (U+2212) is the typeset form; the ASCII hyphen stays
// out so hyphenated prose is not miscounted.
const mathSymbols = "∫∑∏√∂∇±×÷−≤≥≠≈∞∈∉⊂⊃∪∩∧∨¬∀∃αβγδεζηθικλμνξοπρστυφχψω"

// isFormulaText reports whether the row is dominated by mathematical
// notation rather than prose.
func isFormulaText(text string) bool {
	if len(text) < 3 {
		return false
	}
	var mathCount, total int
	for _, r := range text {
		if r == ' ' {
			continue
		}
		total++
		if strings.ContainsRune(mathSymbols, r) || r == '=' || r == '^' || r == '_' {
			mathCount++
		}
	}
	if total == 0 {
		return false
	}
	return float64(mathCount)/float64(total) > 0.15
}

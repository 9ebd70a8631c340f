// Package layout builds per-page masks that tell the content rewriter
// which regions of a page hold translatable text and which must be
// preserved untouched.
package layout

import "pdf-translator/internal/detect"

// Cell values. Cells at CellDefault or above are translatable; boxes found
// by the detector are painted with their enumeration index plus two, so
// the rewriter can group text by region.
const (
	CellPreserve int32 = 0
	CellDefault  int32 = 1
	cellBoxBase  int32 = 2
)

// preserveClasses are detector classes whose regions keep their original
// rendering: figures, tables, displayed formulas, their captions, and
// page furniture.
var preserveClasses = map[string]bool{
	"abandon":         true,
	"figure":          true,
	"table":           true,
	"isolate_formula": true,
	"formula_caption": true,
}

// Mask is an immutable per-page grid at rendered-pixel resolution. Rows
// grow upward from the page bottom, matching PDF text space scaled to
// pixels, so callers can index it with scaled text coordinates directly.
type Mask struct {
	width  int
	height int
	cells  []int32
}

// BuildMask rasterizes a detection result into a mask. Every cell starts
// translatable-by-default; translatable boxes are painted first with their
// index, preserve-class boxes afterwards, so preservation wins overlaps.
// Paint rectangles are expanded by one pixel, flipped vertically and
// clamped to the grid.
func BuildMask(width, height int, pred detect.Prediction) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	m := &Mask{
		width:  width,
		height: height,
		cells:  make([]int32, width*height),
	}
	for i := range m.cells {
		m.cells[i] = CellDefault
	}

	for i, b := range pred.Boxes {
		if preserveClasses[pred.ClassName(b.Class)] {
			continue
		}
		m.paint(b, cellBoxBase+int32(i))
	}
	for _, b := range pred.Boxes {
		if !preserveClasses[pred.ClassName(b.Class)] {
			continue
		}
		m.paint(b, CellPreserve)
	}
	return m
}

// paint fills the expanded, flipped, clamped rectangle of b with v.
// Box coordinates arrive in image space (origin top-left, y down); mask
// rows run bottom-up, hence the height-minus-y flip.
func (m *Mask) paint(b detect.Box, v int32) {
	if m.width == 0 || m.height == 0 {
		return
	}
	x0 := clampI(int(b.X0-1), 0, m.width-1)
	x1 := clampI(int(b.X1+1), 0, m.width-1)
	y0 := clampI(int(float64(m.height)-b.Y1-1), 0, m.height-1)
	y1 := clampI(int(float64(m.height)-b.Y0+1), 0, m.height-1)

	for y := y0; y < y1; y++ {
		row := m.cells[y*m.width : (y+1)*m.width]
		for x := x0; x < x1; x++ {
			row[x] = v
		}
	}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// At returns the cell value at (x, y), y measured upward from the page
// bottom. Out-of-range coordinates read as preserved.
func (m *Mask) At(x, y int) int32 {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return CellPreserve
	}
	return m.cells[y*m.width+x]
}

// Translatable reports whether the cell at (x, y) may be rewritten.
func (m *Mask) Translatable(x, y int) bool {
	return m.At(x, y) != CellPreserve
}

// BoxIndex returns the detector box index painted at (x, y), if any.
// Cells in the default region report no box.
func (m *Mask) BoxIndex(x, y int) (int, bool) {
	v := m.At(x, y)
	if v < cellBoxBase {
		return 0, false
	}
	return int(v - cellBoxBase), true
}

// DetectorSizeHint derives the model input size from the rendered page
// height: the height rounded down to a multiple of 32.
func DetectorSizeHint(pixelHeight int) int {
	return pixelHeight / 32 * 32
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

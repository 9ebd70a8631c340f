package fonts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a parsed font program ready for embedding. Glyph metrics are
// reported in 1000-unit text space. All methods are safe for concurrent
// use; the underlying sfnt buffer is guarded by a mutex.
type Face struct {
	mu        sync.Mutex
	font      *sfnt.Font
	buf       sfnt.Buffer
	data      []byte
	cff       bool
	psName    string
	numGlyphs int
}

// LoadFace reads and parses a font file. TrueType collections (.ttc)
// are reduced to their first font so the result stays embeddable.
func LoadFace(path string) (*Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	face, err := NewFace(data)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", path, err)
	}
	return face, nil
}

// NewFace parses font program bytes.
func NewFace(data []byte) (*Face, error) {
	if isCollection(data) {
		extracted, err := extractFirstFont(data)
		if err != nil {
			return nil, err
		}
		data = extracted
	}
	fnt, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	face := &Face{
		font:      fnt,
		data:      data,
		cff:       isCFF(data),
		numGlyphs: fnt.NumGlyphs(),
	}
	if name, err := fnt.Name(&face.buf, sfnt.NameIDPostScript); err == nil {
		face.psName = sanitizePostScriptName(name)
	}
	return face, nil
}

// Data returns the embeddable font program bytes.
func (f *Face) Data() []byte { return f.data }

// IsCFF reports whether the program carries CFF outlines.
func (f *Face) IsCFF() bool { return f.cff }

// PostScriptName returns the font's PostScript name, or "" when the
// name table has none.
func (f *Face) PostScriptName() string { return f.psName }

// NumGlyphs returns the glyph count.
func (f *Face) NumGlyphs() int { return f.numGlyphs }

// GlyphIndex returns the glyph for a rune. The second result is false
// when the font has no glyph for it.
func (f *Face) GlyphIndex(r rune) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gid, err := f.font.GlyphIndex(&f.buf, r)
	if err != nil || gid == 0 {
		return 0, false
	}
	return int(gid), true
}

// GlyphWidth returns the advance of a glyph in 1000-unit text space.
// Rendering at 1000 pixels per em makes the advance the width directly.
func (f *Face) GlyphWidth(gid int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.glyphWidthLocked(gid)
}

func (f *Face) glyphWidthLocked(gid int) int {
	if gid < 0 || gid >= f.numGlyphs {
		return 0
	}
	adv, err := f.font.GlyphAdvance(&f.buf, sfnt.GlyphIndex(gid), fixed.I(1000), font.HintingNone)
	if err != nil {
		return 1000
	}
	return adv.Round()
}

// Metrics returns ascent, descent and cap height in 1000-unit text
// space. Descent is negative.
func (f *Face) Metrics() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.font.Metrics(&f.buf, fixed.I(1000), font.HintingNone)
	if err != nil {
		return 800, -200, 700
	}
	ascent := m.Ascent.Round()
	descent := -m.Descent.Round()
	capHeight := m.CapHeight.Round()
	if capHeight <= 0 {
		capHeight = ascent
	}
	return ascent, descent, capHeight
}

// Encode maps a string to its Identity-H hex form and total advance in
// 1000-unit text space. Runes without a glyph use notdef.
func (f *Face) Encode(s string) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hexCodes strings.Builder
	width := 0
	for _, r := range s {
		gid, err := f.font.GlyphIndex(&f.buf, r)
		if err != nil {
			gid = 0
		}
		fmt.Fprintf(&hexCodes, "%04X", uint16(gid))
		width += f.glyphWidthLocked(int(gid))
	}
	return hexCodes.String(), width
}

// GlyphRunes maps glyph IDs to representative code points by scanning
// the basic multilingual plane. The first rune mapped to a glyph wins.
func (f *Face) GlyphRunes() map[int]rune {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := make(map[int]rune)
	for r := rune(0x20); r <= 0xFFFF; r++ {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		gid, err := f.font.GlyphIndex(&f.buf, r)
		if err != nil || gid == 0 {
			continue
		}
		if _, seen := m[int(gid)]; !seen {
			m[int(gid)] = r
		}
	}
	return m
}

func isCFF(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "OTTO"
}

// sanitizePostScriptName strips bytes that are not valid in a PDF name.
func sanitizePostScriptName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

package fonts

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func regularFace(t *testing.T) *Face {
	t.Helper()
	face, err := NewFace(goregular.TTF)
	if err != nil {
		t.Fatalf("Failed to parse test font: %v", err)
	}
	return face
}

func TestLoadFace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0644); err != nil {
		t.Fatalf("Failed to write font file: %v", err)
	}

	face, err := LoadFace(path)
	if err != nil {
		t.Fatalf("Failed to load font: %v", err)
	}
	if face.IsCFF() {
		t.Error("Expected TrueType outlines")
	}
	if face.NumGlyphs() <= 0 {
		t.Errorf("Expected glyphs, got %d", face.NumGlyphs())
	}
	if len(face.Data()) != len(goregular.TTF) {
		t.Errorf("Expected data passthrough, got %d bytes", len(face.Data()))
	}

	name := face.PostScriptName()
	if name == "" {
		t.Error("Expected a PostScript name")
	}
	if strings.ContainsAny(name, " \t()<>[]{}/%") {
		t.Errorf("PostScript name %q contains invalid characters", name)
	}
}

func TestLoadFaceMissingFile(t *testing.T) {
	if _, err := LoadFace(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewFaceRejectsGarbage(t *testing.T) {
	if _, err := NewFace([]byte("definitely not a font")); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := NewFace([]byte("ttcf")); err == nil {
		t.Error("Expected error for truncated collection")
	}
}

func TestGlyphIndexAndWidth(t *testing.T) {
	face := regularFace(t)

	gidA, ok := face.GlyphIndex('A')
	if !ok || gidA == 0 {
		t.Fatal("Expected a glyph for 'A'")
	}
	if _, ok := face.GlyphIndex(''); ok {
		t.Error("Expected no glyph for a private-use rune")
	}

	widthA := face.GlyphWidth(gidA)
	if widthA <= 0 || widthA >= 2000 {
		t.Errorf("Width of 'A' out of range: %d", widthA)
	}

	// Proportional font: 'W' is wider than 'i'.
	gidW, _ := face.GlyphIndex('W')
	gidI, _ := face.GlyphIndex('i')
	if face.GlyphWidth(gidW) <= face.GlyphWidth(gidI) {
		t.Errorf("Expected W (%d) wider than i (%d)", face.GlyphWidth(gidW), face.GlyphWidth(gidI))
	}

	if w := face.GlyphWidth(-1); w != 0 {
		t.Errorf("Expected zero width for invalid glyph, got %d", w)
	}
	if w := face.GlyphWidth(face.NumGlyphs()); w != 0 {
		t.Errorf("Expected zero width past the end, got %d", w)
	}
}

func TestMetrics(t *testing.T) {
	face := regularFace(t)
	ascent, descent, capHeight := face.Metrics()

	if ascent <= 500 || ascent > 1200 {
		t.Errorf("Ascent out of range: %d", ascent)
	}
	if descent >= 0 || descent < -500 {
		t.Errorf("Expected negative descent, got %d", descent)
	}
	if capHeight <= 0 || capHeight > ascent {
		t.Errorf("Cap height out of range: %d (ascent %d)", capHeight, ascent)
	}
}

func TestEncode(t *testing.T) {
	face := regularFace(t)

	hexCodes, width := face.Encode("AB")
	if len(hexCodes) != 8 {
		t.Fatalf("Expected 8 hex digits for two glyphs, got %q", hexCodes)
	}
	gidA, _ := face.GlyphIndex('A')
	gidB, _ := face.GlyphIndex('B')
	if want := encodeGID(gidA) + encodeGID(gidB); hexCodes != want {
		t.Errorf("Expected %q, got %q", want, hexCodes)
	}
	if want := face.GlyphWidth(gidA) + face.GlyphWidth(gidB); width != want {
		t.Errorf("Expected width %d, got %d", want, width)
	}

	// Unmapped runes fall back to notdef.
	hexCodes, _ = face.Encode("")
	if hexCodes != "0000" {
		t.Errorf("Expected notdef for unmapped rune, got %q", hexCodes)
	}
}

func encodeGID(gid int) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{
		digits[(gid>>12)&0xF],
		digits[(gid>>8)&0xF],
		digits[(gid>>4)&0xF],
		digits[gid&0xF],
	})
}

func TestGlyphRunes(t *testing.T) {
	face := regularFace(t)
	m := face.GlyphRunes()

	if len(m) == 0 {
		t.Fatal("Expected glyph map entries")
	}
	gidA, _ := face.GlyphIndex('A')
	r, ok := m[gidA]
	if !ok {
		t.Fatal("Expected an entry for the 'A' glyph")
	}
	// First rune wins, so the entry is 'A' or an earlier code point that
	// shares the glyph.
	if r > 'A' || r < 0x20 {
		t.Errorf("Unexpected rune %U for 'A' glyph", r)
	}
}

// wrapTTC wraps a single font file into a one-font TrueType collection,
// shifting the table directory offsets past the collection header.
func wrapTTC(t *testing.T, fontData []byte) []byte {
	t.Helper()
	header := make([]byte, 16)
	copy(header, "ttcf")
	binary.BigEndian.PutUint16(header[4:6], 1)
	binary.BigEndian.PutUint32(header[8:12], 1)
	binary.BigEndian.PutUint32(header[12:16], 16)

	body := append([]byte(nil), fontData...)
	numTables := int(binary.BigEndian.Uint16(body[4:6]))
	for i := 0; i < numTables; i++ {
		off := 12 + i*16 + 8
		old := binary.BigEndian.Uint32(body[off : off+4])
		binary.BigEndian.PutUint32(body[off:off+4], old+16)
	}
	return append(header, body...)
}

func TestCollectionExtraction(t *testing.T) {
	direct := regularFace(t)
	ttc := wrapTTC(t, goregular.TTF)

	face, err := NewFace(ttc)
	if err != nil {
		t.Fatalf("Failed to parse collection: %v", err)
	}
	if face.IsCFF() {
		t.Error("Expected TrueType outlines")
	}
	if face.NumGlyphs() != direct.NumGlyphs() {
		t.Errorf("Expected %d glyphs, got %d", direct.NumGlyphs(), face.NumGlyphs())
	}

	gidDirect, _ := direct.GlyphIndex('A')
	gidTTC, ok := face.GlyphIndex('A')
	if !ok || gidTTC != gidDirect {
		t.Errorf("Expected glyph %d for 'A', got %d", gidDirect, gidTTC)
	}
	if direct.GlyphWidth(gidDirect) != face.GlyphWidth(gidTTC) {
		t.Error("Glyph widths differ after extraction")
	}

	// The extracted program is standalone, not a collection.
	if isCollection(face.Data()) {
		t.Error("Extracted font still looks like a collection")
	}
	if _, err := NewFace(face.Data()); err != nil {
		t.Errorf("Extracted font does not reparse: %v", err)
	}
}

func TestExtractFirstFontValidation(t *testing.T) {
	if _, err := extractFirstFont([]byte("ttcf\x00\x01\x00\x00")); err == nil {
		t.Error("Expected error for truncated header")
	}

	empty := make([]byte, 16)
	copy(empty, "ttcf")
	if _, err := extractFirstFont(empty); err == nil {
		t.Error("Expected error for collection with no fonts")
	}

	bad := wrapTTC(t, goregular.TTF)
	binary.BigEndian.PutUint32(bad[12:16], uint32(len(bad)+100))
	if _, err := extractFirstFont(bad); err == nil {
		t.Error("Expected error for out-of-range directory")
	}
}

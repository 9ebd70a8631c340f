// Package docmodel provides the document model the translation pipeline
// mutates: an object table with page bookkeeping, slash-path key access,
// font embedding and a deterministic serializer. Real files are loaded
// through pdfcpu's read surface; writing is always a complete rebuild.
package docmodel

// Object kind names reported by Document.GetKey.
const (
	KindNull   = "null"
	KindBool   = "bool"
	KindInt    = "int"
	KindReal   = "real"
	KindString = "string"
	KindName   = "name"
	KindArray  = "array"
	KindDict   = "dict"
	KindStream = "stream"
	KindRef    = "ref"
)

// Document is a mutable PDF document handle.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// Page returns the page at the zero-based index.
	Page(index int) (Page, error)

	// AllocObject allocates a fresh indirect object holding an empty
	// stream and returns its identifier.
	AllocObject() int

	// ObjectIDs returns all live object identifiers in ascending order.
	ObjectIDs() []int

	// GetObjectBody returns the stream bytes of an object.
	GetObjectBody(id int) ([]byte, error)

	// SetObjectBody replaces the stream bytes of an object. Any
	// previous stream filter is dropped; body is stored as plain data.
	SetObjectBody(id int, body []byte) error

	// GetKey walks a slash-joined dictionary path inside an object
	// ("Resources/Font", "Font/F3") and reports the entry's kind and a
	// string rendering of its value. Missing paths report KindNull.
	GetKey(id int, path string) (kind, value string, err error)

	// SetKey sets a dictionary entry by slash-joined path. Values are
	// parsed from PDF notation ("12 0 R", "/Name", "42", "null").
	// Missing intermediate dictionaries are created.
	SetKey(id int, path, value string) error

	// InsertPagesAt copies count pages of src starting at from and
	// inserts them so the first copied page lands at index at.
	InsertPagesAt(at int, src Document, from, count int) error

	// Clone returns an independent deep copy of the document.
	Clone() Document

	// Save serializes the complete document. With compress set,
	// filter-less streams are written FlateDecode-compressed.
	Save(compress bool) ([]byte, error)
}

// Page is one page of a Document.
type Page interface {
	// Index returns the page's current zero-based position.
	Index() int

	// ID returns the page object's identifier.
	ID() int

	// Size returns the page dimensions in points.
	Size() (width, height float64)

	// ContentsBytes returns the page's current content stream data,
	// concatenated and decoded.
	ContentsBytes() ([]byte, error)

	// SetContents binds the given object as the page's content stream.
	SetContents(objectID int) error

	// EmbedFont ensures the font program is embedded in the document
	// under the logical resource name and bound in this page's
	// Resources/Font dictionary. It returns the font object identifier
	// and is idempotent per name.
	EmbedFont(name string, prog FontProgram) (int, error)

	// FontResourceNames lists the names bound in Resources/Font.
	FontResourceNames() []string

	// FontBaseName returns the BaseFont of a bound font resource, or ""
	// when the resource does not resolve to a font dictionary.
	FontBaseName(resourceName string) string
}

// FontProgram supplies everything needed to embed a composite font.
// It is implemented by internal/fonts.
type FontProgram interface {
	// Data returns the complete embeddable font program.
	Data() []byte

	// IsCFF reports whether the program is CFF-flavored (embedded as an
	// OpenType FontFile3) rather than TrueType (FontFile2).
	IsCFF() bool

	// PostScriptName returns the font's PostScript name.
	PostScriptName() string

	// NumGlyphs returns the glyph count.
	NumGlyphs() int

	// GlyphWidth returns the advance of a glyph in 1000-unit text space.
	GlyphWidth(gid int) int

	// Metrics returns ascent, descent (negative) and cap height in
	// 1000-unit text space.
	Metrics() (ascent, descent, capHeight int)

	// GlyphRunes maps glyph IDs to representative unicode code points
	// for ToUnicode generation.
	GlyphRunes() map[int]rune
}

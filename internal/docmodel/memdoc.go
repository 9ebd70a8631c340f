package docmodel

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// MemDoc is the Document implementation: an object table plus an ordered
// page list. Empty documents are used by tests and synthetic fixtures;
// Load builds one from a real PDF file.
type MemDoc struct {
	objects   map[int]Object
	nextID    int
	pageIDs   []int
	catalogID int
	pagesID   int
	fonts     map[string]int // logical font name -> Type0 font object id
}

// NewMemDoc creates an empty document with a catalog and page-tree root.
func NewMemDoc() *MemDoc {
	m := &MemDoc{
		objects: make(map[int]Object),
		nextID:  1,
		fonts:   make(map[string]int),
	}
	m.catalogID = m.alloc()
	m.pagesID = m.alloc()
	m.refreshPageTree()
	return m
}

func (m *MemDoc) alloc() int {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MemDoc) addObject(obj Object) int {
	id := m.alloc()
	m.objects[id] = obj
	return id
}

// AddPage appends an empty page of the given size in points.
func (m *MemDoc) AddPage(width, height float64) *MemPage {
	id := m.addObject(Dict{
		"Type":      Name("Page"),
		"Parent":    Ref(m.pagesID),
		"MediaBox":  Array{Integer(0), Integer(0), Real(width), Real(height)},
		"Resources": Dict{},
	})
	m.pageIDs = append(m.pageIDs, id)
	return &MemPage{doc: m, id: id}
}

// PageCount returns the number of pages.
func (m *MemDoc) PageCount() int { return len(m.pageIDs) }

// Page returns the page at the zero-based index.
func (m *MemDoc) Page(index int) (Page, error) {
	if index < 0 || index >= len(m.pageIDs) {
		return nil, fmt.Errorf("page index %d out of range (0..%d)", index, len(m.pageIDs)-1)
	}
	return &MemPage{doc: m, id: m.pageIDs[index]}, nil
}

// AllocObject allocates a fresh empty stream object.
func (m *MemDoc) AllocObject() int {
	return m.addObject(&Stream{Dict: Dict{}})
}

// ObjectIDs returns all live object identifiers in ascending order.
func (m *MemDoc) ObjectIDs() []int {
	ids := make([]int, 0, len(m.objects))
	for id := range m.objects {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// GetObjectBody returns the stream bytes of an object.
func (m *MemDoc) GetObjectBody(id int) ([]byte, error) {
	obj, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %d does not exist", id)
	}
	st, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not a stream", id)
	}
	return st.Data, nil
}

// SetObjectBody replaces an object's stream bytes with plain data.
func (m *MemDoc) SetObjectBody(id int, body []byte) error {
	obj, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("object %d does not exist", id)
	}
	switch o := obj.(type) {
	case *Stream:
		o.Data = body
		delete(o.Dict, "Filter")
		delete(o.Dict, "DecodeParms")
	case Dict:
		m.objects[id] = &Stream{Dict: o, Data: body}
	default:
		return fmt.Errorf("object %d (%T) cannot hold a stream body", id, obj)
	}
	return nil
}

// resolve follows reference chains to the target object.
func (m *MemDoc) resolve(obj Object) Object {
	for i := 0; i < 16; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		obj = m.objects[int(ref)]
	}
	return nil
}

// dictOf returns the dictionary view of an object (streams expose their
// stream dictionary), or nil when the object has none.
func (m *MemDoc) dictOf(obj Object) Dict {
	switch o := m.resolve(obj).(type) {
	case Dict:
		return o
	case *Stream:
		return o.Dict
	default:
		return nil
	}
}

// GetKey walks a slash-joined path and reports the entry's kind and value.
func (m *MemDoc) GetKey(id int, path string) (string, string, error) {
	obj, ok := m.objects[id]
	if !ok {
		return "", "", fmt.Errorf("object %d does not exist", id)
	}
	cur := m.dictOf(obj)
	segments := strings.Split(path, "/")
	for _, seg := range segments[:len(segments)-1] {
		if cur == nil {
			return KindNull, "", nil
		}
		cur = m.dictOf(cur[seg])
	}
	if cur == nil {
		return KindNull, "", nil
	}
	kind, value := kindAndValue(cur[segments[len(segments)-1]])
	return kind, value, nil
}

// SetKey sets a dictionary entry by slash-joined path, creating missing
// intermediate dictionaries.
func (m *MemDoc) SetKey(id int, path, value string) error {
	obj, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("object %d does not exist", id)
	}
	cur := m.dictOf(obj)
	if cur == nil {
		return fmt.Errorf("object %d has no dictionary", id)
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments[:len(segments)-1] {
		next := m.resolve(cur[seg])
		switch o := next.(type) {
		case Dict:
			cur = o
		case *Stream:
			cur = o.Dict
		case nil, Null:
			d := Dict{}
			cur[seg] = d
			cur = d
		default:
			return fmt.Errorf("object %d: %q is not a dictionary", id, seg)
		}
	}
	parsed, err := parseValue(value)
	if err != nil {
		return fmt.Errorf("object %d: set %q: %w", id, path, err)
	}
	cur[segments[len(segments)-1]] = parsed
	return nil
}

// InsertPagesAt deep-copies count pages of src starting at from into this
// document so the first copied page lands at index at. Objects shared
// between copied pages stay shared.
func (m *MemDoc) InsertPagesAt(at int, src Document, from, count int) error {
	s, ok := src.(*MemDoc)
	if !ok {
		return fmt.Errorf("unsupported source document type %T", src)
	}
	if at < 0 || at > len(m.pageIDs) {
		return fmt.Errorf("insert index %d out of range (0..%d)", at, len(m.pageIDs))
	}
	if from < 0 || count < 0 || from+count > len(s.pageIDs) {
		return fmt.Errorf("page range [%d,%d) out of range (source has %d pages)",
			from, from+count, len(s.pageIDs))
	}

	idMap := make(map[int]int)
	newIDs := make([]int, 0, count)
	for i := from; i < from+count; i++ {
		newID := m.copyFrom(s, s.pageIDs[i], idMap, true)
		if pd := m.dictOf(Ref(newID)); pd != nil {
			pd["Parent"] = Ref(m.pagesID)
		}
		newIDs = append(newIDs, newID)
	}
	m.pageIDs = slices.Insert(m.pageIDs, at, newIDs...)
	return nil
}

// copyFrom copies an object graph rooted at a source object into this
// document, remapping identifiers. topPage marks the page dictionary
// itself, whose Parent entry must not drag the source page tree along.
func (m *MemDoc) copyFrom(s *MemDoc, srcID int, idMap map[int]int, topPage bool) int {
	if newID, ok := idMap[srcID]; ok {
		return newID
	}
	newID := m.alloc()
	idMap[srcID] = newID
	obj, ok := s.objects[srcID]
	if !ok {
		obj = Null{}
	}
	m.objects[newID] = m.copyValueFrom(s, obj, idMap, topPage)
	return newID
}

func (m *MemDoc) copyValueFrom(s *MemDoc, obj Object, idMap map[int]int, topPage bool) Object {
	switch o := obj.(type) {
	case Dict:
		c := make(Dict, len(o))
		for k, v := range o {
			if topPage && k == "Parent" {
				continue
			}
			c[k] = m.copyValueFrom(s, v, idMap, false)
		}
		return c
	case Array:
		c := make(Array, len(o))
		for i, v := range o {
			c[i] = m.copyValueFrom(s, v, idMap, false)
		}
		return c
	case *Stream:
		return &Stream{
			Dict: m.copyValueFrom(s, o.Dict, idMap, false).(Dict),
			Data: bytes.Clone(o.Data),
		}
	case Ref:
		return Ref(m.copyFrom(s, int(o), idMap, false))
	case Str:
		return Str(bytes.Clone(o))
	default:
		return obj
	}
}

// Clone returns an independent deep copy.
func (m *MemDoc) Clone() Document {
	c := &MemDoc{
		objects:   make(map[int]Object, len(m.objects)),
		nextID:    m.nextID,
		pageIDs:   slices.Clone(m.pageIDs),
		catalogID: m.catalogID,
		pagesID:   m.pagesID,
		fonts:     maps.Clone(m.fonts),
	}
	for id, obj := range m.objects {
		c.objects[id] = deepCopyValue(obj)
	}
	return c
}

func (m *MemDoc) refreshPageTree() {
	kids := make(Array, len(m.pageIDs))
	for i, id := range m.pageIDs {
		kids[i] = Ref(id)
	}
	m.objects[m.pagesID] = Dict{
		"Type":  Name("Pages"),
		"Kids":  kids,
		"Count": Integer(len(m.pageIDs)),
	}
	m.objects[m.catalogID] = Dict{
		"Type":  Name("Catalog"),
		"Pages": Ref(m.pagesID),
	}
}

// Save serializes the complete document with a classic cross-reference
// table. Output is deterministic for a given document state.
func (m *MemDoc) Save(compress bool) ([]byte, error) {
	m.refreshPageTree()
	ids := m.ObjectIDs()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	buf.Write([]byte{'%', 0xe2, 0xe3, 0xcf, 0xd3, '\n'})

	offsets := make(map[int]int, len(ids))
	for _, id := range ids {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", id)
		var err error
		switch o := m.objects[id].(type) {
		case *Stream:
			err = writeStream(&buf, o, compress)
		default:
			err = writeObject(&buf, o)
		}
		if err != nil {
			return nil, fmt.Errorf("serialize object %d: %w", id, err)
		}
		buf.WriteString("\nendobj\n")
	}

	maxID := ids[len(ids)-1]
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxID+1)
	buf.WriteString("0000000000 65535 f \n")
	for id := 1; id <= maxID; id++ {
		if off, ok := offsets[id]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Root %d 0 R /Size %d >>\nstartxref\n%d\n%%%%EOF\n",
		m.catalogID, maxID+1, xrefPos)
	return buf.Bytes(), nil
}

// MemPage is a page handle into a MemDoc.
type MemPage struct {
	doc *MemDoc
	id  int
}

// Index returns the page's current zero-based position.
func (p *MemPage) Index() int {
	for i, id := range p.doc.pageIDs {
		if id == p.id {
			return i
		}
	}
	return -1
}

// ID returns the page object's identifier.
func (p *MemPage) ID() int { return p.id }

func (p *MemPage) dict() Dict {
	return p.doc.dictOf(Ref(p.id))
}

// Size returns the page dimensions in points, defaulting to US Letter
// when no MediaBox resolves.
func (p *MemPage) Size() (float64, float64) {
	pd := p.dict()
	if pd != nil {
		if box, ok := p.doc.resolve(pd["MediaBox"]).(Array); ok && len(box) == 4 {
			x0, ok0 := numValue(box[0])
			y0, ok1 := numValue(box[1])
			x1, ok2 := numValue(box[2])
			y1, ok3 := numValue(box[3])
			if ok0 && ok1 && ok2 && ok3 {
				w, h := x1-x0, y1-y0
				if w < 0 {
					w = -w
				}
				if h < 0 {
					h = -h
				}
				if w > 0 && h > 0 {
					return w, h
				}
			}
		}
	}
	return 612, 792
}

// ContentsBytes returns the page's content stream data, decoded and
// concatenated in order.
func (p *MemPage) ContentsBytes() ([]byte, error) {
	pd := p.dict()
	if pd == nil {
		return nil, fmt.Errorf("page object %d has no dictionary", p.id)
	}
	var streams []*Stream
	switch o := p.doc.resolve(pd["Contents"]).(type) {
	case nil, Null:
		return nil, nil
	case *Stream:
		streams = append(streams, o)
	case Array:
		for _, item := range o {
			st, ok := p.doc.resolve(item).(*Stream)
			if !ok {
				return nil, fmt.Errorf("page %d: content array entry is not a stream", p.id)
			}
			streams = append(streams, st)
		}
	default:
		return nil, fmt.Errorf("page %d: contents is %T, not a stream", p.id, o)
	}

	var out bytes.Buffer
	for i, st := range streams {
		data, err := decodeStreamData(st)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.id, err)
		}
		if i > 0 {
			out.WriteByte('\n')
		}
		out.Write(data)
	}
	return out.Bytes(), nil
}

func decodeStreamData(st *Stream) ([]byte, error) {
	switch filter := st.Dict["Filter"].(type) {
	case nil, Null:
		return st.Data, nil
	case Name:
		if filter != "FlateDecode" {
			return nil, fmt.Errorf("unsupported content stream filter %q", filter)
		}
		zr, err := zlib.NewReader(bytes.NewReader(st.Data))
		if err != nil {
			return nil, fmt.Errorf("inflate content stream: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unsupported content stream filter %T", filter)
	}
}

// SetContents binds the given object as the page's sole content stream.
func (p *MemPage) SetContents(objectID int) error {
	pd := p.dict()
	if pd == nil {
		return fmt.Errorf("page object %d has no dictionary", p.id)
	}
	if _, ok := p.doc.objects[objectID]; !ok {
		return fmt.Errorf("content object %d does not exist", objectID)
	}
	pd["Contents"] = Ref(objectID)
	return nil
}

// EmbedFont embeds the font program once per document under the logical
// name and binds it in this page's Resources/Font dictionary.
func (p *MemPage) EmbedFont(name string, prog FontProgram) (int, error) {
	pd := p.dict()
	if pd == nil {
		return 0, fmt.Errorf("page object %d has no dictionary", p.id)
	}
	fontID, ok := p.doc.fonts[name]
	if !ok {
		var err error
		fontID, err = buildFont(p.doc, prog)
		if err != nil {
			return 0, fmt.Errorf("embed font %q: %w", name, err)
		}
		p.doc.fonts[name] = fontID
	}

	res, err := p.doc.ensureDict(pd, "Resources")
	if err != nil {
		return 0, fmt.Errorf("page %d: %w", p.id, err)
	}
	fontDict, err := p.doc.ensureDict(res, "Font")
	if err != nil {
		return 0, fmt.Errorf("page %d: %w", p.id, err)
	}
	if _, bound := fontDict[name]; !bound {
		fontDict[name] = Ref(fontID)
	}
	return fontID, nil
}

// ensureDict returns the dictionary at key, creating it when absent.
func (m *MemDoc) ensureDict(parent Dict, key string) (Dict, error) {
	switch o := m.resolve(parent[key]).(type) {
	case Dict:
		return o, nil
	case nil, Null:
		d := Dict{}
		parent[key] = d
		return d, nil
	default:
		return nil, fmt.Errorf("%q is %T, not a dictionary", key, o)
	}
}

// FontResourceNames lists the names bound in Resources/Font, sorted.
func (p *MemPage) FontResourceNames() []string {
	pd := p.dict()
	if pd == nil {
		return nil
	}
	res := p.doc.dictOf(pd["Resources"])
	if res == nil {
		return nil
	}
	fontDict := p.doc.dictOf(res["Font"])
	if fontDict == nil {
		return nil
	}
	names := make([]string, 0, len(fontDict))
	for name := range fontDict {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FontBaseName returns the BaseFont of a bound font resource.
func (p *MemPage) FontBaseName(resourceName string) string {
	pd := p.dict()
	if pd == nil {
		return ""
	}
	res := p.doc.dictOf(pd["Resources"])
	if res == nil {
		return ""
	}
	fontDict := p.doc.dictOf(res["Font"])
	if fontDict == nil {
		return ""
	}
	font := p.doc.dictOf(fontDict[resourceName])
	if font == nil {
		return ""
	}
	if base, ok := p.doc.resolve(font["BaseFont"]).(Name); ok {
		return string(base)
	}
	return ""
}

var refPattern = regexp.MustCompile(`^(\d+)\s+(\d+)\s+R$`)

// parseValue parses a PDF value from its string notation.
func parseValue(value string) (Object, error) {
	v := strings.TrimSpace(value)
	switch v {
	case "", "null":
		return Null{}, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if mt := refPattern.FindStringSubmatch(v); mt != nil {
		n, err := strconv.Atoi(mt[1])
		if err != nil {
			return nil, fmt.Errorf("invalid reference %q", value)
		}
		return Ref(n), nil
	}
	if strings.HasPrefix(v, "/") {
		return Name(v[1:]), nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return Integer(n), nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return Real(f), nil
	}
	return nil, fmt.Errorf("unsupported value notation %q", value)
}

func kindAndValue(obj Object) (string, string) {
	switch o := obj.(type) {
	case nil, Null:
		return KindNull, ""
	case Bool:
		if o {
			return KindBool, "true"
		}
		return KindBool, "false"
	case Integer:
		return KindInt, strconv.FormatInt(int64(o), 10)
	case Real:
		return KindReal, strconv.FormatFloat(float64(o), 'f', -1, 64)
	case Str:
		return KindString, string(o)
	case Name:
		return KindName, "/" + string(o)
	case Array:
		return KindArray, ""
	case Dict:
		return KindDict, ""
	case *Stream:
		return KindStream, ""
	case Ref:
		return KindRef, fmt.Sprintf("%d 0 R", int(o))
	default:
		return KindNull, ""
	}
}

func numValue(obj Object) (float64, bool) {
	switch o := obj.(type) {
	case Integer:
		return float64(o), true
	case Real:
		return float64(o), true
	default:
		return 0, false
	}
}

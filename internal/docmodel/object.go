package docmodel

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
	"strconv"
)

// Object is a PDF object value. The concrete types are Null, Bool,
// Integer, Real, Str, Name, Array, Dict, Ref and *Stream.
type Object interface {
	isObject()
}

// Null is the PDF null object.
type Null struct{}

// Bool is a PDF boolean.
type Bool bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// Str is a PDF literal string (raw bytes).
type Str []byte

// Name is a PDF name without the leading slash.
type Name string

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary keyed by name (without the leading slash).
type Dict map[string]Object

// Ref is a reference to an indirect object. Generation numbers are
// always zero in documents this model produces.
type Ref int

// Stream is a PDF stream object. Data holds the stream bytes exactly as
// they will be written; when Dict carries a Filter entry the bytes are
// already encoded and pass through untouched.
type Stream struct {
	Dict Dict
	Data []byte
}

func (Null) isObject()    {}
func (Bool) isObject()    {}
func (Integer) isObject() {}
func (Real) isObject()    {}
func (Str) isObject()     {}
func (Name) isObject()    {}
func (Array) isObject()   {}
func (Dict) isObject()    {}
func (Ref) isObject()     {}
func (*Stream) isObject() {}

// writeObject serializes obj in PDF syntax. Streams are indirect-only
// objects and are rejected here; the serializer writes them itself.
func writeObject(buf *bytes.Buffer, obj Object) error {
	switch o := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if o {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(o), 10))
	case Real:
		buf.WriteString(strconv.FormatFloat(float64(o), 'f', -1, 64))
	case Str:
		writeLiteralString(buf, o)
	case Name:
		writeName(buf, string(o))
	case Array:
		buf.WriteByte('[')
		for i, item := range o {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Dict:
		if err := writeDict(buf, o); err != nil {
			return err
		}
	case Ref:
		fmt.Fprintf(buf, "%d 0 R", int(o))
	case *Stream:
		return fmt.Errorf("stream objects must be indirect")
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
	return nil
}

// writeDict writes keys in sorted order so serialization is deterministic.
func writeDict(buf *bytes.Buffer, d Dict) error {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteByte(' ')
		writeName(buf, k)
		buf.WriteByte(' ')
		if err := writeObject(buf, d[k]); err != nil {
			return err
		}
	}
	buf.WriteString(" >>")
	return nil
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		// Delimiters and whitespace must be escaped inside names.
		// '#' passes through so names loaded in escaped form round-trip.
		switch {
		case c <= 0x20 || c >= 0x7f:
			fmt.Fprintf(buf, "#%02X", c)
		case c == '(' || c == ')' || c == '<' || c == '>' || c == '[' || c == ']' ||
			c == '{' || c == '}' || c == '/' || c == '%':
			fmt.Fprintf(buf, "#%02X", c)
		default:
			buf.WriteByte(c)
		}
	}
}

func writeLiteralString(buf *bytes.Buffer, s Str) {
	buf.WriteByte('(')
	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// writeStream writes a stream object body (dict, stream keyword, data).
// With compress set, filter-less streams are deflated; streams that
// already carry a filter are passed through as-is.
func writeStream(buf *bytes.Buffer, st *Stream, compress bool) error {
	data := st.Data
	dict := make(Dict, len(st.Dict)+2)
	for k, v := range st.Dict {
		dict[k] = v
	}

	if compress && dict["Filter"] == nil && len(data) > 0 {
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = zbuf.Bytes()
		dict["Filter"] = Name("FlateDecode")
	}
	dict["Length"] = Integer(len(data))

	if err := writeDict(buf, dict); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return nil
}

// deepCopyValue clones an object graph value. References are copied as-is;
// identity remapping is the caller's concern.
func deepCopyValue(obj Object) Object {
	switch o := obj.(type) {
	case Dict:
		c := make(Dict, len(o))
		for k, v := range o {
			c[k] = deepCopyValue(v)
		}
		return c
	case Array:
		c := make(Array, len(o))
		for i, v := range o {
			c[i] = deepCopyValue(v)
		}
		return c
	case *Stream:
		return &Stream{
			Dict: deepCopyValue(o.Dict).(Dict),
			Data: bytes.Clone(o.Data),
		}
	case Str:
		return Str(bytes.Clone(o))
	default:
		return obj
	}
}

package docmodel

import (
	"bytes"
	"compress/zlib"
	"io"
	"strconv"
	"strings"
	"testing"
)

func mustWrite(t *testing.T, obj Object) string {
	t.Helper()
	var buf bytes.Buffer
	if err := writeObject(&buf, obj); err != nil {
		t.Fatalf("Failed to write object: %v", err)
	}
	return buf.String()
}

func TestWriteScalars(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want string
	}{
		{"null", Null{}, "null"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"integer", Integer(42), "42"},
		{"negative integer", Integer(-7), "-7"},
		{"real", Real(1.5), "1.5"},
		{"whole real", Real(2), "2"},
		{"negative real", Real(-0.25), "-0.25"},
		{"string", Str("hi"), "(hi)"},
		{"name", Name("Font"), "/Font"},
		{"reference", Ref(12), "12 0 R"},
		{"array", Array{Integer(1), Name("A"), Ref(3)}, "[1 /A 3 0 R]"},
		{"empty array", Array{}, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustWrite(t, tt.obj); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWriteNameEscaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"F 1", "/F#201"},
		{"A(B)", "/A#28B#29"},
		{"a/b", "/a#2Fb"},
		{"p%q", "/p#25q"},
		{"Fo#o", "/Fo#o"},
		{"\xc3\xbc", "/#C3#BC"},
	}

	for _, tt := range tests {
		if got := mustWrite(t, Name(tt.in)); got != tt.want {
			t.Errorf("Name %q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestWriteLiteralStringEscaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a(b)c", `(a\(b\)c)`},
		{`back\slash`, `(back\\slash)`},
		{"line\nbreak\r", `(line\nbreak\r)`},
	}

	for _, tt := range tests {
		if got := mustWrite(t, Str(tt.in)); got != tt.want {
			t.Errorf("String %q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestWriteDictSortedKeys(t *testing.T) {
	d := Dict{
		"Zeta":  Integer(1),
		"Alpha": Name("x"),
		"Mid":   Dict{"B": Integer(2)},
	}
	want := "<< /Alpha /x /Mid << /B 2 >> /Zeta 1 >>"
	if got := mustWrite(t, d); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	// Deterministic regardless of map iteration order.
	for i := 0; i < 10; i++ {
		if got := mustWrite(t, d); got != want {
			t.Fatalf("Serialization not deterministic: got %q", got)
		}
	}
}

func TestWriteObjectRejectsNestedStream(t *testing.T) {
	var buf bytes.Buffer
	if err := writeObject(&buf, Array{&Stream{}}); err == nil {
		t.Error("Expected error for stream inside array")
	}
	buf.Reset()
	if err := writeObject(&buf, Dict{"S": &Stream{}}); err == nil {
		t.Error("Expected error for stream inside dict")
	}
}

func TestWriteStreamLayout(t *testing.T) {
	st := &Stream{
		Dict: Dict{"Type": Name("XObject")},
		Data: []byte("DATA"),
	}
	var buf bytes.Buffer
	if err := writeStream(&buf, st, false); err != nil {
		t.Fatalf("Failed to write stream: %v", err)
	}
	want := "<< /Length 4 /Type /XObject >>\nstream\nDATA\nendstream"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	// The source dict must not pick up Length or Filter entries.
	if len(st.Dict) != 1 {
		t.Errorf("Expected source dict untouched, got %v", st.Dict)
	}
}

func TestWriteStreamCompress(t *testing.T) {
	data := bytes.Repeat([]byte("content "), 20)
	st := &Stream{Dict: Dict{}, Data: data}
	var buf bytes.Buffer
	if err := writeStream(&buf, st, true); err != nil {
		t.Fatalf("Failed to write compressed stream: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "/Filter /FlateDecode") {
		t.Error("Expected FlateDecode filter in compressed stream")
	}
	if strings.Contains(out, "content content") {
		t.Error("Expected data to be compressed, found plain text")
	}

	// Extract the stream body and verify it inflates back to the input.
	start := strings.Index(out, "stream\n") + len("stream\n")
	end := strings.LastIndex(out, "\nendstream")
	body := out[start:end]
	zr, err := zlib.NewReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to open inflater: %v", err)
	}
	defer zr.Close()
	decoded, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to inflate: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("Inflated data does not match original")
	}

	// Declared length must match the encoded body.
	lenStr := out[strings.Index(out, "/Length ")+len("/Length "):]
	lenStr = lenStr[:strings.IndexAny(lenStr, " />")]
	n, err := strconv.Atoi(lenStr)
	if err != nil {
		t.Fatalf("Failed to parse length %q: %v", lenStr, err)
	}
	if n != len(body) {
		t.Errorf("Expected length %d, got %d", len(body), n)
	}
}

func TestWriteStreamKeepsExistingFilter(t *testing.T) {
	st := &Stream{
		Dict: Dict{"Filter": Name("DCTDecode")},
		Data: []byte("JPEGBYTES"),
	}
	var buf bytes.Buffer
	if err := writeStream(&buf, st, true); err != nil {
		t.Fatalf("Failed to write stream: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "/Filter /DCTDecode") {
		t.Error("Expected original filter to be kept")
	}
	if strings.Contains(out, "FlateDecode") {
		t.Error("Filtered stream must not be recompressed")
	}
	if !strings.Contains(out, "stream\nJPEGBYTES\nendstream") {
		t.Error("Expected filtered data to pass through untouched")
	}
}

func TestWriteStreamEmptyNotCompressed(t *testing.T) {
	st := &Stream{Dict: Dict{}}
	var buf bytes.Buffer
	if err := writeStream(&buf, st, true); err != nil {
		t.Fatalf("Failed to write empty stream: %v", err)
	}
	if strings.Contains(buf.String(), "FlateDecode") {
		t.Error("Empty stream must not gain a filter")
	}
	if !strings.Contains(buf.String(), "/Length 0") {
		t.Error("Expected zero length")
	}
}

func TestDeepCopyValue(t *testing.T) {
	orig := Dict{
		"Arr":    Array{Integer(1), Str("text")},
		"Nested": Dict{"K": Name("V")},
		"St":     &Stream{Dict: Dict{"F": Integer(9)}, Data: []byte("abc")},
		"R":      Ref(7),
	}
	copied := deepCopyValue(orig).(Dict)

	copied["Arr"].(Array)[0] = Integer(99)
	copied["Nested"].(Dict)["K"] = Name("changed")
	copied["St"].(*Stream).Data[0] = 'X'
	copied["St"].(*Stream).Dict["F"] = Integer(0)

	if orig["Arr"].(Array)[0] != Integer(1) {
		t.Error("Array element mutation leaked into original")
	}
	if orig["Nested"].(Dict)["K"] != Name("V") {
		t.Error("Nested dict mutation leaked into original")
	}
	if st := orig["St"].(*Stream); st.Data[0] != 'a' || st.Dict["F"] != Integer(9) {
		t.Error("Stream mutation leaked into original")
	}
	if copied["R"] != Ref(7) {
		t.Errorf("Expected reference copied as-is, got %v", copied["R"])
	}
}

func TestWriteRealFormatting(t *testing.T) {
	for _, tt := range []struct {
		in   Real
		want string
	}{
		{Real(612), "612"},
		{Real(792.5), "792.5"},
		{Real(0.1), "0.1"},
	} {
		if got := mustWrite(t, tt.in); got != tt.want {
			t.Errorf("Real %v: expected %q, got %q", float64(tt.in), tt.want, got)
		}
	}
}

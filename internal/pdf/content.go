package pdf

// Operation is one content-stream operation: the operand tokens that
// precede an operator, the operator itself, and the exact byte span both
// cover. Keeping the span lets the rewriter copy operations through
// without re-serializing them.
type Operation struct {
	Operands []string
	Operator string
	raw      []byte
}

// Raw returns the operation's source bytes, operands included.
func (op Operation) Raw() []byte { return op.raw }

// IsTextShowing reports whether the operation paints glyphs.
func (op Operation) IsTextShowing() bool {
	switch op.Operator {
	case "Tj", "TJ", "'", "\"":
		return true
	}
	return false
}

// contentOperators is the set of operator keywords recognized in page
// content streams. Unknown keywords are treated as operands; because
// operations are copied by byte span, a keyword missing here folds into
// the span of the next operation and still survives verbatim.
var contentOperators = map[string]bool{
	// Text objects and positioning
	"BT": true, "ET": true, "Td": true, "TD": true, "Tm": true, "T*": true,
	// Text showing
	"Tj": true, "TJ": true, "'": true, "\"": true,
	// Text state
	"Tc": true, "Tw": true, "Tz": true, "TL": true, "Tf": true, "Tr": true, "Ts": true,
	// Graphics state
	"q": true, "Q": true, "cm": true, "w": true, "J": true, "j": true,
	"M": true, "d": true, "ri": true, "i": true, "gs": true,
	// Path construction
	"m": true, "l": true, "c": true, "v": true, "y": true, "h": true, "re": true,
	// Path painting
	"S": true, "s": true, "f": true, "F": true, "f*": true,
	"B": true, "B*": true, "b": true, "b*": true, "n": true,
	// Clipping
	"W": true, "W*": true,
	// Color
	"CS": true, "cs": true, "SC": true, "SCN": true, "sc": true, "scn": true,
	"G": true, "g": true, "RG": true, "rg": true, "K": true, "k": true,
	// XObjects, shading, type 3 glyphs
	"Do": true, "sh": true, "d0": true, "d1": true,
	// Marked content and compatibility
	"MP": true, "DP": true, "BMC": true, "BDC": true, "EMC": true,
	"BX": true, "EX": true,
}

// ParseContent splits a decoded content stream into operations. The
// scanner is lenient: malformed trailing tokens are dropped, comments
// skipped, inline images (BI..EI) kept as a single opaque operation.
func ParseContent(content []byte) []Operation {
	s := &contentScanner{data: content}
	return s.scan()
}

type contentScanner struct {
	data []byte
	pos  int
}

func (s *contentScanner) scan() []Operation {
	var ops []Operation
	var pending []string
	spanStart := -1

	for s.pos < len(s.data) {
		b := s.data[s.pos]
		if isPDFWhitespace(b) {
			s.pos++
			continue
		}
		if b == '%' {
			s.skipComment()
			continue
		}

		tokStart := s.pos
		tok := s.readToken()
		if tok == "" {
			continue
		}
		if spanStart == -1 {
			spanStart = tokStart
		}

		if tok == "BI" {
			// Inline image: binary data follows ID, opaque until EI.
			s.skipInlineImage()
			ops = append(ops, Operation{
				Operands: pending,
				Operator: "BI",
				raw:      s.data[spanStart:s.pos],
			})
			pending = nil
			spanStart = -1
			continue
		}

		if contentOperators[tok] {
			ops = append(ops, Operation{
				Operands: pending,
				Operator: tok,
				raw:      s.data[spanStart:s.pos],
			})
			pending = nil
			spanStart = -1
			continue
		}

		pending = append(pending, tok)
	}
	return ops
}

// readToken consumes one token starting at a non-whitespace byte.
func (s *contentScanner) readToken() string {
	b := s.data[s.pos]
	switch b {
	case '(':
		s.pos++
		return "(" + s.readStringLiteral() + ")"
	case '<':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
			s.pos += 2
			return "<<"
		}
		s.pos++
		return "<" + s.readHexString() + ">"
	case '>':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '>' {
			s.pos += 2
			return ">>"
		}
		s.pos++
		return ">"
	case '[':
		s.pos++
		return "["
	case ']':
		s.pos++
		return "]"
	case '/':
		s.pos++
		return "/" + s.readRegular()
	case '{', '}':
		s.pos++
		return string(b)
	default:
		return s.readRegular()
	}
}

// readStringLiteral consumes a ( ) string, tracking nesting and escapes.
// The opening paren has already been consumed.
func (s *contentScanner) readStringLiteral() string {
	start := s.pos
	depth := 1
	for s.pos < len(s.data) {
		b := s.data[s.pos]
		if b == '\\' {
			s.pos += 2
			continue
		}
		if b == '(' {
			depth++
		} else if b == ')' {
			depth--
			if depth == 0 {
				str := string(s.data[start:s.pos])
				s.pos++
				return str
			}
		}
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// readHexString consumes a < > hex string. The opening bracket has
// already been consumed.
func (s *contentScanner) readHexString() string {
	start := s.pos
	for s.pos < len(s.data) {
		if s.data[s.pos] == '>' {
			str := string(s.data[start:s.pos])
			s.pos++
			return str
		}
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// readRegular consumes a run of regular characters: a number, keyword
// or name body.
func (s *contentScanner) readRegular() string {
	start := s.pos
	for s.pos < len(s.data) {
		b := s.data[s.pos]
		if isPDFWhitespace(b) || isPDFDelimiter(b) {
			break
		}
		s.pos++
	}
	return string(s.data[start:s.pos])
}

func (s *contentScanner) skipComment() {
	for s.pos < len(s.data) {
		b := s.data[s.pos]
		s.pos++
		if b == '\n' || b == '\r' {
			return
		}
	}
}

// skipInlineImage consumes everything after a BI token up to and
// including the closing EI keyword. The image data after ID is binary,
// so the scan looks for a whitespace-delimited EI instead of tokenizing.
func (s *contentScanner) skipInlineImage() {
	for s.pos+1 < len(s.data) {
		if s.data[s.pos] == 'E' && s.data[s.pos+1] == 'I' {
			before := byte('\n')
			if s.pos > 0 {
				before = s.data[s.pos-1]
			}
			afterOK := s.pos+2 >= len(s.data) ||
				isPDFWhitespace(s.data[s.pos+2]) || isPDFDelimiter(s.data[s.pos+2])
			if isPDFWhitespace(before) && afterOK {
				s.pos += 2
				return
			}
		}
		s.pos++
	}
	s.pos = len(s.data)
}

func isPDFWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isPDFDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

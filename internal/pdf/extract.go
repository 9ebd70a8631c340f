package pdf

import (
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"pdf-translator/internal/logger"
)

// Row is one extracted text row: the merged text plus the anchor and
// font facts the rewrite engine needs. Coordinates are PDF text space
// (points, origin bottom-left, Y at the baseline).
type Row struct {
	Text     string
	X, Y     float64
	Width    float64
	FontSize float64
	Font     string // source font, a BaseFont-style name
}

// DocInfo is what the pipeline learns about a document up front.
type DocInfo struct {
	FilePath  string `json:"file_path"`
	PageCount int    `json:"page_count"`
	FileSize  int64  `json:"file_size"`
	IsTextPDF bool   `json:"is_text_pdf"`
}

// GetDocInfo stats the file and probes it for an extractable text layer.
func GetDocInfo(pdfPath string) (*DocInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "input file does not exist", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "cannot access input file", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "input path is a directory", nil)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	pageCount := r.NumPage()

	isText, err := HasTextLayer(pdfPath)
	if err != nil {
		isText = false
	}

	return &DocInfo{
		FilePath:  pdfPath,
		PageCount: pageCount,
		FileSize:  fileInfo.Size(),
		IsTextPDF: isText,
	}, nil
}

// HasTextLayer samples plain text from the first pages. Scanned PDFs
// yield nothing extractable and report false.
func HasTextLayer(pdfPath string) (bool, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return false, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	maxPagesToCheck := 3
	if r.NumPage() < maxPagesToCheck {
		maxPagesToCheck = r.NumPage()
	}

	totalTextLength := 0
	for pageNum := 1; pageNum <= maxPagesToCheck; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		for _, c := range content {
			if !unicode.IsSpace(c) {
				totalTextLength++
			}
		}
		if totalTextLength > 50 {
			return true, nil
		}
	}

	return totalTextLength > 0, nil
}

// ExtractRows pulls the text rows of one page, zero-based. Rows that
// merge to nothing, look like leaked operator code or are mostly
// non-printable are dropped.
func ExtractRows(pdfPath string, pageIndex int) ([]Row, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	if pageIndex < 0 || pageIndex >= r.NumPage() {
		return nil, NewPDFErrorWithPage(ErrStructural, "page index out of range", pageIndex+1, nil)
	}

	page := r.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	if page.V.Key("Contents").Kind() == pdf.Null {
		return nil, nil
	}

	textRows, err := page.GetTextByRow()
	if err != nil {
		logger.Warn("text extraction failed",
			logger.Int("page", pageIndex+1), logger.Err(err))
		return nil, nil
	}

	var rows []Row
	for _, tr := range textRows {
		if len(tr.Content) == 0 {
			continue
		}

		var b strings.Builder
		var first, last *pdf.Text
		var totalSize float64
		count := 0
		font := ""

		for i := range tr.Content {
			t := &tr.Content[i]
			if t.S == "" || looksLikeOperatorCode(t.S) {
				continue
			}
			b.WriteString(t.S)
			if first == nil {
				first = t
			}
			last = t
			totalSize += t.FontSize
			count++
			if font == "" {
				font = t.Font
			}
		}

		text := strings.TrimSpace(b.String())
		if text == "" || first == nil {
			continue
		}
		if looksLikeOperatorCode(text) || mostlyNonPrintable(text) {
			continue
		}

		size := totalSize / float64(count)
		if size <= 0 {
			size = 10.0
		}
		width := last.X + last.W - first.X
		if width <= 0 {
			width = float64(len(text)) * size * 0.5
		}

		rows = append(rows, Row{
			Text:     text,
			X:        first.X,
			Y:        first.Y,
			Width:    width,
			FontSize: size,
			Font:     font,
		})
	}
	return rows, nil
}

// looksLikeOperatorCode flags strings that are leaked PostScript or PDF
// operator soup rather than document text.
func looksLikeOperatorCode(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	if strings.Contains(text, "/") && (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) {
		return true
	}
	if strings.Contains(lower, "null def") {
		return true
	}

	for _, pattern := range []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
	} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	// Several /Name tokens in a row read like operator code, not prose.
	if !strings.Contains(lower, "http") {
		slashNames := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isAlnumWord(word[1:]) {
				slashNames++
			}
		}
		if slashNames >= 3 {
			return true
		}
	}
	return false
}

func isAlnumWord(s string) bool {
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
			return false
		}
	}
	return true
}

// mostlyNonPrintable flags rows dominated by control or replacement
// characters, typical of undecodable embedded-font text.
func mostlyNonPrintable(text string) bool {
	if text == "" {
		return true
	}
	bad := 0
	total := 0
	for _, c := range text {
		total++
		if c == unicode.ReplacementChar || (!unicode.IsPrint(c) && !unicode.IsSpace(c)) {
			bad++
		}
	}
	return bad*3 > total
}

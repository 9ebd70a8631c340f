package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pdf-translator/internal/detect"
	"pdf-translator/internal/docmodel"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/translate"
)

// ObjectPatch is one pending object-body replacement.
type ObjectPatch struct {
	ObjectID int
	Body     []byte
}

// RewriteRequest carries one page's inputs to the rewrite engine.
// OriginalContent must be captured before the page's contents are
// rebound to the fresh patch object.
type RewriteRequest struct {
	Page            docmodel.Page
	ContentID       int
	Mask            *layout.Mask
	Boxes           []detect.Box // detector boxes, image-pixel coordinates
	FontName        string       // page resource name of the embedded font
	Face            *fonts.Face
	Scale           float64 // rendered pixels per point
	Workers         int
	SourcePath      string
	OriginalContent []byte
}

// RewriteEngine rebuilds one page's content stream.
type RewriteEngine interface {
	RewritePage(ctx context.Context, req RewriteRequest) ([]ObjectPatch, error)
}

// RewriteStats counts translation work across pages.
type RewriteStats struct {
	Blocks     int
	CacheHits  int
	Translated int
}

// ContentRewriter is the default engine: it copies every non-text
// operation of the original stream verbatim, then re-sets the text layer
// from the page's extracted rows. Rows anchored in translatable mask
// cells are translated and set in the embedded font; rows in preserved
// cells are re-set untouched, in their original font when it can be
// matched on the page.
type ContentRewriter struct {
	svc           translate.Service
	cache         *translate.TranslationCache
	contextWindow int
	rowSource     func(pdfPath string, pageIndex int) ([]Row, error)

	mu    sync.Mutex
	stats RewriteStats
}

// NewContentRewriter creates the engine. cache may be nil.
func NewContentRewriter(svc translate.Service, cache *translate.TranslationCache, contextWindow int) *ContentRewriter {
	if contextWindow <= 0 {
		contextWindow = translate.DefaultContextWindow
	}
	return &ContentRewriter{
		svc:           svc,
		cache:         cache,
		contextWindow: contextWindow,
		rowSource:     ExtractRows,
	}
}

// Stats returns accumulated counters.
func (e *ContentRewriter) Stats() RewriteStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ResetStats zeroes the counters for a new document.
func (e *ContentRewriter) ResetStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = RewriteStats{}
}

// rowGroup is a run of rows that translate as one unit.
type rowGroup struct {
	boxIndex int // -1 for rows outside any detector box
	rows     []Row
}

// RewritePage produces the replacement body for the page's fresh
// content object.
func (e *ContentRewriter) RewritePage(ctx context.Context, req RewriteRequest) ([]ObjectPatch, error) {
	pageIndex := req.Page.Index()

	rows, err := e.rowSource(req.SourcePath, pageIndex)
	if err != nil {
		return nil, err
	}

	groups, preserved := partitionRows(rows, req.Mask, req.Scale)

	var buf bytes.Buffer
	copyGraphics(&buf, req.OriginalContent)

	results, err := e.translateGroups(ctx, groups, req.Workers)
	if err != nil {
		return nil, err
	}

	if len(results) > 0 || len(preserved) > 0 {
		buf.WriteString("q\n0 g\n")
		e.emitTranslated(&buf, groups, results, req)
		emitPreserved(&buf, preserved, req)
		buf.WriteString("Q\n")
	}

	logger.Debug("page rewritten",
		logger.Int("page", pageIndex+1),
		logger.Int("groups", len(groups)),
		logger.Int("preservedRows", len(preserved)),
		logger.Int("bodyBytes", buf.Len()))

	return []ObjectPatch{{ObjectID: req.ContentID, Body: buf.Bytes()}}, nil
}

// copyGraphics writes every operation except text showing, so paths,
// images, shading and state survive while the original glyphs vanish.
func copyGraphics(buf *bytes.Buffer, content []byte) {
	for _, op := range ParseContent(content) {
		if op.IsTextShowing() {
			continue
		}
		buf.Write(op.Raw())
		buf.WriteByte('\n')
	}
}

// partitionRows sorts extracted rows into translation groups and the
// preserved list, using each row's anchor cell in the mask. Rows inside
// the same detector box merge into one group; translatable rows outside
// any box stand alone.
func partitionRows(rows []Row, mask *layout.Mask, scale float64) ([]rowGroup, []Row) {
	var groups []rowGroup
	var preserved []Row
	byBox := make(map[int]int) // box index -> position in groups

	for _, row := range rows {
		ax := int(row.X * scale)
		ay := int(row.Y * scale)

		if !mask.Translatable(ax, ay) {
			preserved = append(preserved, row)
			continue
		}

		if boxIdx, ok := mask.BoxIndex(ax, ay); ok {
			if gi, seen := byBox[boxIdx]; seen {
				groups[gi].rows = append(groups[gi].rows, row)
			} else {
				byBox[boxIdx] = len(groups)
				groups = append(groups, rowGroup{boxIndex: boxIdx, rows: []Row{row}})
			}
			continue
		}
		groups = append(groups, rowGroup{boxIndex: -1, rows: []Row{row}})
	}
	return groups, preserved
}

// groupID keys a group's translation result.
func groupID(i int) string { return fmt.Sprintf("g%d", i) }

func (e *ContentRewriter) translateGroups(ctx context.Context, groups []rowGroup, workers int) (map[string]translate.Result, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	blocks := make([]translate.Block, 0, len(groups))
	for i, g := range groups {
		texts := make([]string, 0, len(g.rows))
		for _, r := range g.rows {
			texts = append(texts, r.Text)
		}
		blocks = append(blocks, translate.Block{
			ID:   groupID(i),
			Text: strings.Join(texts, " "),
		})
	}

	b := translate.NewBatcher(e.svc, translate.BatcherConfig{
		ContextWindow: e.contextWindow,
		Concurrency:   workers,
	})
	results, err := b.TranslateCached(ctx, blocks, e.cache, nil)
	if err != nil {
		return nil, NewPDFError(ErrAPIFailed, "translation failed", err)
	}

	out := make(map[string]translate.Result, len(results))
	hits := 0
	for _, r := range results {
		out[r.ID] = r
		if r.FromCache {
			hits++
		}
	}

	e.mu.Lock()
	e.stats.Blocks += len(blocks)
	e.stats.CacheHits += hits
	e.stats.Translated += len(results) - hits
	e.mu.Unlock()

	return out, nil
}

// emitTranslated lays the translated groups back onto the page. Box
// groups wrap to the box width; free-standing rows wrap to the space
// left of the right margin.
func (e *ContentRewriter) emitTranslated(buf *bytes.Buffer, groups []rowGroup, results map[string]translate.Result, req RewriteRequest) {
	pageW, _ := req.Page.Size()

	for i, g := range groups {
		res, ok := results[groupID(i)]
		if !ok || res.Translated == "" {
			// Untranslated groups keep their source text so nothing is lost.
			res.Translated = joinRowText(g.rows)
		}

		first := g.rows[0]
		size := first.FontSize
		lineH := groupLeading(g.rows)

		avail := pageW - first.X - 36
		if g.boxIndex >= 0 && g.boxIndex < len(req.Boxes) {
			boxRight := req.Boxes[g.boxIndex].X1 / req.Scale
			if w := boxRight - first.X; w > size {
				avail = w
			}
		}
		if avail < size {
			avail = first.Width
		}

		for li, line := range wrapText(req.Face, res.Translated, size, avail) {
			y := first.Y - float64(li)*lineH
			hex, _ := req.Face.Encode(line)
			writeShowHex(buf, req.FontName, size, first.X, y, hex)
		}
	}
}

// emitPreserved re-sets untranslated rows. A row goes back in its source
// font when a page resource matches its base name and its text is plain
// ASCII (so the bytes mean the same thing in the source encoding);
// otherwise it is set in the embedded font.
func emitPreserved(buf *bytes.Buffer, preserved []Row, req RewriteRequest) {
	for _, row := range preserved {
		if res := matchPageFont(req.Page, row.Font); res != "" && isASCII(row.Text) {
			writeShowLiteral(buf, res, row.FontSize, row.X, row.Y, row.Text)
			continue
		}
		hex, _ := req.Face.Encode(row.Text)
		writeShowHex(buf, req.FontName, row.FontSize, row.X, row.Y, hex)
	}
}

func joinRowText(rows []Row) string {
	texts := make([]string, 0, len(rows))
	for _, r := range rows {
		texts = append(texts, r.Text)
	}
	return strings.Join(texts, " ")
}

// groupLeading derives the baseline step from consecutive rows, falling
// back to 1.25 em for single-row groups.
func groupLeading(rows []Row) float64 {
	if len(rows) > 1 {
		if d := rows[0].Y - rows[1].Y; d > 0 {
			return d
		}
	}
	return rows[0].FontSize * 1.25
}

// wrapText greedily breaks text into lines no wider than maxWidth
// points, preferring space boundaries and falling back to hard breaks
// for unspaced scripts.
func wrapText(face *fonts.Face, text string, fontSize, maxWidth float64) []string {
	if maxWidth <= 0 || text == "" {
		return []string{text}
	}

	var lines []string
	var line []rune
	lineW := 0.0
	lastSpace := -1 // index in line of the last breakable rune

	for _, r := range text {
		w := runeWidth(face, r) * fontSize / 1000
		if lineW+w > maxWidth && len(line) > 0 {
			if lastSpace > 0 {
				lines = append(lines, strings.TrimRight(string(line[:lastSpace]), " "))
				rest := append([]rune{}, line[lastSpace:]...)
				line = line[:0]
				lineW = 0
				for _, rr := range rest {
					if len(line) == 0 && rr == ' ' {
						continue
					}
					line = append(line, rr)
					lineW += runeWidth(face, rr) * fontSize / 1000
				}
				lastSpace = -1
			} else {
				lines = append(lines, string(line))
				line = line[:0]
				lineW = 0
				lastSpace = -1
			}
			if r == ' ' {
				continue
			}
		}
		line = append(line, r)
		lineW += w
		if r == ' ' {
			lastSpace = len(line)
		}
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func runeWidth(face *fonts.Face, r rune) float64 {
	gid, ok := face.GlyphIndex(r)
	if !ok {
		return 500
	}
	return float64(face.GlyphWidth(gid))
}

// matchPageFont finds the page font resource whose base name matches the
// extracted row font, ignoring subset prefixes like "ABCDEF+".
func matchPageFont(page docmodel.Page, rowFont string) string {
	want := stripSubsetTag(rowFont)
	if want == "" {
		return ""
	}
	names := page.FontResourceNames()
	sort.Strings(names)
	for _, res := range names {
		if stripSubsetTag(page.FontBaseName(res)) == want {
			return res
		}
	}
	return ""
}

// stripSubsetTag removes a "XXXXXX+" subset prefix.
func stripSubsetTag(name string) string {
	if len(name) > 7 && name[6] == '+' {
		tag := name[:6]
		upper := true
		for _, c := range tag {
			if c < 'A' || c > 'Z' {
				upper = false
				break
			}
		}
		if upper {
			return name[7:]
		}
	}
	return name
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func writeShowHex(buf *bytes.Buffer, font string, size, x, y float64, hex string) {
	if hex == "" {
		return
	}
	fmt.Fprintf(buf, "BT /%s %s Tf %s %s Td <%s> Tj ET\n",
		font, fmtNum(size), fmtNum(x), fmtNum(y), hex)
}

func writeShowLiteral(buf *bytes.Buffer, font string, size, x, y float64, text string) {
	fmt.Fprintf(buf, "BT /%s %s Tf %s %s Td (%s) Tj ET\n",
		font, fmtNum(size), fmtNum(x), fmtNum(y), escapeLiteral(text))
}

// escapeLiteral escapes a string for a ( ) literal.
func escapeLiteral(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// fmtNum renders a coordinate with two decimals, trimming ".00".
func fmtNum(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

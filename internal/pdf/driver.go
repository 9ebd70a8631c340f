package pdf

import (
	"context"
	"fmt"

	"pdf-translator/internal/detect"
	"pdf-translator/internal/docmodel"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/render"
)

// DriveOptions configures one document sweep.
type DriveOptions struct {
	SourcePath string
	Face       *fonts.Face
	FontName   string
	// Pages restricts processing to these zero-based indices. Nil means
	// every page. Skipped pages still advance progress.
	Pages  []int
	OnPage func(pageIndex, total int)
}

// PatchDriver walks the document page by page, strictly in order, and
// collects object patches. Cancellation is honored once per page
// boundary; a cancelled run yields no partial patch set. Render,
// detection or structural failures abort the whole document.
type PatchDriver struct {
	renderer render.PageRenderer
	detector detect.Detector
	engine   RewriteEngine
	workers  int
}

// NewPatchDriver wires the per-page pipeline.
func NewPatchDriver(renderer render.PageRenderer, detector detect.Detector, engine RewriteEngine, workers int) *PatchDriver {
	return &PatchDriver{
		renderer: renderer,
		detector: detector,
		engine:   engine,
		workers:  workers,
	}
}

// Run produces the patch map for doc. Keys are object IDs, values the
// replacement bodies.
func (d *PatchDriver) Run(ctx context.Context, doc docmodel.Document, opts DriveOptions) (map[int][]byte, error) {
	total := doc.PageCount()
	wanted := pageSet(opts.Pages)
	patches := make(map[int][]byte)

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			logger.Info("translation cancelled", logger.Int("page", i+1), logger.Int("total", total))
			return nil, NewPDFError(ErrCancelled, "translation cancelled", ctx.Err())
		default:
		}

		// Progress counts visited pages, so it advances before the page
		// is processed and for filtered pages too.
		advance(opts.OnPage, i, total)
		if wanted != nil && !wanted[i] {
			continue
		}

		if err := d.patchPage(ctx, doc, i, patches, opts); err != nil {
			return nil, err
		}
	}

	return patches, nil
}

func (d *PatchDriver) patchPage(ctx context.Context, doc docmodel.Document, i int, patches map[int][]byte, opts DriveOptions) error {
	img, err := d.renderer.RenderPage(opts.SourcePath, i)
	if err != nil {
		return NewPDFErrorWithPage(ErrRenderFailed, fmt.Sprintf("failed to render page %d", i+1), i+1, err)
	}
	bounds := img.Bounds()

	pred, err := d.detector.Predict(detect.Request{
		Image:     img,
		PDFPath:   opts.SourcePath,
		PageIndex: i,
		DPI:       d.renderer.DPI(),
		SizeHint:  layout.DetectorSizeHint(bounds.Dy()),
	})
	if err != nil {
		return NewPDFErrorWithPage(ErrDetectFailed, fmt.Sprintf("layout detection failed on page %d", i+1), i+1, err)
	}

	mask := layout.BuildMask(bounds.Dx(), bounds.Dy(), pred)

	page, err := doc.Page(i)
	if err != nil {
		return NewPDFErrorWithPage(ErrStructural, fmt.Sprintf("page %d missing from document", i+1), i+1, err)
	}

	_, pageH := page.Size()
	scale := float64(d.renderer.DPI()) / 72.0
	if pageH > 0 {
		scale = float64(bounds.Dy()) / pageH
	}

	original, err := page.ContentsBytes()
	if err != nil {
		return NewPDFErrorWithPage(ErrStructural, fmt.Sprintf("unreadable content stream on page %d", i+1), i+1, err)
	}

	contentID := doc.AllocObject()
	if err := page.SetContents(contentID); err != nil {
		return NewPDFErrorWithPage(ErrStructural, fmt.Sprintf("failed to rebind contents of page %d", i+1), i+1, err)
	}

	pagePatches, err := d.engine.RewritePage(ctx, RewriteRequest{
		Page:            page,
		ContentID:       contentID,
		Mask:            mask,
		Boxes:           pred.Boxes,
		FontName:        opts.FontName,
		Face:            opts.Face,
		Scale:           scale,
		Workers:         d.workers,
		SourcePath:      opts.SourcePath,
		OriginalContent: original,
	})
	if err != nil {
		if _, ok := err.(*PDFError); ok {
			return err
		}
		return NewPDFErrorWithPage(ErrStructural, fmt.Sprintf("rewrite failed on page %d", i+1), i+1, err)
	}

	for _, p := range pagePatches {
		patches[p.ObjectID] = p.Body
	}
	return nil
}

func pageSet(pages []int) map[int]bool {
	if pages == nil {
		return nil
	}
	set := make(map[int]bool, len(pages))
	for _, p := range pages {
		set[p] = true
	}
	return set
}

func advance(onPage func(int, int), i, total int) {
	if onPage != nil {
		onPage(i, total)
	}
}

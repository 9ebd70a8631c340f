package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-translator/internal/detect"
	"pdf-translator/internal/docmodel"
	"pdf-translator/internal/errors"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/render"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translate"
	"pdf-translator/internal/types"
)

// Options configures one translation run.
type Options struct {
	// Pages restricts processing to these zero-based indices; nil means
	// every page. Skipped pages still advance progress.
	Pages []int
	// OutputDir receives the generated files. Empty means next to the
	// input.
	OutputDir string
	// MonoOnly skips the bilingual document.
	MonoOnly bool
	// OnPage fires after each page boundary, including skipped pages.
	OnPage func(pageIndex, total int)
}

// Deps carries the pipeline stages. Zero fields are filled with
// production defaults built from the configuration.
type Deps struct {
	Renderer render.PageRenderer
	Detector detect.Detector
	Service  translate.Service
	Cache    *translate.TranslationCache
	Results  *results.Manager
}

// Translator runs the whole pipeline for a document: probe, layout
// detection, content rewrite, font patching and bilingual assembly.
// One run is active at a time; Cancel aborts it at the next page
// boundary without leaving partial output.
type Translator struct {
	cfg        *types.Config
	service    translate.Service
	cache      *translate.TranslationCache
	renderer   render.PageRenderer
	detector   detect.Detector
	mapping    *fonts.Mapping
	rewriter   *ContentRewriter
	patcher    *ResourcePatcher
	assembler  *Assembler
	classifier *errors.Classifier
	results    *results.Manager

	faceMu sync.Mutex
	faces  map[string]*fonts.Face

	mu        sync.RWMutex
	status    Status
	cancelRun context.CancelFunc
}

// NewTranslator builds a translator from the configuration. Font
// resolution happens here and is fatal when no usable font is found;
// the fallback font is fetched at most once per process.
func NewTranslator(cfg *types.Config, deps Deps) (*Translator, error) {
	if cfg == nil {
		cfg = &types.Config{}
	}

	service := deps.Service
	if service == nil {
		service = translate.NewOpenAIService(translate.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			LangIn:  cfg.SourceLang,
			LangOut: cfg.TargetLang,
		})
	}

	cache := deps.Cache
	if cache == nil && !cfg.DisableCache {
		cache = translate.NewTranslationCache(cachePathFor(cfg))
		if err := cache.Load(); err != nil {
			logger.Warn("translation cache unreadable, starting empty", logger.Err(err))
		}
	}

	renderer := deps.Renderer
	if renderer == nil {
		dpi := cfg.RenderDPI
		if dpi <= 0 {
			dpi = render.DefaultDPI
		}
		renderer = render.NewPopplerRenderer(dpi)
	}

	detector := deps.Detector
	if detector == nil {
		detector = detect.NewDetector(cfg.DetectorModelPath)
	}

	resolver := fonts.NewResolver(cfg.FontDirs, cfg.FontCacheDir)
	fallback, err := resolver.Resolve()
	if err != nil {
		return nil, NewPDFError(ErrFontResolve, "no usable translation font found", err)
	}
	logger.Info("translation font resolved",
		logger.String("name", fallback.Name),
		logger.String("path", fallback.Path))

	classifier := errors.NewClassifier()
	return &Translator{
		cfg:        cfg,
		service:    service,
		cache:      cache,
		renderer:   renderer,
		detector:   detector,
		mapping:    fonts.NewMapping(fallback),
		rewriter:   NewContentRewriter(service, cache, cfg.ContextWindow),
		patcher:    NewResourcePatcher(classifier),
		assembler:  NewAssembler(),
		classifier: classifier,
		results:    deps.Results,
		faces:      make(map[string]*fonts.Face),
		status:     Status{Phase: PhaseIdle},
	}, nil
}

// Close releases the renderer and detector and persists the cache.
func (t *Translator) Close() {
	t.renderer.Cleanup()
	if err := t.detector.Close(); err != nil {
		logger.Warn("failed to close detector", logger.Err(err))
	}
	if t.cache != nil {
		if err := t.cache.Save(); err != nil {
			logger.Warn("failed to save cache on close", logger.Err(err))
		}
	}
}

// GetStatus returns a copy of the current status.
func (t *Translator) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Cancel aborts the active run at its next page boundary. The run
// produces no output files.
func (t *Translator) Cancel() {
	t.mu.Lock()
	cancel := t.cancelRun
	t.mu.Unlock()
	if cancel != nil {
		logger.Info("cancelling translation")
		cancel()
	}
}

// FailureReport exposes the per-object failures recorded during the
// last run's resource patching.
func (t *Translator) FailureReport() []errors.Failure {
	return t.classifier.Failures()
}

// TranslateFile translates one document and writes the mono (and,
// unless MonoOnly, dual) output files.
func (t *Translator) TranslateFile(ctx context.Context, inputPath string, opts Options) (*types.ProcessResult, error) {
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancelRun = cancel
	t.mu.Unlock()
	defer cancel()

	t.setStatus(PhaseLoading, 0, "Loading document", 0, 0)
	logger.Info("translation started", logger.String("input", inputPath))

	info, err := GetDocInfo(inputPath)
	if err != nil {
		return nil, t.fail(err)
	}
	if !info.IsTextPDF {
		return nil, t.fail(NewPDFError(ErrPDFNoText,
			"document has no extractable text layer (scanned PDF?)", nil))
	}

	doc, err := docmodel.Load(inputPath)
	if err != nil {
		return nil, t.fail(NewPDFError(ErrPDFInvalid, "failed to load document", err))
	}

	t.setStatus(PhaseLoading, 5, "Resolving fonts", info.PageCount, 0)
	fontDesc := t.mapping.FontFor(t.targetLang())
	face, err := t.faceFor(fontDesc)
	if err != nil {
		return nil, t.fail(NewPDFError(ErrFontResolve,
			fmt.Sprintf("failed to load font %s", fontDesc.Path), err))
	}

	var pristine docmodel.Document
	if !opts.MonoOnly {
		pristine = doc.Clone()
	}

	t.rewriter.ResetStats()
	t.classifier.Reset()

	t.setStatus(PhaseTranslating, 10, "Translating pages", info.PageCount, 0)
	driver := NewPatchDriver(t.renderer, t.detector, t.rewriter, t.concurrency())
	patches, err := driver.Run(runCtx, doc, DriveOptions{
		SourcePath: inputPath,
		Face:       face,
		FontName:   fonts.LogicalFontName,
		Pages:      opts.Pages,
		OnPage: func(i, total int) {
			done := i + 1
			t.setStatus(PhaseTranslating, 10+75*done/total,
				fmt.Sprintf("Translated page %d of %d", done, total), total, done)
			if opts.OnPage != nil {
				opts.OnPage(i, total)
			}
		},
	})
	if err != nil {
		return nil, t.fail(err)
	}

	t.setStatus(PhaseGenerating, 85, "Embedding fonts", info.PageCount, info.PageCount)
	if _, err := t.patcher.Patch(doc, fonts.LogicalFontName, face); err != nil {
		return nil, t.fail(err)
	}
	if expected, unexpected := t.classifier.Counts(); expected+unexpected > 0 {
		logger.Info("resource patching recorded failures",
			logger.Int("expected", expected),
			logger.Int("unexpected", unexpected))
	}

	if err := t.assembler.ApplyPatches(doc, patches); err != nil {
		return nil, t.fail(err)
	}

	monoPath, dualPath := outputPaths(inputPath, opts.OutputDir)
	if err := os.MkdirAll(filepath.Dir(monoPath), 0o755); err != nil {
		return nil, t.fail(NewPDFError(ErrAssembleFailed, "failed to create output directory", err))
	}

	t.setStatus(PhaseGenerating, 90, "Writing translated document", info.PageCount, info.PageCount)
	if err := t.assembler.WriteDocument(doc, monoPath); err != nil {
		return nil, t.fail(err)
	}

	if opts.MonoOnly {
		dualPath = ""
	} else {
		dual, err := t.assembler.AssembleDual(pristine, doc)
		if err != nil {
			return nil, t.fail(err)
		}
		t.setStatus(PhaseGenerating, 95, "Writing bilingual document", info.PageCount, info.PageCount)
		if err := t.assembler.WriteDocument(dual, dualPath); err != nil {
			return nil, t.fail(err)
		}
	}

	pageCountOK := t.verifyOutputs(info.PageCount, monoPath, dualPath)

	if t.cache != nil {
		if err := t.cache.Save(); err != nil {
			logger.Warn("failed to persist translation cache", logger.Err(err))
		}
	}

	stats := t.rewriter.Stats()
	result := &types.ProcessResult{
		SourceInfo: &types.SourceInfo{
			SourceType:  types.SourceTypeLocalPDF,
			OriginalRef: inputPath,
			LocalPath:   inputPath,
		},
		MonoPDFPath:   monoPath,
		DualPDFPath:   dualPath,
		PageCount:     info.PageCount,
		PageCountOK:   pageCountOK,
		CacheHits:     stats.CacheHits,
		ElapsedMillis: time.Since(start).Milliseconds(),
	}
	if t.results != nil {
		if err := t.results.Record(result); err != nil {
			logger.Warn("failed to record result", logger.Err(err))
		}
	}

	t.finishStatus(info.PageCount, stats)
	logger.Info("translation finished",
		logger.String("mono", monoPath),
		logger.String("dual", dualPath),
		logger.Int("pages", info.PageCount),
		logger.Int("cacheHits", stats.CacheHits),
		logger.Int64("elapsedMs", result.ElapsedMillis))
	return result, nil
}

// TranslateFiles processes each input in turn. A failing document does
// not stop the others; cancellation does. The returned slice carries
// every success and the error summarizes failures.
func (t *Translator) TranslateFiles(ctx context.Context, inputs []string, opts Options) ([]*types.ProcessResult, error) {
	out := make([]*types.ProcessResult, 0, len(inputs))
	failed := 0

	for _, input := range inputs {
		res, err := t.TranslateFile(ctx, input, opts)
		if err != nil {
			if pe, ok := err.(*PDFError); ok && pe.Code == ErrCancelled {
				return out, err
			}
			failed++
			logger.Error("document translation failed", err, logger.String("input", input))
			continue
		}
		out = append(out, res)
	}

	if failed > 0 && failed == len(inputs) {
		return nil, fmt.Errorf("all %d documents failed", failed)
	}
	if failed > 0 {
		return out, fmt.Errorf("%d of %d documents failed", failed, len(inputs))
	}
	return out, nil
}

func (t *Translator) targetLang() string {
	if t.cfg.TargetLang == "" {
		return "zh"
	}
	return t.cfg.TargetLang
}

func (t *Translator) concurrency() int {
	if t.cfg.Concurrency <= 0 {
		return translate.DefaultConcurrency
	}
	return t.cfg.Concurrency
}

// faceFor loads a font face once per path.
func (t *Translator) faceFor(desc fonts.Descriptor) (*fonts.Face, error) {
	t.faceMu.Lock()
	defer t.faceMu.Unlock()
	if f, ok := t.faces[desc.Path]; ok {
		return f, nil
	}
	f, err := fonts.LoadFace(desc.Path)
	if err != nil {
		return nil, err
	}
	t.faces[desc.Path] = f
	return f, nil
}

// verifyOutputs re-opens the written files and checks their page
// counts. Mismatches are reported, not fatal.
func (t *Translator) verifyOutputs(pages int, monoPath, dualPath string) bool {
	ok := true

	n, err := api.PageCountFile(monoPath)
	if err != nil {
		ok = false
		logger.Warn("failed to verify translated document",
			logger.Err(err), logger.String("path", monoPath))
	} else if n != pages {
		ok = false
		logger.Warn("translated document page count mismatch",
			logger.Int("want", pages), logger.Int("got", n))
	}

	if dualPath != "" {
		n, err := api.PageCountFile(dualPath)
		if err != nil {
			ok = false
			logger.Warn("failed to verify bilingual document",
				logger.Err(err), logger.String("path", dualPath))
		} else if n != 2*pages {
			ok = false
			logger.Warn("bilingual document page count mismatch",
				logger.Int("want", 2*pages), logger.Int("got", n))
		}
	}
	return ok
}

func (t *Translator) setStatus(phase Phase, progress int, message string, total, done int) {
	stats := t.rewriter.Stats()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		Phase:          phase,
		Progress:       clampProgress(progress),
		Message:        message,
		TotalPages:     total,
		CompletedPages: done,
		CachedBlocks:   stats.CacheHits,
	}
}

func (t *Translator) finishStatus(pages int, stats RewriteStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		Phase:          PhaseComplete,
		Progress:       100,
		Message:        "Translation complete",
		TotalPages:     pages,
		CompletedPages: pages,
		CachedBlocks:   stats.CacheHits,
	}
}

// fail records the error in the status and passes it through.
func (t *Translator) fail(err error) error {
	message := "Translation failed"
	if pe, ok := err.(*PDFError); ok && pe.Code == ErrCancelled {
		message = "Translation cancelled"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = PhaseError
	t.status.Message = message
	t.status.Error = err.Error()
	return err
}

// outputPaths derives the mono and dual file names from the input.
func outputPaths(inputPath, outDir string) (string, string) {
	if outDir == "" {
		outDir = filepath.Dir(inputPath)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outDir, base+"-mono.pdf"),
		filepath.Join(outDir, base+"-dual.pdf")
}

// cachePathFor places the translation cache under the work directory,
// falling back to the system temp directory.
func cachePathFor(cfg *types.Config) string {
	dir := cfg.WorkDirectory
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "pdf-translator")
	}
	return filepath.Join(dir, "translations.json")
}

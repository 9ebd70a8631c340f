package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pdf-translator/internal/config"
	"pdf-translator/internal/downloader"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/parser"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/results"
	"pdf-translator/internal/translate"
	"pdf-translator/internal/types"
)

// Command line flags
var (
	inputFlag    = flag.String("i", "", "Input PDF files or URLs, comma separated")
	outputFlag   = flag.String("o", "", "Output directory (default: next to each input)")
	pagesFlag    = flag.String("pages", "", "Pages to translate, zero-based (e.g. 0,2-4; default: all)")
	workersFlag  = flag.Int("workers", 0, "Concurrent translation batches (default: from config)")
	dpiFlag      = flag.Int("dpi", 0, "Render resolution for layout detection (default: from config)")
	modelFlag    = flag.String("model", "", "Layout model path (default: text-layer heuristic)")
	serviceFlag  = flag.String("service", "", "Translation backend: openai or eino (default: from config)")
	langInFlag   = flag.String("lang-in", "", "Source language (default: from config)")
	langOutFlag  = flag.String("lang-out", "", "Target language (default: from config)")
	monoOnlyFlag = flag.Bool("mono-only", false, "Skip the bilingual (side-by-side) output")
	configFlag   = flag.String("config", "", "Config file path")
	verboseFlag  = flag.Bool("v", false, "Verbose logging")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("pdf-translator - translate PDF documents while preserving their layout")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pdf-translator -i <input> [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -i <inputs>        PDF files or http(s) URLs, comma separated")
	fmt.Println("  -o <dir>           Output directory (default: next to each input)")
	fmt.Println("  -pages <spec>      Pages to translate, zero-based (e.g. 0,2-4)")
	fmt.Println("  -workers <n>       Concurrent translation batches")
	fmt.Println("  -dpi <n>           Render resolution for layout detection")
	fmt.Println("  -model <path>      Layout detection model (ONNX); omit for the heuristic")
	fmt.Println("  -service <name>    Translation backend: openai or eino")
	fmt.Println("  -lang-in <lang>    Source language (default en)")
	fmt.Println("  -lang-out <lang>   Target language (default zh)")
	fmt.Println("  -mono-only         Skip the bilingual (side-by-side) output")
	fmt.Println("  -config <path>     Config file path")
	fmt.Println("  -v                 Verbose logging")
	fmt.Println("  -h, -help          Show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pdf-translator -i paper.pdf")
	fmt.Println("  pdf-translator -i paper.pdf -pages 0,2-4 -mono-only")
	fmt.Println("  pdf-translator -i https://example.org/paper.pdf -o out/")
	fmt.Println()
	fmt.Println("Each input produces <name>-mono.pdf (translated) and, unless")
	fmt.Println("-mono-only is set, <name>-dual.pdf (original and translation")
	fmt.Println("interleaved page by page).")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *inputFlag == "" {
		printHelp()
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logCfg := logger.DefaultConfig()
	logCfg.EnableConsole = *verboseFlag
	if *verboseFlag {
		logCfg.Level = logger.LevelDebug
	}
	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pages, err := parsePageSpec(*pagesFlag)
	if err != nil {
		return err
	}

	inputs, err := resolveInputs(cfg)
	if err != nil {
		return err
	}

	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	translator, err := pdf.NewTranslator(cfg, pdf.Deps{
		Service: service,
		Results: openResults(cfg),
	})
	if err != nil {
		return err
	}
	defer translator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nCancelling...")
		translator.Cancel()
		cancel()
	}()

	stopProgress := startProgress(translator)
	defer stopProgress()

	start := time.Now()
	resultsOut, err := translator.TranslateFiles(ctx, inputs, pdf.Options{
		Pages:     pages,
		OutputDir: *outputFlag,
		MonoOnly:  *monoOnlyFlag,
	})
	stopProgress()

	for _, res := range resultsOut {
		fmt.Printf("\n%s (%d pages, %s)\n", res.SourceInfo.OriginalRef,
			res.PageCount, time.Since(start).Round(time.Second))
		fmt.Printf("  mono: %s\n", res.MonoPDFPath)
		if res.DualPDFPath != "" {
			fmt.Printf("  dual: %s\n", res.DualPDFPath)
		}
		if !res.PageCountOK {
			fmt.Println("  warning: output page counts did not match the original")
		}
	}
	return err
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*types.Config, error) {
	manager, err := config.NewManager(*configFlag)
	if err != nil {
		return nil, err
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()

	if *workersFlag > 0 {
		cfg.Concurrency = *workersFlag
	}
	if *dpiFlag > 0 {
		cfg.RenderDPI = *dpiFlag
	}
	if *modelFlag != "" {
		cfg.DetectorModelPath = *modelFlag
	}
	if *serviceFlag != "" {
		cfg.Service = *serviceFlag
	}
	if *langInFlag != "" {
		cfg.SourceLang = *langInFlag
	}
	if *langOutFlag != "" {
		cfg.TargetLang = *langOutFlag
	}
	return cfg, nil
}

// resolveInputs classifies every -i entry and downloads the URL ones.
func resolveInputs(cfg *types.Config) ([]string, error) {
	var raw []string
	for _, part := range strings.Split(*inputFlag, ",") {
		if part = strings.TrimSpace(part); part != "" {
			raw = append(raw, part)
		}
	}

	sources, err := parser.ResolveAll(raw)
	if err != nil {
		return nil, err
	}

	workDir := cfg.WorkDirectory
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "pdf-translator")
	}
	dl := downloader.NewDownloader(workDir)

	paths := make([]string, 0, len(sources))
	for _, src := range sources {
		if src.SourceType == types.SourceTypeURL {
			fmt.Printf("Downloading %s...\n", src.OriginalRef)
			fetched, err := dl.DownloadPDF(src.OriginalRef)
			if err != nil {
				return nil, err
			}
			src = fetched
		}
		paths = append(paths, src.LocalPath)
	}
	return paths, nil
}

// buildService picks the translation backend. Nil lets the translator
// build its default OpenAI service from the config.
func buildService(cfg *types.Config) (translate.Service, error) {
	if cfg.Service != "eino" {
		return nil, nil
	}
	return translate.NewEinoService(context.Background(), translate.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		LangIn:  cfg.SourceLang,
		LangOut: cfg.TargetLang,
	})
}

// openResults opens the results registry under the work directory. A
// failure only disables result records.
func openResults(cfg *types.Config) *results.Manager {
	dir := cfg.WorkDirectory
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "pdf-translator")
	}
	manager, err := results.NewManager(dir)
	if err != nil {
		logger.Warn("results registry unavailable", logger.Err(err))
		return nil
	}
	return manager
}

// startProgress mirrors the translator status to stdout until the
// returned stop function is called.
func startProgress(t *pdf.Translator) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		last := ""
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				st := t.GetStatus()
				line := fmt.Sprintf("[%3d%%] %s", st.Progress, st.Message)
				if line != last {
					fmt.Printf("\r%-70s", line)
					last = line
				}
			}
		}
	}()

	var once bool
	return func() {
		if once {
			return
		}
		once = true
		close(done)
		<-stopped
		fmt.Println()
	}
}

// parsePageSpec parses "0,2-4" into zero-based page indices. Empty means
// every page.
func parsePageSpec(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}

	var pages []int
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			pages = append(pages, n)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err1 := strconv.Atoi(strings.TrimSpace(lo))
			to, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || from < 0 || to < from {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			for n := from; n <= to; n++ {
				add(n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		add(n)
	}
	return pages, nil
}

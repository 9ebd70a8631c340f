package detect

import (
	"fmt"
	"os"

	"pdf-translator/internal/downloader"
	"pdf-translator/internal/logger"
)

// DefaultModelURL is the published ONNX export of DocLayout-YOLO trained on
// DocStructBench.
const DefaultModelURL = "https://huggingface.co/wybxc/DocLayout-YOLO-DocStructBench-onnx/resolve/main/doclayout_yolo_docstructbench_imgsz1024.onnx"

// EnsureModel makes sure the model file exists at modelPath, downloading it
// from DefaultModelURL when absent. A present file is used as-is, so the
// call is idempotent.
func EnsureModel(modelPath string) error {
	if modelPath == "" {
		return fmt.Errorf("model path not specified")
	}
	if _, err := os.Stat(modelPath); err == nil {
		logger.Debug("layout model already present", logger.String("path", modelPath))
		return nil
	}

	logger.Info("downloading layout model",
		logger.String("url", DefaultModelURL),
		logger.String("destination", modelPath))

	d := downloader.NewDownloader("")
	if err := d.FetchFile(DefaultModelURL, modelPath); err != nil {
		return fmt.Errorf("failed to download layout model: %w", err)
	}
	return nil
}

// NewDetector selects a detector implementation. A non-empty modelPath
// loads the ONNX model (fetching it first if missing); otherwise, or when
// loading fails, the text-layer heuristic is used.
func NewDetector(modelPath string) Detector {
	if modelPath == "" {
		logger.Info("no layout model configured, using text-layer heuristics")
		return NewHeuristicDetector()
	}
	if err := EnsureModel(modelPath); err != nil {
		logger.Warn("layout model unavailable, falling back to text-layer heuristics",
			logger.Err(err))
		return NewHeuristicDetector()
	}
	det, err := NewONNXDetector(modelPath)
	if err != nil {
		logger.Warn("failed to load layout model, falling back to text-layer heuristics",
			logger.Err(err))
		return NewHeuristicDetector()
	}
	return det
}

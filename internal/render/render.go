// Package render rasterizes PDF pages for layout detection.
package render

import (
	"fmt"
	"image"
	_ "image/png" // pdftoppm output decoding
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"pdf-translator/internal/logger"
)

// DefaultDPI is the rendering resolution used when none is configured.
const DefaultDPI = 150

// PageRenderer rasterizes single PDF pages.
type PageRenderer interface {
	// RenderPage renders the zero-based page of the document at dpi.
	RenderPage(pdfPath string, pageIndex int) (image.Image, error)
	// DPI returns the rendering resolution.
	DPI() int
	// Cleanup removes temporary render artifacts.
	Cleanup()
}

// PopplerRenderer shells out to pdftoppm.
type PopplerRenderer struct {
	dpi       int
	format    string
	tempDir   string
	available bool
}

// NewPopplerRenderer creates a renderer at the given resolution.
func NewPopplerRenderer(dpi int) *PopplerRenderer {
	return &PopplerRenderer{
		dpi:       dpi,
		format:    "png",
		available: popplerAvailable(),
	}
}

func popplerAvailable() bool {
	cmd := exec.Command("pdftoppm", "-v")
	hideWindowOnWindows(cmd)
	return cmd.Run() == nil
}

// DPI returns the rendering resolution.
func (r *PopplerRenderer) DPI() int { return r.dpi }

// RenderPage renders one page to an image.
func (r *PopplerRenderer) RenderPage(pdfPath string, pageIndex int) (image.Image, error) {
	logger.Debug("rendering PDF page",
		logger.String("pdf", filepath.Base(pdfPath)),
		logger.Int("page", pageIndex),
		logger.Int("dpi", r.dpi))

	if !r.available {
		return nil, fmt.Errorf("poppler-utils not found, please install: " +
			"Ubuntu/Debian: apt-get install poppler-utils, " +
			"macOS: brew install poppler, " +
			"Windows: download from https://github.com/oschwartz10612/poppler-windows/releases")
	}

	if r.tempDir == "" {
		tempDir, err := os.MkdirTemp("", "pdfrender_*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		r.tempDir = tempDir
	}

	pageNum := pageIndex + 1 // pdftoppm pages are 1-based
	outputPrefix := filepath.Join(r.tempDir, fmt.Sprintf("page_%d", pageNum))

	cmd := exec.Command("pdftoppm", popplerArgs(pdfPath, outputPrefix, pageNum, r.dpi, r.format)...)
	hideWindowOnWindows(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	imgPath := outputPrefix + "." + r.format
	img, err := loadImage(imgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rendered image: %w", err)
	}
	os.Remove(imgPath)

	logger.Debug("page rendered",
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()))

	return img, nil
}

// popplerArgs builds the pdftoppm argument list for a single page.
func popplerArgs(pdfPath, outputPrefix string, pageNum, dpi int, format string) []string {
	return []string{
		"-f", strconv.Itoa(pageNum),
		"-l", strconv.Itoa(pageNum),
		"-" + format,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	}
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Cleanup removes the renderer's temp directory.
func (r *PopplerRenderer) Cleanup() {
	if r.tempDir != "" {
		os.RemoveAll(r.tempDir)
		r.tempDir = ""
	}
}

// Package downloader fetches remote PDF documents and auxiliary assets
// (layout model weights, fallback fonts) over HTTP.
package downloader

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultTimeout is the HTTP client timeout for downloads. Generous
	// because model weights run to tens of megabytes.
	DefaultTimeout = 300 * time.Second
	// MaxRetries is the number of attempts for retryable network errors.
	MaxRetries = 3
	// BaseRetryDelay is multiplied by the attempt number between retries.
	BaseRetryDelay = 2 * time.Second

	userAgent = "pdf-translator/1.0"

	pdfMagic = "%PDF-"
)

// Downloader fetches files into a work directory.
type Downloader struct {
	httpClient *http.Client
	workDir    string
}

// NewDownloader creates a Downloader saving into workDir.
func NewDownloader(workDir string) *Downloader {
	return NewDownloaderWithTimeout(workDir, DefaultTimeout)
}

// NewDownloaderWithTimeout creates a Downloader with a custom HTTP timeout.
func NewDownloaderWithTimeout(workDir string, timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return types.NewAppError(types.ErrNetwork, "too many redirects", nil)
				}
				return nil
			},
		},
		workDir: workDir,
	}
}

// GetWorkDir returns the downloader's work directory.
func (d *Downloader) GetWorkDir() string {
	return d.workDir
}

// SetWorkDir changes the downloader's work directory.
func (d *Downloader) SetWorkDir(workDir string) {
	d.workDir = workDir
}

// DownloadPDF fetches a remote PDF into the work directory and verifies it
// actually is a PDF before handing it to the pipeline.
func (d *Downloader) DownloadPDF(url string) (*types.SourceInfo, error) {
	logger.Info("downloading PDF", logger.String("url", url))

	if url == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "URL cannot be empty", nil)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, types.NewAppError(types.ErrInvalidInput,
			"invalid URL format: must start with http:// or https://", nil)
	}

	if err := os.MkdirAll(d.workDir, 0755); err != nil {
		logger.Error("failed to create work directory", err, logger.String("workDir", d.workDir))
		return nil, types.NewAppError(types.ErrInternal, "failed to create work directory", err)
	}

	destPath := filepath.Join(d.workDir, filenameFromURL(url))
	if err := d.downloadWithRetry(url, destPath); err != nil {
		return nil, err
	}

	if err := verifyPDFMagic(destPath); err != nil {
		os.Remove(destPath)
		return nil, err
	}

	logger.Info("PDF download completed", logger.String("url", url), logger.String("destPath", destPath))
	return &types.SourceInfo{
		SourceType:  types.SourceTypeURL,
		OriginalRef: url,
		LocalPath:   destPath,
	}, nil
}

// FetchFile downloads url to destPath with retries, creating parent
// directories as needed. Existing files are overwritten.
func (d *Downloader) FetchFile(url, destPath string) error {
	if url == "" {
		return types.NewAppError(types.ErrInvalidInput, "URL cannot be empty", nil)
	}
	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrInternal, "failed to create destination directory", err)
		}
	}
	return d.downloadWithRetry(url, destPath)
}

// downloadWithRetry performs an HTTP GET with retry on network errors.
func (d *Downloader) downloadWithRetry(url, destPath string) error {
	var lastErr error

	for attempt := 1; attempt <= MaxRetries; attempt++ {
		logger.Debug("download attempt", logger.Int("attempt", attempt), logger.String("url", url))
		err := d.downloadFile(url, destPath)
		if err == nil {
			return nil
		}

		lastErr = err
		logger.Warn("download attempt failed", logger.Int("attempt", attempt), logger.Err(err))

		if !isRetryableError(err) {
			logger.Error("non-retryable download error", err, logger.String("url", url))
			return err
		}
		if attempt < MaxRetries {
			delay := BaseRetryDelay * time.Duration(attempt)
			logger.Debug("retrying after delay", logger.String("delay", delay.String()))
			time.Sleep(delay)
		}
	}

	logger.Error("download failed after all retries", lastErr,
		logger.String("url", url), logger.Int("maxRetries", MaxRetries))
	return types.NewAppErrorWithDetails(
		types.ErrNetwork,
		"download failed after multiple retries",
		fmt.Sprintf("attempted %d times", MaxRetries),
		lastErr,
	)
}

// downloadFile performs one HTTP GET and streams the body to destPath.
func (d *Downloader) downloadFile(url, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create HTTP request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrNetwork, "network request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleHTTPError(resp.StatusCode, url)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to create destination file", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		// Remove the partial file so a later retry starts clean.
		os.Remove(destPath)
		return types.NewAppError(types.ErrNetwork, "failed to save downloaded content", err)
	}
	return nil
}

// verifyPDFMagic checks the PDF signature at the start of the file.
func verifyPDFMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to open downloaded file", err)
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return types.NewAppError(types.ErrDownload, "downloaded file is not a PDF document", err)
	}
	if string(header) != pdfMagic {
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"downloaded file is not a PDF document",
			fmt.Sprintf("file starts with %q", header),
			nil,
		)
	}
	return nil
}

// filenameFromURL derives a .pdf filename from the last URL path segment.
func filenameFromURL(url string) string {
	trimmed := url
	if idx := strings.IndexAny(trimmed, "?#"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	parts := strings.Split(trimmed, "/")
	name := ""
	if len(parts) > 0 {
		name = parts[len(parts)-1]
	}
	if name == "" {
		return "download.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// handleHTTPError maps an HTTP status code to an AppError.
func handleHTTPError(statusCode int, url string) error {
	switch statusCode {
	case http.StatusNotFound:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"resource not found",
			fmt.Sprintf("URL: %s returned 404", url),
			nil,
		)
	case http.StatusForbidden:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"access forbidden",
			fmt.Sprintf("URL: %s returned 403", url),
			nil,
		)
	case http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(
			types.ErrAPIRateLimit,
			"rate limit exceeded",
			"too many requests, please try again later",
			nil,
		)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return types.NewAppErrorWithDetails(
			types.ErrNetwork,
			"server error",
			fmt.Sprintf("URL: %s returned %d", url, statusCode),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrDownload,
			"download failed",
			fmt.Sprintf("URL: %s returned status %d", url, statusCode),
			nil,
		)
	}
}

// isRetryableError reports whether a failed attempt is worth repeating.
// Network errors and rate limits are; client errors are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*types.AppError); ok {
		switch appErr.Code {
		case types.ErrNetwork, types.ErrAPIRateLimit:
			return true
		default:
			return false
		}
	}
	return true
}

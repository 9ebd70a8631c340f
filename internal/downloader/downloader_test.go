package downloader

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"pdf-translator/internal/types"
)

const samplePDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n"

func TestFilenameFromURL(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "plain pdf path",
			url:      "https://example.com/papers/attention.pdf",
			expected: "attention.pdf",
		},
		{
			name:     "missing extension gets pdf",
			url:      "https://arxiv.org/pdf/2301.00001",
			expected: "2301.00001.pdf",
		},
		{
			name:     "query string stripped",
			url:      "https://example.com/doc.pdf?download=1",
			expected: "doc.pdf",
		},
		{
			name:     "fragment stripped",
			url:      "https://example.com/doc.pdf#page=2",
			expected: "doc.pdf",
		},
		{
			name:     "trailing slash falls back",
			url:      "https://example.com/papers/",
			expected: "download.pdf",
		},
		{
			name:     "uppercase extension kept",
			url:      "https://example.com/DOC.PDF",
			expected: "DOC.PDF",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := filenameFromURL(tc.url); got != tc.expected {
				t.Errorf("filenameFromURL(%q) = %q, want %q", tc.url, got, tc.expected)
			}
		})
	}
}

func TestDownloadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(samplePDF))
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	info, err := d.DownloadPDF(srv.URL + "/paper.pdf")
	if err != nil {
		t.Fatalf("DownloadPDF failed: %v", err)
	}

	if info.SourceType != types.SourceTypeURL {
		t.Errorf("expected source type %s, got %s", types.SourceTypeURL, info.SourceType)
	}
	data, err := os.ReadFile(info.LocalPath)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != samplePDF {
		t.Error("downloaded content does not match served content")
	}
}

func TestDownloadPDFRejectsNonPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer srv.Close()

	workDir := t.TempDir()
	d := NewDownloader(workDir)
	_, err := d.DownloadPDF(srv.URL + "/fake.pdf")
	if err == nil {
		t.Fatal("expected error for non-PDF content")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrDownload {
		t.Errorf("expected %s error, got %v", types.ErrDownload, err)
	}

	// The bad file must not be left behind.
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty work dir after rejection, found %d entries", len(entries))
	}
}

func TestDownloadPDFInvalidInput(t *testing.T) {
	d := NewDownloader(t.TempDir())

	for _, url := range []string{"", "ftp://example.com/doc.pdf", "not-a-url"} {
		if _, err := d.DownloadPDF(url); err == nil {
			t.Errorf("expected error for input %q", url)
		}
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(samplePDF))
	}))
	defer srv.Close()

	d := NewDownloaderWithTimeout(t.TempDir(), 10*time.Second)
	if _, err := d.DownloadPDF(srv.URL + "/flaky.pdf"); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDownloadDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir())
	_, err := d.DownloadPDF(srv.URL + "/missing.pdf")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("404 should not be retried, got %d attempts", got)
	}
}

func TestFetchFileCreatesNestedDirectories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	destPath := filepath.Join(t.TempDir(), "models", "layout", "model.onnx")
	d := NewDownloader("")
	if err := d.FetchFile(srv.URL+"/model.onnx", destPath); err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}

	data, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read fetched file: %v", err)
	}
	if string(data) != "model-bytes" {
		t.Error("fetched content does not match served content")
	}
}

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network error", types.NewAppError(types.ErrNetwork, "net", nil), true},
		{"rate limit", types.NewAppError(types.ErrAPIRateLimit, "429", nil), true},
		{"download error", types.NewAppError(types.ErrDownload, "404", nil), false},
		{"invalid input", types.NewAppError(types.ErrInvalidInput, "bad", nil), false},
		{"plain error", errors.New("dial tcp: connection refused"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

package results

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pdf-translator/internal/types"
)

func writeTestPDF(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

func testResult(localPath string) *types.ProcessResult {
	return &types.ProcessResult{
		SourceInfo: &types.SourceInfo{
			SourceType:  types.SourceTypeLocalPDF,
			OriginalRef: localPath,
			LocalPath:   localPath,
		},
		MonoPDFPath: localPath + "-mono.pdf",
		DualPDFPath: localPath + "-dual.pdf",
		PageCount:   3,
		PageCountOK: true,
	}
}

func TestNewManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.GetBaseDir() != tempDir {
		t.Errorf("Expected base dir %s, got %s", tempDir, manager.GetBaseDir())
	}
}

func TestRecordAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(filepath.Join(tempDir, "results"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	source := writeTestPDF(t, tempDir, "paper.pdf", "fake pdf bytes")
	if err := manager.Record(testResult(source)); err != nil {
		t.Fatalf("Failed to record result: %v", err)
	}

	records, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.SourceFile != source {
		t.Errorf("Expected source file %s, got %s", source, rec.SourceFile)
	}
	if rec.SourceHash == "" {
		t.Error("Expected a source hash")
	}
	if rec.Result == nil || rec.Result.PageCount != 3 {
		t.Errorf("Result not round-tripped: %+v", rec.Result)
	}

	loaded, err := manager.Load(rec.Slug)
	if err != nil {
		t.Fatalf("Failed to load record: %v", err)
	}
	if loaded.Slug != rec.Slug {
		t.Errorf("Expected slug %s, got %s", rec.Slug, loaded.Slug)
	}
}

func TestRecord_InvalidInput(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.Record(nil); err == nil {
		t.Error("Expected error for nil result")
	}
	if err := manager.Record(&types.ProcessResult{}); err == nil {
		t.Error("Expected error for result without source info")
	}
}

func TestList_NewestFirst(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	older := &Record{Slug: "older", SourceHash: "aaa", RecordedAt: time.Now().Add(-time.Hour)}
	newer := &Record{Slug: "newer", SourceHash: "bbb", RecordedAt: time.Now()}
	for _, rec := range []*Record{older, newer} {
		if err := manager.save(rec); err != nil {
			t.Fatalf("Failed to save record: %v", err)
		}
	}

	records, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Slug != "newer" {
		t.Errorf("Expected newest record first, got %s", records[0].Slug)
	}
}

func TestList_EmptyBaseDir(t *testing.T) {
	manager := &Manager{baseDir: filepath.Join(t.TempDir(), "missing")}

	records, err := manager.List()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestDeleteAndExists(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	rec := &Record{Slug: "doc-abc123", SourceHash: "abc", RecordedAt: time.Now()}
	if err := manager.save(rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	if !manager.Exists("doc-abc123") {
		t.Error("Record should exist after saving")
	}

	if err := manager.Delete("doc-abc123"); err != nil {
		t.Fatalf("Failed to delete record: %v", err)
	}

	if manager.Exists("doc-abc123") {
		t.Error("Record should not exist after deletion")
	}
}

func TestFindByHash(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	rec := &Record{Slug: "doc-1", SourceHash: "deadbeef", RecordedAt: time.Now()}
	if err := manager.save(rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	found, err := manager.FindByHash("deadbeef")
	if err != nil {
		t.Fatalf("Failed to find by hash: %v", err)
	}
	if found == nil {
		t.Fatal("Expected to find record by hash")
	}
	if found.Slug != "doc-1" {
		t.Errorf("Expected slug doc-1, got %s", found.Slug)
	}

	missing, err := manager.FindByHash("nothere")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown hash")
	}
}

func TestCheckDuplicate(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(filepath.Join(tempDir, "results"))
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	source := writeTestPDF(t, tempDir, "paper.pdf", "identical bytes")
	if err := manager.Record(testResult(source)); err != nil {
		t.Fatalf("Failed to record result: %v", err)
	}

	// Same content under a different name is still a duplicate.
	copyPath := writeTestPDF(t, tempDir, "copy.pdf", "identical bytes")
	dup, err := manager.CheckDuplicate(copyPath)
	if err != nil {
		t.Fatalf("Failed to check duplicate: %v", err)
	}
	if dup == nil {
		t.Fatal("Expected duplicate to be found by content hash")
	}

	other := writeTestPDF(t, tempDir, "other.pdf", "different bytes")
	dup, err = manager.CheckDuplicate(other)
	if err != nil {
		t.Fatalf("Failed to check duplicate: %v", err)
	}
	if dup != nil {
		t.Error("Expected no duplicate for different content")
	}
}

func TestCalculateFileHash(t *testing.T) {
	tempDir := t.TempDir()
	path := writeTestPDF(t, tempDir, "test.txt", "Hello, World!")

	hash, err := CalculateFileHash(path)
	if err != nil {
		t.Fatalf("Failed to calculate hash: %v", err)
	}

	expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
	if hash != expected {
		t.Errorf("Expected hash %s, got %s", expected, hash)
	}
}

func TestCalculateFileHash_NonExistent(t *testing.T) {
	if _, err := CalculateFileHash("/nonexistent/file.pdf"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestRecordSlug(t *testing.T) {
	tests := []struct {
		sourceFile string
		hash       string
		expected   string
	}{
		{"/papers/attention.pdf", "0123456789abcdef", "attention-0123456789ab"},
		{"/tmp/my paper.pdf", "ffff000011112222", "my_paper-ffff00001111"},
		{"", "0123456789abcdef", "document-0123456789ab"},
		{"/x/short.pdf", "abc", "short-abc"},
	}

	for _, tt := range tests {
		got := recordSlug(tt.sourceFile, tt.hash)
		if got != tt.expected {
			t.Errorf("recordSlug(%q, %q) = %q, expected %q", tt.sourceFile, tt.hash, got, tt.expected)
		}
	}
}

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"a/b:c\\d e", "a_b_c_d_e"},
	}

	for _, tt := range tests {
		if got := sanitizeSlug(tt.input); got != tt.expected {
			t.Errorf("sanitizeSlug(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

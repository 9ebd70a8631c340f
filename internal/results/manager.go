// Package results keeps a persistent registry of translated documents.
// Every finished run is recorded as a directory holding a metadata.json,
// so earlier translations can be listed, deduplicated and cleaned up.
package results

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdf-translator/internal/types"
)

// Record is the stored metadata for one translated document.
type Record struct {
	Slug       string               `json:"slug"`
	SourceFile string               `json:"source_file"`
	SourceHash string               `json:"source_hash"`
	RecordedAt time.Time            `json:"recorded_at"`
	Result     *types.ProcessResult `json:"result"`
}

// Manager stores records under a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a manager rooted at baseDir. An empty baseDir
// defaults to pdf-translator-results in the user's home directory.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, "pdf-translator-results")
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}

	return &Manager{baseDir: baseDir}, nil
}

// GetBaseDir returns the base directory for records.
func (m *Manager) GetBaseDir() string {
	return m.baseDir
}

// RecordDir returns the directory path for a record slug.
func (m *Manager) RecordDir(slug string) string {
	return filepath.Join(m.baseDir, sanitizeSlug(slug))
}

// Record stores the outcome of one translation run. The record slug is
// derived from the source file name plus a content hash, so documents
// with the same name never collide.
func (m *Manager) Record(result *types.ProcessResult) error {
	if result == nil || result.SourceInfo == nil {
		return os.ErrInvalid
	}

	sourceFile := result.SourceInfo.LocalPath
	hash, err := CalculateFileHash(sourceFile)
	if err != nil {
		return err
	}

	rec := &Record{
		Slug:       recordSlug(sourceFile, hash),
		SourceFile: sourceFile,
		SourceHash: hash,
		RecordedAt: time.Now(),
		Result:     result,
	}
	return m.save(rec)
}

func (m *Manager) save(rec *Record) error {
	dir := m.RecordDir(rec.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

// Load reads one record by slug.
func (m *Manager) Load(slug string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(m.RecordDir(slug), "metadata.json"))
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, newest first.
func (m *Manager) List() ([]*Record, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, err
	}

	var records []*Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue // not a record directory
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
	return records, nil
}

// Exists reports whether a record with the slug is stored.
func (m *Manager) Exists(slug string) bool {
	_, err := os.Stat(filepath.Join(m.RecordDir(slug), "metadata.json"))
	return err == nil
}

// Delete removes a record and everything stored under it.
func (m *Manager) Delete(slug string) error {
	return os.RemoveAll(m.RecordDir(slug))
}

// FindByHash finds a record by its source content hash. A nil record
// without error means no match.
func (m *Manager) FindByHash(hash string) (*Record, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.SourceHash == hash {
			return rec, nil
		}
	}
	return nil, nil
}

// CheckDuplicate reports whether the document at path was already
// translated, identified by content hash rather than file name.
func (m *Manager) CheckDuplicate(path string) (*Record, error) {
	hash, err := CalculateFileHash(path)
	if err != nil {
		return nil, err
	}
	return m.FindByHash(hash)
}

// CalculateFileHash returns the hex SHA-256 of a file's contents.
func CalculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// recordSlug builds a stable directory name from the source file name
// and a short prefix of its content hash.
func recordSlug(sourceFile, hash string) string {
	base := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	if base == "" || base == "." {
		base = "document"
	}
	short := hash
	if len(short) > 12 {
		short = short[:12]
	}
	return sanitizeSlug(base) + "-" + short
}

// sanitizeSlug replaces characters that are unsafe in directory names.
func sanitizeSlug(s string) string {
	safe := strings.ReplaceAll(s, "/", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, " ", "_")
	return safe
}

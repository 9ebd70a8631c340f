package pdf

import (
	"fmt"
	"os"
	"sort"

	"pdf-translator/internal/docmodel"
	"pdf-translator/internal/logger"
)

// Assembler applies collected patches and builds the output documents.
// The mono document is the patched original; the dual document
// interleaves original and translated pages, original page k at index
// 2k and its translation at 2k+1.
type Assembler struct {
	Compress bool
}

// NewAssembler returns an assembler that writes compressed streams.
func NewAssembler() *Assembler {
	return &Assembler{Compress: true}
}

// ApplyPatches installs every pending object body. Patches are applied
// in object-ID order so output is deterministic.
func (a *Assembler) ApplyPatches(doc docmodel.Document, patches map[int][]byte) error {
	ids := make([]int, 0, len(patches))
	for id := range patches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if err := doc.SetObjectBody(id, patches[id]); err != nil {
			return NewPDFError(ErrPatchFailed, fmt.Sprintf("failed to apply patch to object %d", id), err)
		}
	}
	logger.Debug("patches applied", logger.Int("objects", len(ids)))
	return nil
}

// AssembleDual clones the untouched original and inserts each translated
// page directly after its source page.
func (a *Assembler) AssembleDual(original, mono docmodel.Document) (docmodel.Document, error) {
	dual := original.Clone()
	n := mono.PageCount()

	for k := 0; k < n; k++ {
		if err := dual.InsertPagesAt(2*k+1, mono, k, 1); err != nil {
			return nil, NewPDFError(ErrAssembleFailed, fmt.Sprintf("failed to insert translated page %d", k+1), err)
		}
	}

	if got, want := dual.PageCount(), 2*n; got != want {
		return nil, NewPDFError(ErrAssembleFailed, fmt.Sprintf("dual document has %d pages, want %d", got, want), nil)
	}
	return dual, nil
}

// WriteDocument serializes doc and writes it to path.
func (a *Assembler) WriteDocument(doc docmodel.Document, path string) error {
	data, err := doc.Save(a.Compress)
	if err != nil {
		return NewPDFError(ErrAssembleFailed, "failed to serialize document", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewPDFError(ErrAssembleFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	logger.Info("document written", logger.String("path", path), logger.Int("bytes", len(data)))
	return nil
}

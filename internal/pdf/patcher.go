package pdf

import (
	"fmt"
	"strings"

	"pdf-translator/internal/docmodel"
	"pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
)

// ResourcePatcher embeds the translation font and binds it into every
// font dictionary of the document, so content emitted by the rewrite
// engine resolves no matter which resource context draws it.
type ResourcePatcher struct {
	classifier *errors.Classifier
}

// NewResourcePatcher creates a patcher. classifier may be nil, in which
// case per-object failures are silently dropped instead of recorded.
func NewResourcePatcher(classifier *errors.Classifier) *ResourcePatcher {
	return &ResourcePatcher{classifier: classifier}
}

// Patch embeds prog under name on every page and then sweeps every
// object, binding the font wherever a Font or Resources/Font dictionary
// exists and the name is still unbound. Repeating the sweep is a no-op.
// Per-object failures are recorded and swallowed; only a failed
// embedding aborts.
func (p *ResourcePatcher) Patch(doc docmodel.Document, name string, prog docmodel.FontProgram) (int, error) {
	fontID := 0
	for i := 0; i < doc.PageCount(); i++ {
		page, err := doc.Page(i)
		if err != nil {
			return 0, NewPDFErrorWithPage(ErrPatchFailed, fmt.Sprintf("page %d missing during font embedding", i+1), i+1, err)
		}
		id, err := page.EmbedFont(name, prog)
		if err != nil {
			return 0, NewPDFErrorWithPage(ErrPatchFailed, fmt.Sprintf("failed to embed font on page %d", i+1), i+1, err)
		}
		fontID = id
	}
	if fontID == 0 {
		return 0, nil
	}

	ref := fmt.Sprintf("%d 0 R", fontID)
	bound := 0
	for _, objID := range doc.ObjectIDs() {
		bound += p.bindObject(doc, objID, name, ref)
	}

	logger.Debug("font bound across document",
		logger.String("font", name),
		logger.Int("fontObject", fontID),
		logger.Int("dictsBound", bound))
	return fontID, nil
}

// bindObject binds the font in the object's Font and Resources/Font
// dictionaries when present. Returns the number of entries added.
func (p *ResourcePatcher) bindObject(doc docmodel.Document, objID int, name, ref string) int {
	added := 0
	for _, prefix := range []string{"Resources/", ""} {
		kind, _, err := doc.GetKey(objID, prefix+"Font")
		if err != nil {
			p.record(doc, objID, prefix+"Font", kind, err)
			continue
		}
		if kind != docmodel.KindDict {
			continue
		}

		path := prefix + "Font/" + name
		nameKind, _, err := doc.GetKey(objID, path)
		if err != nil {
			p.record(doc, objID, path, nameKind, err)
			continue
		}
		if nameKind != docmodel.KindNull {
			continue
		}

		if err := doc.SetKey(objID, path, ref); err != nil {
			p.record(doc, objID, path, nameKind, err)
			continue
		}
		added++
	}
	return added
}

func (p *ResourcePatcher) record(doc docmodel.Document, objID int, path, kind string, err error) {
	if p.classifier == nil {
		return
	}
	p.classifier.Record(p.objectFacts(doc, objID, path, kind), err)
}

// objectFacts gathers what the classifier needs to tell page-like
// objects apart from annotation-like ones.
func (p *ResourcePatcher) objectFacts(doc docmodel.Document, objID int, path, kind string) errors.ObjectFacts {
	facts := errors.ObjectFacts{ID: objID, Path: path, Kind: kind}
	if k, v, err := doc.GetKey(objID, "Type"); err == nil && k == docmodel.KindName {
		facts.Type = strings.TrimPrefix(v, "/")
	}
	if k, _, err := doc.GetKey(objID, "Contents"); err == nil && k != docmodel.KindNull {
		facts.HasContents = true
	}
	return facts
}

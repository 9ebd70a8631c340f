package docmodel

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-translator/internal/logger"
)

// Load reads a PDF file into a MemDoc. Page dictionaries are copied with
// inherited attributes consolidated, together with the deep object
// subgraph each page references; objects shared between pages stay
// shared. Page content streams are stored decoded, every other stream
// passes through raw with its original filters.
func Load(path string) (*MemDoc, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc := NewMemDoc()
	c := &graphCopier{
		ctx:   ctx,
		doc:   doc,
		idMap: make(map[types.IndirectRef]int),
	}

	// Allocate ids for all pages up front so destinations and annotations
	// that point at pages resolve to the pages themselves instead of
	// dragging in extra copies through the source page tree.
	pageCount := ctx.PageCount
	pageDicts := make([]types.Dict, pageCount)
	pageIDs := make([]int, pageCount)
	for i := 0; i < pageCount; i++ {
		pageDict, pageRef, _, err := ctx.PageDict(i+1, true)
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i+1, path, err)
		}
		if pageDict == nil {
			return nil, fmt.Errorf("page %d of %s has no dictionary", i+1, path)
		}
		pageDicts[i] = pageDict
		pageIDs[i] = doc.alloc()
		if pageRef != nil {
			c.idMap[*pageRef] = pageIDs[i]
		}
	}

	for i, pageDict := range pageDicts {
		pd := make(Dict, len(pageDict)+1)
		for k, v := range pageDict {
			if k == "Parent" {
				continue
			}
			copied, err := c.copyValue(v, k == "Contents")
			if err != nil {
				return nil, fmt.Errorf("copy page %d entry %s: %w", i+1, k, err)
			}
			pd[k] = copied
		}
		pd["Type"] = Name("Page")
		pd["Parent"] = Ref(doc.pagesID)
		doc.objects[pageIDs[i]] = pd
		doc.pageIDs = append(doc.pageIDs, pageIDs[i])
	}

	logger.Debug("document loaded",
		logger.String("file", filepath.Base(path)),
		logger.Int("pages", doc.PageCount()),
		logger.Int("objects", len(doc.objects)))
	return doc, nil
}

// graphCopier deep-copies pdfcpu object graphs into a MemDoc while
// preserving shared-object identity.
type graphCopier struct {
	ctx   *model.Context
	doc   *MemDoc
	idMap map[types.IndirectRef]int
}

func (c *graphCopier) copyValue(obj types.Object, asContent bool) (Object, error) {
	switch o := obj.(type) {
	case nil:
		return Null{}, nil
	case types.IndirectRef:
		if id, ok := c.idMap[o]; ok {
			return Ref(id), nil
		}
		id := c.doc.alloc()
		c.idMap[o] = id
		target, err := c.ctx.Dereference(o)
		if err != nil {
			return nil, fmt.Errorf("dereference %s: %w", o, err)
		}
		copied, err := c.copyValue(target, asContent)
		if err != nil {
			return nil, err
		}
		c.doc.objects[id] = copied
		return Ref(id), nil
	case types.Dict:
		d := make(Dict, len(o))
		for k, v := range o {
			copied, err := c.copyValue(v, false)
			if err != nil {
				return nil, err
			}
			d[k] = copied
		}
		return d, nil
	case types.Array:
		a := make(Array, len(o))
		for i, v := range o {
			copied, err := c.copyValue(v, asContent)
			if err != nil {
				return nil, err
			}
			a[i] = copied
		}
		return a, nil
	case types.StreamDict:
		return c.copyStream(&o, asContent)
	case *types.StreamDict:
		return c.copyStream(o, asContent)
	case types.Name:
		return Name(string(o)), nil
	case types.Integer:
		return Integer(int(o)), nil
	case types.Float:
		return Real(float64(o)), nil
	case types.Boolean:
		return Bool(bool(o)), nil
	case types.StringLiteral:
		return Str([]byte(string(o))), nil
	case types.HexLiteral:
		return Str(decodeHexLiteral(string(o))), nil
	default:
		// Exotic object kinds degrade to null rather than failing the load.
		logger.Debug("unsupported object kind degraded to null",
			logger.String("type", fmt.Sprintf("%T", obj)))
		return Null{}, nil
	}
}

func (c *graphCopier) copyStream(sd *types.StreamDict, asContent bool) (Object, error) {
	dict := make(Dict, len(sd.Dict))
	for k, v := range sd.Dict {
		if k == "Length" {
			continue
		}
		if asContent && (k == "Filter" || k == "DecodeParms") {
			continue
		}
		copied, err := c.copyValue(v, false)
		if err != nil {
			return nil, err
		}
		dict[k] = copied
	}

	if asContent {
		if len(sd.Content) == 0 && len(sd.Raw) > 0 {
			if err := sd.Decode(); err != nil {
				return nil, fmt.Errorf("decode content stream: %w", err)
			}
		}
		data := sd.Content
		if len(data) == 0 {
			data = sd.Raw
		}
		return &Stream{Dict: dict, Data: bytes.Clone(data)}, nil
	}

	raw := sd.Raw
	if len(raw) == 0 && len(sd.Content) > 0 {
		// Some streams only expose decoded bytes; store them plain.
		delete(dict, "Filter")
		delete(dict, "DecodeParms")
		raw = sd.Content
	}
	return &Stream{Dict: dict, Data: bytes.Clone(raw)}, nil
}

func decodeHexLiteral(s string) []byte {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f':
			return -1
		}
		return r
	}, s)
	if len(cleaned)%2 == 1 {
		cleaned += "0"
	}
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return []byte(s)
	}
	return decoded
}

package fonts

import "golang.org/x/text/language"

// Mapping picks the font for an output language. Scripts without a
// registered font fall back to the session default, so the common
// single-font configuration needs no registration at all.
type Mapping struct {
	byScript map[string]Descriptor
	fallback Descriptor
}

// NewMapping creates a mapping that answers fallback for every language.
func NewMapping(fallback Descriptor) *Mapping {
	return &Mapping{
		byScript: make(map[string]Descriptor),
		fallback: fallback,
	}
}

// Register binds an ISO 15924 script code (e.g. "Hans", "Jpan") to a font.
func (m *Mapping) Register(script string, d Descriptor) {
	m.byScript[script] = d
}

// FontFor returns the font for a BCP 47 language tag such as "zh-CN".
// Unparseable tags and unregistered scripts resolve to the fallback.
func (m *Mapping) FontFor(lang string) Descriptor {
	tag, err := language.Parse(lang)
	if err != nil {
		return m.fallback
	}
	script, _ := tag.Script()
	if d, ok := m.byScript[script.String()]; ok {
		return d
	}
	return m.fallback
}

// Package errors classifies and tracks per-object failures during
// resource patching. Failures never abort a scan; the classifier decides
// which ones are worth surfacing.
package errors

import (
	"fmt"
	"sync"
	"time"

	"pdf-translator/internal/logger"
)

// Class separates failures the patcher expects from ones it does not.
type Class string

const (
	// ClassExpected covers objects that legitimately carry no usable
	// font resources: annotation appearances, shading dictionaries,
	// metadata streams and the like. These fail silently.
	ClassExpected Class = "expected"

	// ClassUnexpected covers page-like objects whose resource structure
	// is malformed. These are logged and counted but still swallowed.
	ClassUnexpected Class = "unexpected"
)

// ObjectFacts captures what the patcher saw before a binding failed.
type ObjectFacts struct {
	ID          int    // indirect object id
	Type        string // value of the object's /Type name, if any
	HasContents bool   // object carries a /Contents entry
	Path        string // dictionary path that was probed, e.g. "Resources/Font"
	Kind        string // value kind found at that path
}

// Failure is one recorded patching failure.
type Failure struct {
	ObjectID  int       `json:"object_id"`
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	Class     Class     `json:"class"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Classifier records patching failures and keeps per-class counts.
// Safe for concurrent use.
type Classifier struct {
	mu       sync.RWMutex
	failures []Failure
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// pageLike reports whether the object plausibly renders content. Pages
// and form XObjects are expected to have well-formed resources; anything
// else may carry arbitrary structure.
func pageLike(facts ObjectFacts) bool {
	switch facts.Type {
	case "Page", "Pages", "XObject":
		return true
	}
	return facts.HasContents
}

// Record classifies and stores one failure, returning its class.
// Unexpected failures are logged; expected ones only counted.
func (c *Classifier) Record(facts ObjectFacts, err error) Class {
	class := ClassExpected
	if pageLike(facts) {
		class = ClassUnexpected
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	} else {
		msg = fmt.Sprintf("unusable %s entry at %s", facts.Kind, facts.Path)
	}

	c.mu.Lock()
	c.failures = append(c.failures, Failure{
		ObjectID:  facts.ID,
		Path:      facts.Path,
		Kind:      facts.Kind,
		Class:     class,
		Message:   msg,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()

	if class == ClassUnexpected {
		logger.Warn("font binding failed on page-like object",
			logger.Int("objectID", facts.ID),
			logger.String("type", facts.Type),
			logger.String("path", facts.Path),
			logger.String("kind", facts.Kind),
			logger.String("error", msg))
	}

	return class
}

// Counts returns the number of expected and unexpected failures.
func (c *Classifier) Counts() (expected, unexpected int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, f := range c.failures {
		if f.Class == ClassExpected {
			expected++
		} else {
			unexpected++
		}
	}
	return expected, unexpected
}

// Failures returns copies of all recorded failures.
func (c *Classifier) Failures() []Failure {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// Unexpected returns only the failures worth reporting.
func (c *Classifier) Unexpected() []Failure {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Failure
	for _, f := range c.failures {
		if f.Class == ClassUnexpected {
			out = append(out, f)
		}
	}
	return out
}

// Reset clears all recorded failures.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
}

// Package translate turns extracted text blocks into translated text.
// It batches blocks to fit a model context window, fans batches out to a
// chat-completion service with retry and per-block fallback, and caches
// results keyed by content hash.
package translate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// BatchSeparator is the delimiter used to separate text blocks in a batch for translation
const BatchSeparator = "\n---BLOCK_SEPARATOR---\n"

// DefaultContextWindow is the default context window size in characters
const DefaultContextWindow = 4000

// DefaultConcurrency is the default number of concurrent batch translations
const DefaultConcurrency = 3

// DefaultTimeout is the default HTTP client timeout
const DefaultTimeout = 180 * time.Second

// DefaultMaxRetries is the default maximum number of retry attempts for API errors
const DefaultMaxRetries = 3

// BaseRetryDelay is the base delay between retries (exponential backoff)
const BaseRetryDelay = 2 * time.Second

// Block is one unit of text to translate. ID must be unique within a
// single translation request.
type Block struct {
	ID   string
	Text string
}

// Result pairs a block with its translation. Translated is empty when
// the block could not be translated.
type Result struct {
	Block
	Translated string
	FromCache  bool
}

// Service translates one piece of text. The text may contain several
// blocks joined by BatchSeparator; implementations must instruct the
// model to keep the separators intact.
type Service interface {
	Translate(ctx context.Context, text string) (string, error)
	Name() string
}

// Config holds the settings shared by service implementations.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	LangIn  string
	LangOut string
	Timeout time.Duration
}

func (c Config) langPair() (string, string) {
	in := c.LangIn
	if in == "" {
		in = "en"
	}
	out := c.LangOut
	if out == "" {
		out = "zh-CN"
	}
	return languageName(in), languageName(out)
}

// languageName renders a configured language for use in a prompt. BCP 47
// tags become their English display name; anything else passes through.
func languageName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}

func buildSystemPrompt(langIn, langOut string) string {
	return fmt.Sprintf(`You are a professional translator specializing in academic and scientific documents.
Your task is to translate text extracted from PDF documents from %s to %s.

CRITICAL RULES:
1. Translate the text content from %s to %s accurately.
2. Preserve any mathematical formulas, symbols, or special characters exactly as they are.
3. Follow the punctuation conventions of the target language.
4. Do not add any explanations or notes - output only the translated text.
5. IMPORTANT: The input may contain multiple text blocks separated by "`+BatchSeparator+`".
6. You MUST preserve these separators in your output exactly as they appear.
7. Each block should be translated independently but the separators must remain intact.
8. Do not merge blocks or remove separators.`, langIn, langOut, langIn, langOut)
}

func buildUserPrompt(langIn, langOut, batchText string) string {
	return fmt.Sprintf(`Translate the following text from %s to %s.
If there are multiple blocks separated by "%s", translate each block separately and keep the separators in your output.

%s`, langIn, langOut, BatchSeparator, batchText)
}

// RequestError describes a failed translation API call.
type RequestError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *RequestError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Retryable reports whether the call may succeed on another attempt.
// Authentication failures and invalid requests never will; rate limits,
// server errors and transport failures might.
func (e *RequestError) Retryable() bool {
	switch e.StatusCode {
	case 400, 401, 403:
		return false
	}
	return true
}

// Package types defines core data types and enums shared across the
// PDF translator application.
package types

// Config holds the application configuration.
type Config struct {
	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url"` // base URL of an OpenAI-compatible API
	OpenAIModel   string `json:"openai_model"`
	Service       string `json:"service"` // translation backend: "openai" or "eino"

	SourceLang string `json:"source_lang"` // language of the input documents
	TargetLang string `json:"target_lang"` // language to translate into

	// ContextWindow bounds the size of a translation batch, in tokens.
	ContextWindow int `json:"context_window"`
	// Concurrency is the number of translation batches in flight at once.
	Concurrency int `json:"concurrency"`

	// RenderDPI is the resolution used when rasterizing pages for layout
	// detection.
	RenderDPI int `json:"render_dpi"`
	// DetectorModelPath points at the layout model weights. Empty selects
	// the text-layer heuristic detector.
	DetectorModelPath string `json:"detector_model_path"`

	// FontDirs are extra directories searched before the platform font
	// locations.
	FontDirs []string `json:"font_dirs,omitempty"`
	// FontCacheDir overrides where the fallback font is stored.
	FontCacheDir string `json:"font_cache_dir,omitempty"`

	WorkDirectory string `json:"work_directory"`
	// DisableCache turns off the translation cache.
	DisableCache bool `json:"disable_cache"`
}

// SourceType classifies a translation input.
type SourceType string

const (
	SourceTypeURL      SourceType = "url"
	SourceTypeLocalPDF SourceType = "local_pdf"
)

// SourceInfo describes where a document came from.
type SourceInfo struct {
	SourceType  SourceType `json:"source_type"`
	OriginalRef string     `json:"original_ref"` // URL or path as given by the user
	LocalPath   string     `json:"local_path"`   // on-disk PDF actually processed
}

// ProcessResult is the outcome of translating one document.
type ProcessResult struct {
	SourceInfo    *SourceInfo `json:"source_info"`
	MonoPDFPath   string      `json:"mono_pdf_path"`
	DualPDFPath   string      `json:"dual_pdf_path,omitempty"`
	PageCount     int         `json:"page_count"`
	PageCountOK   bool        `json:"page_count_ok"` // output page counts matched the original
	CacheHits     int         `json:"cache_hits"`
	ElapsedMillis int64       `json:"elapsed_ms"`
}

// ErrorCode identifies an application-level failure class.
type ErrorCode string

const (
	ErrNetwork      ErrorCode = "NETWORK_ERROR"
	ErrDownload     ErrorCode = "DOWNLOAD_ERROR"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrAPICall      ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit ErrorCode = "API_RATE_LIMIT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrTranslation  ErrorCode = "TRANSLATION_ERROR"
)

// AppError is an application error with a stable code.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError with the given code, message and cause.
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates an AppError carrying extra detail text.
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

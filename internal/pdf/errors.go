// Package pdf drives the page-by-page translation of PDF documents:
// rendering and layout detection, content-stream rewriting, font and
// resource patching, and bilingual assembly.
package pdf

// PDFErrorCode identifies a pipeline failure class.
type PDFErrorCode string

const (
	ErrPDFNotFound    PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid     PDFErrorCode = "PDF_INVALID"
	ErrPDFNoText      PDFErrorCode = "PDF_NO_TEXT"
	ErrRenderFailed   PDFErrorCode = "RENDER_FAILED"
	ErrDetectFailed   PDFErrorCode = "DETECT_FAILED"
	ErrFontResolve    PDFErrorCode = "FONT_RESOLVE_FAILED"
	ErrStructural     PDFErrorCode = "STRUCTURAL_FAILED"
	ErrPatchFailed    PDFErrorCode = "PATCH_FAILED"
	ErrAssembleFailed PDFErrorCode = "ASSEMBLE_FAILED"
	ErrAPIFailed      PDFErrorCode = "API_FAILED"
	ErrCacheFailed    PDFErrorCode = "CACHE_FAILED"
	ErrCancelled      PDFErrorCode = "CANCELLED"
)

// PDFError is a pipeline error with a stable code and optional page.
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPDFErrorWithPage creates a new PDFError with page information
func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

package pdf

// Phase is a stage of the translation pipeline.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLoading     Phase = "loading"
	PhaseExtracting  Phase = "extracting"
	PhaseTranslating Phase = "translating"
	PhaseGenerating  Phase = "generating"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// Status is a snapshot of the pipeline state.
type Status struct {
	Phase          Phase  `json:"phase"`
	Progress       int    `json:"progress"` // 0-100
	Message        string `json:"message"`
	TotalPages     int    `json:"total_pages"`
	CompletedPages int    `json:"completed_pages"`
	CachedBlocks   int    `json:"cached_blocks"`
	Error          string `json:"error,omitempty"`
}

// IsValidPhase checks if the given phase is a valid Phase
func IsValidPhase(phase Phase) bool {
	switch phase {
	case PhaseIdle, PhaseLoading, PhaseExtracting,
		PhaseTranslating, PhaseGenerating, PhaseComplete, PhaseError:
		return true
	default:
		return false
	}
}

// IsValidStatus checks if the Status has valid values
func (s *Status) IsValidStatus() bool {
	return IsValidPhase(s.Phase) &&
		s.Progress >= 0 && s.Progress <= 100 &&
		s.CompletedPages <= s.TotalPages
}

// clampProgress keeps a progress value inside 0-100.
func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

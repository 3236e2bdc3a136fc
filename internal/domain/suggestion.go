package domain

// ============================================================
// Smart suggestions (LLM)
// ============================================================

// Supported suggestion languages.
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
)

// SuggestionRequest is what the generator needs to personalise advice.
type SuggestionRequest struct {
	Balance  float64 `json:"balance"`
	Name     string  `json:"name"`
	Gender   string  `json:"gender"`
	Language string  `json:"language"`
}

// Suggestion is the model answer returned to the dashboard.
type Suggestion struct {
	Answer     string     `json:"answer"`
	Balance    float64    `json:"balance"`
	Language   string     `json:"language"`
	Fallback   bool       `json:"fallback"`
	TokensUsed TokenUsage `json:"-"`
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

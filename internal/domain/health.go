package domain

// ============================================================
// Health API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// SuccessResponse wraps a successful mutation response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MetricsSnapshot is the JSON view of the process counters.
type MetricsSnapshot struct {
	Mutations        map[string]float64 `json:"mutations"`
	CacheHitRate     float64            `json:"cacheHitRate"`
	PromptTokens     int64              `json:"promptTokens"`
	CompletionTokens int64              `json:"completionTokens"`
	Suggestions      int64              `json:"suggestions"`
	SuggestionErrors int64              `json:"suggestionErrors"`
}

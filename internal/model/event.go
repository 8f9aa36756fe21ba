package model

// Event kinds written to the pipeline event stream.
const (
	EventKindMetrics      = "metrics"
	EventKindQuery        = "query"
	EventKindError        = "error"
	EventKindHistoryExtra = "history_extra"
)

// Error event categories.
const (
	ErrorTypeResponse = "RESPONSE"
	ErrorTypeSystem   = "SYSTEM"
)

// MetricsEvent records token usage and latency for one completed AI turn.
type MetricsEvent struct {
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	LLMNo          string `json:"llm_no"`
	InputTokens    int    `json:"input_tokens"`
	OutputTokens   int    `json:"output_tokens"`
	TotalTokens    int    `json:"total_tokens"`
	ResponseTimeMS int64  `json:"response_time_ms"`
}

// HistoryExtraEvent carries the generation metadata of one persisted AI
// message, keyed by message_no.
type HistoryExtraEvent struct {
	MessageNo      string      `json:"message_no"`
	UserID         string      `json:"user_id"`
	SessionID      string      `json:"session_id"`
	LLMNo          string      `json:"llm_no,omitempty"`
	Model          string      `json:"model,omitempty"`
	Usage          TokenUsage  `json:"usage"`
	ResponseTimeMS int64       `json:"response_time_ms"`
	References     []Reference `json:"references,omitempty"`
}

// QueryEvent records an incoming user query.
type QueryEvent struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	LLM       string `json:"llm"`
	Query     string `json:"query"`
}

// ErrorEvent records a pipeline failure, either one surfaced to the user
// (RESPONSE) or an internal one (SYSTEM).
type ErrorEvent struct {
	ErrorCode string `json:"error_code"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	LLMNo     string `json:"llm_no,omitempty"`
	Query     string `json:"query,omitempty"`
}

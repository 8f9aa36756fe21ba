package model

import "time"

// Chat roles stored in the history collection.
const (
	RoleHuman = "HUMAN"
	RoleAI    = "AI"
)

// Reference points an AI answer back at a source document.
type Reference struct {
	FileNo      string `json:"file_no" bson:"FILE_NO"`
	Name        string `json:"name" bson:"NAME"`
	Title       string `json:"title,omitempty" bson:"TITLE,omitempty"`
	Type        string `json:"type,omitempty" bson:"TYPE,omitempty"`
	Index       int    `json:"index" bson:"INDEX"`
	DownloadURL string `json:"download_url,omitempty" bson:"DOWNLOAD_URL,omitempty"`
	Snippet     string `json:"snippet,omitempty" bson:"SNIPPET,omitempty"`
}

// ChatMessage is one row in the MESSAGE history collection. Token counts,
// latency, llm_no and references are present on AI rows only; for AI rows
// total_tokens = input_tokens + output_tokens when both are present.
type ChatMessage struct {
	MessageNo      string      `json:"message_no" bson:"MESSAGE_NO"`
	SessionNo      string      `json:"session_no" bson:"SESSION_NO"`
	UserNo         string      `json:"user_no" bson:"USER_NO"`
	Role           string      `json:"role" bson:"ROLE"`
	Content        string      `json:"content" bson:"CONTENT"`
	CreatedAt      time.Time   `json:"created_at" bson:"CREATED_AT"`
	LLMNo          string      `json:"llm_no,omitempty" bson:"LLM_NO,omitempty"`
	InputTokens    int         `json:"input_tokens,omitempty" bson:"INPUT_TOKENS,omitempty"`
	OutputTokens   int         `json:"output_tokens,omitempty" bson:"OUTPUT_TOKENS,omitempty"`
	TotalTokens    int         `json:"total_tokens,omitempty" bson:"TOTAL_TOKENS,omitempty"`
	ResponseTimeMS int64       `json:"response_time_ms,omitempty" bson:"RESPONSE_TIME_MS,omitempty"`
	References     []Reference `json:"references,omitempty" bson:"REFERENCES,omitempty"`
}

// TokenUsage aggregates prompt and completion token counts for one
// generation call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// PendingAIPayload is the per-request handoff from the generator to the
// history sink: references, token usage, latency, and the model that
// produced the turn. It lives inside the request context and never
// outlives the request.
type PendingAIPayload struct {
	References     []Reference `json:"references"`
	Usage          TokenUsage  `json:"usage"`
	ResponseTimeMS int64       `json:"response_time_ms"`
	LLMNo          string      `json:"llm_no"`
	Model          string      `json:"model"`
}

package model

import "time"

// TokenUsage is a token-bucket total as reported by an adapter invocation.
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens,omitempty"`
	OutputTokens             int64 `json:"output_tokens,omitempty"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// ModelUsage is the per-model breakdown of a single invocation's spend.
type ModelUsage struct {
	InputTokens          int64   `json:"inputTokens,omitempty"`
	OutputTokens         int64   `json:"outputTokens,omitempty"`
	CacheReadInputTokens int64   `json:"cacheReadInputTokens,omitempty"`
	CacheCreationTokens  int64   `json:"cacheCreationInputTokens,omitempty"`
	CostUSD              float64 `json:"costUSD,omitempty"`
}

// HistoryEntry is one append-only record in
// comms/history/YYYY-MM-DD-{actor}.jsonl.
type HistoryEntry struct {
	Timestamp   time.Time             `json:"ts"`
	RequestID   string                `json:"request_id"`
	FromStatus  RequestStatus         `json:"from_status"`
	ToStatus    RequestStatus         `json:"to_status"`
	Actor       string                `json:"actor"`
	DirectiveID string                `json:"directive_id,omitempty"`
	Detail      string                `json:"detail,omitempty"`
	DurationMs  int64                 `json:"duration_ms,omitempty"`
	CostUSD     float64               `json:"cost_usd,omitempty"`
	NumTurns    int                   `json:"num_turns,omitempty"`
	Usage       *TokenUsage           `json:"usage,omitempty"`
	ModelUsage  map[string]ModelUsage `json:"model_usage,omitempty"`
}

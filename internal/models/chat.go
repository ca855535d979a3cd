package models

// ChatRequest is the inbound turn payload.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatReply is the per-turn result. Sources and ToolCalls are always present
// (possibly empty) so callers never need nil handling.
type ChatReply struct {
	Answer    string           `json:"answer"`
	Sources   []string         `json:"sources"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

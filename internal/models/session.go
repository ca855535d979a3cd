package models

import "time"

// Session groups the messages of one conversation. The identifier is
// client-supplied and opaque; it stays stable for the conversation's lifetime.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

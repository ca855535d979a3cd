package models

import "time"

// ActionCancelOrder is the only action type the orchestrator knows how to run.
const ActionCancelOrder = "cancel_order"

// Slot names for cancel_order.
const (
	SlotOrderNumber = "order_number"
	SlotReason      = "reason"
)

// PendingAction is the in-progress record of a multi-turn action still
// waiting for slots. A session holds at most one; it is cleared the moment
// the action executes, whatever the outcome.
type PendingAction struct {
	ActionType string            `json:"action_type"`
	Slots      map[string]string `json:"slots"`
	// Prompted tracks which slots the assistant already asked a follow-up
	// for, so placeholder defaults apply only after one prompt.
	Prompted  map[string]bool `json:"prompted"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPendingAction builds a pending action seeded with the given slots.
func NewPendingAction(actionType string, slots map[string]string) *PendingAction {
	pa := &PendingAction{
		ActionType: actionType,
		Slots:      make(map[string]string, len(slots)),
		Prompted:   make(map[string]bool),
		CreatedAt:  time.Now().UTC(),
	}
	for name, value := range slots {
		if value != "" {
			pa.Slots[name] = value
		}
	}
	return pa
}

// ToolCallRecord is the audit entry for one external action invocation.
// Immutable once created; attached to the assistant reply of the turn that
// made the call.
type ToolCallRecord struct {
	ToolName       string            `json:"tool_name"`
	Endpoint       string            `json:"endpoint"`
	Method         string            `json:"method"`
	RequestData    map[string]string `json:"request_data"`
	ResponseStatus *int              `json:"response_status"`
	ResponseData   string            `json:"response_data"`
	Error          *string           `json:"error"`
}

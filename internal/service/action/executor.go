package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deskchat/internal/models"
)

// Outcome classifies one external action invocation.
type Outcome string

const (
	OutcomeCancelled Outcome = "cancelled"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "action_failed"
)

// DefaultTimeout bounds the external call so a hung order service cannot
// block the turn.
const DefaultTimeout = 8 * time.Second

// Executor invokes the external order-cancellation service. One attempt per
// call, no retries; the caller gets the full request/response/error triple
// back whatever happens.
type Executor struct {
	baseURL string
	client  *http.Client
}

// NewExecutor builds the executor for the given order API base URL.
func NewExecutor(baseURL string, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Execute runs the action with the filled slots and classifies the result.
// The returned record is complete for audit regardless of outcome; the error
// return covers only caller misuse (unknown action type).
func (e *Executor) Execute(ctx context.Context, actionType string, slots map[string]string) (Outcome, models.ToolCallRecord, error) {
	if actionType != models.ActionCancelOrder {
		return "", models.ToolCallRecord{}, fmt.Errorf("unsupported action type: %s", actionType)
	}

	endpoint := e.baseURL + "/cancel"
	payload := map[string]string{
		models.SlotOrderNumber: slots[models.SlotOrderNumber],
		models.SlotReason:      slots[models.SlotReason],
	}
	record := models.ToolCallRecord{
		ToolName:    models.ActionCancelOrder,
		Endpoint:    endpoint,
		Method:      http.MethodPost,
		RequestData: payload,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", models.ToolCallRecord{}, fmt.Errorf("encode cancel request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", models.ToolCallRecord{}, fmt.Errorf("build cancel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		msg := fmt.Sprintf("order service unreachable: %v", err)
		record.Error = &msg
		return OutcomeFailed, record, nil
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	record.ResponseStatus = &status
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := fmt.Sprintf("read order service response: %v", err)
		record.Error = &msg
		return OutcomeFailed, record, nil
	}

	if status >= 200 && status < 300 {
		record.ResponseData = strings.TrimSpace(string(respBody))
		if record.ResponseData == "" {
			record.ResponseData = "Order cancelled successfully"
		}
		return OutcomeCancelled, record, nil
	}

	// the downstream answered and declined: keep its body verbatim
	record.ResponseData = string(respBody)
	return OutcomeRejected, record, nil
}

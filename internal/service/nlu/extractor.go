package nlu

import (
	"regexp"
	"strings"

	"deskchat/internal/models"
)

// Intent classifies one inbound message.
type Intent string

const (
	IntentCancellation Intent = "cancellation"
	IntentGeneralQuery Intent = "general_query"
)

// Result is the extractor output for a single message. Slots holds only the
// values actually found; an absent slot is an absent key, never a default.
type Result struct {
	Intent Intent
	Slots  map[string]string
}

// Extractor turns free text into an intent plus structured slots. The
// pattern implementation below is swappable for a model-based one behind the
// same contract.
type Extractor interface {
	Extract(message string, pending *models.PendingAction) Result
}

var (
	orderNumberRe = regexp.MustCompile(`(?i)(ORD-?\d+|\b\d{3,}\b)`)
	cancelVerbRe  = regexp.MustCompile(`(?i)\b(cancel|cancels|cancelled|canceled|cancelling|canceling|cancellation)\b`)
	refundRe      = regexp.MustCompile(`(?i)\brefunds?\b`)
	causalRe      = regexp.MustCompile(`(?i)\b(?:because|since|reason[:\-]?)\s+(.+)`)
	reasonWordRe  = regexp.MustCompile(`(?i)\b(damaged|broken|defective|faulty|wrong item|wrong size|too late|arrived late|changed my mind|no longer need(?:ed)?|don'?t need|poor quality|not as described|doesn'?t fit)\b`)
	digitsOnlyRe  = regexp.MustCompile(`^\d+$`)
	greetingRe    = regexp.MustCompile(`(?i)\b(hello|hi|hey|good (?:morning|afternoon|evening))\b`)
)

// HasCancellationMarkers reports whether the message carries cancellation
// vocabulary at all, independent of the intent decision. The composer uses
// it to offer the cancellation workflow after answering a policy question.
func HasCancellationMarkers(message string) bool {
	return cancelVerbRe.MatchString(message) || refundRe.MatchString(message)
}

// PatternExtractor is the default regex-backed extraction strategy.
type PatternExtractor struct{}

// NewPatternExtractor returns the default extractor.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract classifies the message and pulls whatever slots it can find.
// Extraction is best-effort: absence is reported by omitting the slot, never
// by an error.
func (e *PatternExtractor) Extract(message string, pending *models.PendingAction) Result {
	message = strings.TrimSpace(message)
	continuation := pending != nil && pending.ActionType == models.ActionCancelOrder

	res := Result{Intent: IntentGeneralQuery, Slots: make(map[string]string)}
	switch {
	case continuation:
		// an active cancel_order action treats any reply as slot filling
		res.Intent = IntentCancellation
	case cancelVerbRe.MatchString(message):
		res.Intent = IntentCancellation
	case refundRe.MatchString(message) && orderNumberRe.MatchString(message):
		// the bare "refund" noun reads as a policy topic ("what is your
		// refund policy?"); it becomes a request only once an order is named
		res.Intent = IntentCancellation
	}
	if res.Intent != IntentCancellation {
		return res
	}

	if m := orderNumberRe.FindString(message); m != "" {
		res.Slots[models.SlotOrderNumber] = strings.ToUpper(strings.TrimSpace(m))
	}
	if reason, ok := e.extractReason(message, pending); ok {
		res.Slots[models.SlotReason] = reason
	}
	return res
}

func (e *PatternExtractor) extractReason(message string, pending *models.PendingAction) (string, bool) {
	if m := causalRe.FindStringSubmatch(message); m != nil {
		if reason := strings.TrimSpace(m[1]); validReason(reason) {
			return reason, true
		}
	}

	// A reply to a just-asked "why are you cancelling" follow-up is the
	// reason verbatim, unless it reads like an order number instead.
	if pending != nil && pending.Prompted[models.SlotReason] {
		if validReason(message) && !looksLikeOrderReference(message) {
			return message, true
		}
		return "", false
	}

	if m := reasonWordRe.FindString(message); m != "" {
		return strings.ToLower(m), true
	}

	// Otherwise only a short standalone phrase passes as a reason.
	if len(strings.Fields(message)) <= 3 && validReason(message) && !looksLikeOrderReference(message) {
		return message, true
	}
	return "", false
}

func validReason(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || digitsOnlyRe.MatchString(candidate) {
		return false
	}
	// greetings and bare cancellation chatter are not reasons
	if cancelVerbRe.MatchString(candidate) || refundRe.MatchString(candidate) || greetingRe.MatchString(candidate) {
		return false
	}
	return true
}

func looksLikeOrderReference(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "order") || strings.Contains(lower, "number") {
		return true
	}
	// e.g. "ORD-77210" or "it is 77210"
	trimmed := orderNumberRe.ReplaceAllString(message, "")
	return len(strings.Fields(trimmed)) <= 2 && orderNumberRe.MatchString(message)
}

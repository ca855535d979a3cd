package orchestrator

import (
	"fmt"
	"strings"

	"deskchat/internal/models"
	"deskchat/internal/service/action"
)

// Branch texts. The composer guarantees an answer for every turn: action
// outcome first, then follow-up question, then knowledge answer, each with
// its own degraded fallback.

const (
	noKnowledgeAnswer = "Sorry, I could not find any relevant information for that. " +
		"Please try again later or contact customer service."
	trackerFailureAnswer = "Sorry, something went wrong while processing your request. " +
		"Please try again."
	cancellationOffer = "If you share your order number and the cancellation reason, " +
		"I can process the cancellation for you right here."
)

func emptyReply(answer string) *models.ChatReply {
	return &models.ChatReply{
		Answer:    answer,
		Sources:   []string{},
		ToolCalls: []models.ToolCallRecord{},
	}
}

func composeActionReply(outcome action.Outcome, record models.ToolCallRecord, slots map[string]string, passages []models.Passage) *models.ChatReply {
	orderNumber := slots[models.SlotOrderNumber]
	reason := slots[models.SlotReason]

	var answer string
	switch outcome {
	case action.OutcomeCancelled:
		answer = fmt.Sprintf("Your order %s has been cancelled. Reason noted: %s.", orderNumber, reason)
	case action.OutcomeRejected:
		status := 0
		if record.ResponseStatus != nil {
			status = *record.ResponseStatus
		}
		answer = fmt.Sprintf("Order %s could not be cancelled (status %d): %s",
			orderNumber, status, strings.TrimSpace(record.ResponseData))
	default:
		answer = fmt.Sprintf("The cancellation of order %s could not be completed right now. "+
			"Please try again later.", orderNumber)
	}

	if supplement := passageContext(passages); supplement != "" {
		answer += "\n\n" + supplement
	}
	return &models.ChatReply{
		Answer:    answer,
		Sources:   sourcesOf(passages),
		ToolCalls: []models.ToolCallRecord{record},
	}
}

func composeFollowUp(missing []string) *models.ChatReply {
	labels := make([]string, 0, len(missing))
	for _, name := range missing {
		labels = append(labels, slotLabel(name))
	}
	// missing-info branch never pads with knowledge-base content
	return emptyReply(fmt.Sprintf("To process the cancellation, could you share %s?",
		strings.Join(labels, " and ")))
}

func composeKnowledgeAnswer(prose string, passages []models.Passage, offerCancellation bool) *models.ChatReply {
	answer := strings.TrimSpace(prose)
	if answer == "" {
		// generation degraded: quote the passages directly
		answer = "Here is what I found in our help pages:\n\n" + passageContext(passages)
	}
	if offerCancellation {
		answer += "\n\n" + cancellationOffer
	}
	return &models.ChatReply{
		Answer:    answer,
		Sources:   sourcesOf(passages),
		ToolCalls: []models.ToolCallRecord{},
	}
}

func composeNoKnowledge() *models.ChatReply {
	return emptyReply(noKnowledgeAnswer)
}

func composeTrackerFailure() *models.ChatReply {
	return emptyReply(trackerFailureAnswer)
}

func slotLabel(name string) string {
	switch name {
	case models.SlotOrderNumber:
		return "your order number"
	case models.SlotReason:
		return "the cancellation reason"
	default:
		return strings.ReplaceAll(name, "_", " ")
	}
}

func sourcesOf(passages []models.Passage) []string {
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Provenance)
	}
	return sources
}

func passageContext(passages []models.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Related information from our help pages:")
	for _, p := range passages {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(p.ChunkText))
	}
	return b.String()
}

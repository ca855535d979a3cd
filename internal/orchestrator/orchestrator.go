package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"

	"deskchat/internal/models"
	"deskchat/internal/service/action"
	"deskchat/internal/service/dialogue"
	"deskchat/internal/service/nlu"
)

// Retriever fetches ranked knowledge-base passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

// Executor invokes the external action once and returns the classified
// outcome plus the full audit record.
type Executor interface {
	Execute(ctx context.Context, actionType string, slots map[string]string) (action.Outcome, models.ToolCallRecord, error)
}

// Generator phrases the knowledge-branch answer.
type Generator interface {
	GenerateAnswer(ctx context.Context, history []*models.Message, question string, passages []models.Passage) (string, error)
}

// Recorder is the append-only persistence collaborator. All calls are
// fire-and-forget from the orchestrator's point of view: a persistence
// failure is logged and never fails the turn.
type Recorder interface {
	RecordMessage(ctx context.Context, sessionID string, role models.Role, content string) (*models.Message, error)
	RecordAction(ctx context.Context, sessionID, actionName string, args map[string]string, result string) error
	History(ctx context.Context, sessionID string) ([]*models.Message, error)
}

// Orchestrator runs the per-turn decision logic: classify, merge slots,
// execute when ready, retrieve, compose.
type Orchestrator struct {
	extractor nlu.Extractor
	tracker   *dialogue.Tracker
	retriever Retriever
	executor  Executor
	generator Generator
	recorder  Recorder
	topK      int
}

// New wires the orchestrator's collaborators.
func New(extractor nlu.Extractor, tracker *dialogue.Tracker, retriever Retriever, executor Executor, generator Generator, recorder Recorder, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 4
	}
	return &Orchestrator{
		extractor: extractor,
		tracker:   tracker,
		retriever: retriever,
		executor:  executor,
		generator: generator,
		recorder:  recorder,
		topK:      topK,
	}
}

// Respond processes one inbound message and always produces a reply; every
// downstream failure degrades to a composer fallback branch instead of
// failing the turn. The only error returns are input validation.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, message string) (*models.ChatReply, error) {
	sessionID = strings.TrimSpace(sessionID)
	message = strings.TrimSpace(message)
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}
	if message == "" {
		return nil, errors.New("message is required")
	}

	if _, err := o.recorder.RecordMessage(ctx, sessionID, models.RoleUser, message); err != nil {
		log.Printf("record user message for session %s: %v", sessionID, err)
	}

	pending, err := o.tracker.Pending(ctx, sessionID)
	if err != nil {
		// degraded: treat as no pending action; worst case we re-ask
		log.Printf("load pending action for session %s: %v", sessionID, err)
		pending = nil
	}
	extraction := o.extractor.Extract(message, pending)

	turn, err := o.tracker.Advance(ctx, sessionID, pending, extraction)
	if err != nil {
		log.Printf("advance dialogue state for session %s: %v", sessionID, err)
		return o.finish(ctx, sessionID, composeTrackerFailure()), nil
	}

	// retrieval always runs: knowledge context can matter even mid-workflow
	passages, err := o.retriever.Retrieve(ctx, message, o.topK)
	if err != nil {
		log.Printf("retrieve passages for session %s: %v", sessionID, err)
		passages = nil
	}

	var reply *models.ChatReply
	switch turn.State {
	case dialogue.StateReady:
		reply = o.executeAction(ctx, sessionID, turn.Pending, passages)
	case dialogue.StateAwaitingSlots:
		reply = composeFollowUp(turn.Missing)
	default:
		reply = o.answerFromKnowledge(ctx, sessionID, message, passages)
	}
	return o.finish(ctx, sessionID, reply), nil
}

func (o *Orchestrator) executeAction(ctx context.Context, sessionID string, pending *models.PendingAction, passages []models.Passage) *models.ChatReply {
	outcome, record, err := o.executor.Execute(ctx, pending.ActionType, pending.Slots)
	if err != nil {
		log.Printf("execute %s for session %s: %v", pending.ActionType, sessionID, err)
		return composeTrackerFailure()
	}

	reply := composeActionReply(outcome, record, pending.Slots, passages)
	if err := o.recorder.RecordAction(ctx, sessionID, pending.ActionType, pending.Slots, reply.Answer); err != nil {
		log.Printf("record action for session %s: %v", sessionID, err)
	}
	return reply
}

func (o *Orchestrator) answerFromKnowledge(ctx context.Context, sessionID, message string, passages []models.Passage) *models.ChatReply {
	if len(passages) == 0 {
		return composeNoKnowledge()
	}
	history, err := o.recorder.History(ctx, sessionID)
	if err != nil {
		log.Printf("load history for session %s: %v", sessionID, err)
		history = nil
	}
	prose, err := o.generator.GenerateAnswer(ctx, history, message, passages)
	if err != nil {
		log.Printf("generate answer for session %s: %v", sessionID, err)
		prose = ""
	}
	return composeKnowledgeAnswer(prose, passages, nlu.HasCancellationMarkers(message))
}

// finish persists the assistant reply; failures are logged, never surfaced.
func (o *Orchestrator) finish(ctx context.Context, sessionID string, reply *models.ChatReply) *models.ChatReply {
	if _, err := o.recorder.RecordMessage(ctx, sessionID, models.RoleAssistant, reply.Answer); err != nil {
		log.Printf("record assistant message for session %s: %v", sessionID, err)
	}
	return reply
}

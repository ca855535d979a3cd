package orchestrator

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deskchat/internal/config"
	"deskchat/internal/models"
	"deskchat/internal/service/action"
	"deskchat/internal/service/dialogue"
	"deskchat/internal/service/history"
	"deskchat/internal/service/nlu"
	"deskchat/internal/storage"
)

type stubRetriever struct {
	passages []models.Passage
	err      error
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ int) ([]models.Passage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.passages, nil
}

type stubGenerator struct {
	prose string
	err   error
}

func (s *stubGenerator) GenerateAnswer(_ context.Context, _ []*models.Message, _ string, _ []models.Passage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.prose, nil
}

func helpPassages() []models.Passage {
	return []models.Passage{
		{SourceID: "faq.md", ChunkText: "Orders ship within 2 business days.", Score: 0.9, Provenance: "faq.md - chunk 0"},
		{SourceID: "faq.md", ChunkText: "Returns are accepted within 30 days.", Score: 0.8, Provenance: "faq.md - chunk 1"},
	}
}

func newTestOrchestrator(t *testing.T, retriever Retriever, generator Generator, orderAPI string) (*Orchestrator, *sql.DB) {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	orch := New(
		nlu.NewPatternExtractor(),
		dialogue.NewTracker(dialogue.NewMemoryStore()),
		retriever,
		action.NewExecutor(orderAPI, time.Second),
		generator,
		history.NewService(db),
		4,
	)
	return orch, db
}

func TestRespondCancellationFlow(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{}, srv.URL)
	defer db.Close()
	ctx := context.Background()

	// Turn one: order number known, reason missing.
	first, err := orch.Respond(ctx, "web-1", "cancel order 77210")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if !strings.Contains(first.Answer, "the cancellation reason") {
		t.Fatalf("expected reason follow-up, got %q", first.Answer)
	}
	if len(first.ToolCalls) != 0 {
		t.Fatalf("no action may run yet, got %d tool calls", len(first.ToolCalls))
	}
	if calls != 0 {
		t.Fatalf("order service called prematurely %d times", calls)
	}

	// Turn two: reason arrives, action executes.
	second, err := orch.Respond(ctx, "web-1", "it arrived broken")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one cancel call, got %d", calls)
	}
	if !strings.Contains(second.Answer, "77210") || !strings.Contains(second.Answer, "it arrived broken") {
		t.Fatalf("confirmation must echo order and reason, got %q", second.Answer)
	}
	if len(second.ToolCalls) != 1 {
		t.Fatalf("expected one tool call record, got %d", len(second.ToolCalls))
	}
	record := second.ToolCalls[0]
	if record.Error != nil {
		t.Fatalf("expected null error in record, got %q", *record.Error)
	}
	if record.RequestData[models.SlotOrderNumber] != "77210" ||
		record.RequestData[models.SlotReason] != "it arrived broken" {
		t.Fatalf("unexpected request data %v", record.RequestData)
	}

	// Turn three: the pending action is gone, nothing replays.
	third, err := orch.Respond(ctx, "web-1", "it arrived broken")
	if err != nil {
		t.Fatalf("third turn: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cleared action replayed, %d calls", calls)
	}
	if len(third.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls after clearing, got %d", len(third.ToolCalls))
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`, "web-1").Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected 6 transcript rows after three turns, got %d", count)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM chat_actions WHERE session_id = ?`, "web-1").Scan(&count); err != nil {
		t.Fatalf("count actions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one audit row, got %d", count)
	}
}

func TestRespondSinglePassCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{}, srv.URL)
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-2", "cancel ORD-445 because it arrived too late")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("expected immediate execution, got %d tool calls", len(reply.ToolCalls))
	}
	if !strings.Contains(reply.Answer, "ORD-445") {
		t.Fatalf("expected confirmation for ORD-445, got %q", reply.Answer)
	}
}

func TestRespondRejectionSurfacesVerbatim(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "order 99999 not found")
	}))
	defer srv.Close()

	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{}, srv.URL)
	defer db.Close()
	ctx := context.Background()

	reply, err := orch.Respond(ctx, "web-3", "cancel order 99999 because i changed my mind")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(reply.Answer, "order 99999 not found") {
		t.Fatalf("rejection reason not surfaced verbatim: %q", reply.Answer)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].ResponseStatus == nil ||
		*reply.ToolCalls[0].ResponseStatus != http.StatusNotFound {
		t.Fatalf("rejection record incomplete: %+v", reply.ToolCalls)
	}

	// A rejected action is cleared; a retry needs a brand-new request.
	followUp, err := orch.Respond(ctx, "web-3", "please try again")
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if calls != 1 {
		t.Fatalf("rejected action retried, %d calls", calls)
	}
	if len(followUp.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls on follow-up, got %d", len(followUp.ToolCalls))
	}
}

func TestRespondUnreachableOrderService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{}, srv.URL)
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-4", "cancel order 77210 because damaged")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(reply.Answer, "could not be completed") {
		t.Fatalf("expected failure wording, got %q", reply.Answer)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].Error == nil {
		t.Fatalf("expected recorded transport error: %+v", reply.ToolCalls)
	}
}

func TestRespondKnowledgeAnswer(t *testing.T) {
	orch, db := newTestOrchestrator(t,
		&stubRetriever{passages: helpPassages()},
		&stubGenerator{prose: "Orders usually ship within two business days."},
		"http://localhost:0")
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-5", "How fast do you ship?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if reply.Answer != "Orders usually ship within two business days." {
		t.Fatalf("unexpected answer %q", reply.Answer)
	}
	if len(reply.Sources) != 2 || reply.Sources[0] != "faq.md - chunk 0" {
		t.Fatalf("unexpected sources %v", reply.Sources)
	}
	if len(reply.ToolCalls) != 0 {
		t.Fatalf("knowledge branch must not call tools, got %d", len(reply.ToolCalls))
	}
}

func TestRespondQuestionPhrasedCancellationOpensAction(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	orch, db := newTestOrchestrator(t, &stubRetriever{passages: helpPassages()}, &stubGenerator{prose: "unused"}, srv.URL)
	defer db.Close()
	ctx := context.Background()

	// A cancellation verb opens the workflow even when phrased as a question.
	first, err := orch.Respond(ctx, "web-11", "Can I cancel my order?")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if !strings.Contains(first.Answer, "your order number") || !strings.Contains(first.Answer, "the cancellation reason") {
		t.Fatalf("expected prompt for both slots, got %q", first.Answer)
	}
	if len(first.ToolCalls) != 0 || calls != 0 {
		t.Fatalf("no action may run yet: %d tool calls, %d http calls", len(first.ToolCalls), calls)
	}

	// The pending action is live; the reason was already prompted once, so
	// an order-only reply completes the action with the placeholder reason.
	second, err := orch.Respond(ctx, "web-11", "it is order 77210")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if calls != 1 || len(second.ToolCalls) != 1 {
		t.Fatalf("expected one executed cancellation, got %d calls and %d records", calls, len(second.ToolCalls))
	}
	record := second.ToolCalls[0]
	if record.RequestData[models.SlotOrderNumber] != "77210" ||
		record.RequestData[models.SlotReason] != dialogue.ReasonPlaceholder {
		t.Fatalf("unexpected request data %v", record.RequestData)
	}
}

func TestRespondPolicyQuestionOffersCancellation(t *testing.T) {
	orch, db := newTestOrchestrator(t,
		&stubRetriever{passages: helpPassages()},
		&stubGenerator{prose: "Refunds are issued within 5 days of cancellation."},
		"http://localhost:0")
	defer db.Close()
	ctx := context.Background()

	reply, err := orch.Respond(ctx, "web-6", "What is your refund policy?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(reply.ToolCalls) != 0 {
		t.Fatalf("a policy question must not trigger an action, got %d tool calls", len(reply.ToolCalls))
	}
	if !strings.Contains(reply.Answer, "I can process the cancellation") {
		t.Fatalf("expected cancellation offer appended, got %q", reply.Answer)
	}

	// No pending action was created: the next plain question stays general.
	next, err := orch.Respond(ctx, "web-6", "How fast do you ship?")
	if err != nil {
		t.Fatalf("next turn: %v", err)
	}
	if strings.Contains(next.Answer, "could you share") {
		t.Fatalf("policy question leaked into a slot prompt: %q", next.Answer)
	}
}

func TestRespondEmptyCorpus(t *testing.T) {
	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{prose: "unused"}, "http://localhost:0")
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-7", "How fast do you ship?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(reply.Answer, "could not find any relevant information") {
		t.Fatalf("expected no-knowledge fallback, got %q", reply.Answer)
	}
	if len(reply.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", reply.Sources)
	}
}

func TestRespondDegradesWhenRetrievalFails(t *testing.T) {
	orch, db := newTestOrchestrator(t,
		&stubRetriever{err: context.DeadlineExceeded},
		&stubGenerator{prose: "unused"},
		"http://localhost:0")
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-8", "How fast do you ship?")
	if err != nil {
		t.Fatalf("retrieval failure must not fail the turn: %v", err)
	}
	if reply.Answer == "" {
		t.Fatal("expected a fallback answer")
	}
}

func TestRespondDegradesWhenGenerationFails(t *testing.T) {
	orch, db := newTestOrchestrator(t,
		&stubRetriever{passages: helpPassages()},
		&stubGenerator{err: context.DeadlineExceeded},
		"http://localhost:0")
	defer db.Close()

	reply, err := orch.Respond(context.Background(), "web-9", "How fast do you ship?")
	if err != nil {
		t.Fatalf("generation failure must not fail the turn: %v", err)
	}
	if !strings.Contains(reply.Answer, "Orders ship within 2 business days.") {
		t.Fatalf("expected quoted passages fallback, got %q", reply.Answer)
	}
	if len(reply.Sources) != 2 {
		t.Fatalf("sources must survive degraded generation, got %v", reply.Sources)
	}
}

func TestRespondValidatesInput(t *testing.T) {
	orch, db := newTestOrchestrator(t, &stubRetriever{}, &stubGenerator{}, "http://localhost:0")
	defer db.Close()
	ctx := context.Background()

	if _, err := orch.Respond(ctx, "", "hello"); err == nil {
		t.Fatal("expected error for missing session id")
	}
	if _, err := orch.Respond(ctx, "web-10", "   "); err == nil {
		t.Fatal("expected error for blank message")
	}
}

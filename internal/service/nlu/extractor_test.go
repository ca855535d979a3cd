package nlu

import (
	"testing"

	"deskchat/internal/models"
)

func TestExtractCancellationRequests(t *testing.T) {
	cases := []struct {
		name       string
		message    string
		wantOrder  string
		wantReason string
	}{
		{
			name:      "order number without reason",
			message:   "Please cancel order 77210",
			wantOrder: "77210",
		},
		{
			name:       "order number with causal reason",
			message:    "I want to cancel ORD-445 because it arrived too late",
			wantOrder:  "ORD-445",
			wantReason: "it arrived too late",
		},
		{
			name:       "reason keyword without order number",
			message:    "cancel my order, the item is damaged",
			wantReason: "damaged",
		},
		{
			name:      "lowercase order id is normalized",
			message:   "cancel ord-88 please",
			wantOrder: "ORD-88",
		},
		{
			name:      "refund wording counts as cancellation",
			message:   "i'd like a refund for order 556677",
			wantOrder: "556677",
		},
		{
			name:    "bare cancellation request",
			message: "I want to cancel my order",
		},
		{
			name:    "question phrased cancellation",
			message: "Can I cancel my order?",
		},
		{
			name:    "how-to phrased cancellation",
			message: "How do I cancel my order?",
		},
	}

	e := NewPatternExtractor()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Extract(tc.message, nil)
			if res.Intent != IntentCancellation {
				t.Fatalf("expected cancellation intent, got %s", res.Intent)
			}
			assertSlot(t, res.Slots, models.SlotOrderNumber, tc.wantOrder)
			assertSlot(t, res.Slots, models.SlotReason, tc.wantReason)
		})
	}
}

func TestExtractGeneralQueries(t *testing.T) {
	e := NewPatternExtractor()
	for _, message := range []string{
		"What are your delivery options?",
		"How long does shipping take to Canada?",
		"hello there",
		"What is your refund policy?",
		"Can I change my shipping address after ordering?",
	} {
		res := e.Extract(message, nil)
		if res.Intent != IntentGeneralQuery {
			t.Fatalf("message %q: expected general_query, got %s", message, res.Intent)
		}
		if len(res.Slots) != 0 {
			t.Fatalf("message %q: expected no slots, got %v", message, res.Slots)
		}
	}
}

func TestExtractContinuationFillsSlots(t *testing.T) {
	e := NewPatternExtractor()

	t.Run("prompted reason taken verbatim", func(t *testing.T) {
		pending := models.NewPendingAction(models.ActionCancelOrder, map[string]string{
			models.SlotOrderNumber: "77210",
		})
		pending.Prompted[models.SlotReason] = true

		res := e.Extract("it arrived broken", pending)
		if res.Intent != IntentCancellation {
			t.Fatalf("expected cancellation continuation, got %s", res.Intent)
		}
		assertSlot(t, res.Slots, models.SlotReason, "it arrived broken")
	})

	t.Run("bare order number reply", func(t *testing.T) {
		pending := models.NewPendingAction(models.ActionCancelOrder, nil)
		pending.Prompted[models.SlotOrderNumber] = true

		res := e.Extract("77210", pending)
		if res.Intent != IntentCancellation {
			t.Fatalf("expected cancellation continuation, got %s", res.Intent)
		}
		assertSlot(t, res.Slots, models.SlotOrderNumber, "77210")
		assertSlot(t, res.Slots, models.SlotReason, "")
	})

	t.Run("order reference never becomes a reason", func(t *testing.T) {
		pending := models.NewPendingAction(models.ActionCancelOrder, nil)
		pending.Prompted[models.SlotOrderNumber] = true
		pending.Prompted[models.SlotReason] = true

		res := e.Extract("my order number is ORD-99", pending)
		assertSlot(t, res.Slots, models.SlotOrderNumber, "ORD-99")
		assertSlot(t, res.Slots, models.SlotReason, "")
	})

	t.Run("cancellation chatter is not a reason", func(t *testing.T) {
		pending := models.NewPendingAction(models.ActionCancelOrder, map[string]string{
			models.SlotOrderNumber: "77210",
		})
		pending.Prompted[models.SlotReason] = true

		res := e.Extract("just cancel it please", pending)
		assertSlot(t, res.Slots, models.SlotReason, "")
	})
}

func TestHasCancellationMarkers(t *testing.T) {
	if !HasCancellationMarkers("What is your refund policy?") {
		t.Fatal("expected refund wording to carry cancellation markers")
	}
	if HasCancellationMarkers("How long does shipping take?") {
		t.Fatal("expected plain shipping question to carry no markers")
	}
}

func assertSlot(t *testing.T, slots map[string]string, name, want string) {
	t.Helper()
	got, ok := slots[name]
	if want == "" {
		if ok {
			t.Fatalf("expected slot %s to be absent, got %q", name, got)
		}
		return
	}
	if got != want {
		t.Fatalf("slot %s: want %q, got %q", name, want, got)
	}
}

package dialogue

import (
	"context"
	"fmt"

	"deskchat/internal/models"
	"deskchat/internal/service/nlu"
)

// State of a session's dialogue machine.
type State string

const (
	StateNone          State = "NONE"
	StateAwaitingSlots State = "AWAITING_SLOTS"
	// StateReady is transient: it is consumed by the action executor in the
	// same turn and never persists.
	StateReady State = "READY"
)

// ReasonPlaceholder fills the reason slot when the user was already asked
// once and still gave nothing usable.
const ReasonPlaceholder = "not specified"

// requiredSlots lists required slot names per action type, in prompt order.
var requiredSlots = map[string][]string{
	models.ActionCancelOrder: {models.SlotOrderNumber, models.SlotReason},
}

// Turn is the tracker's verdict for one inbound message.
type Turn struct {
	State   State
	Pending *models.PendingAction
	// Missing names the still-absent required slots when awaiting.
	Missing []string
}

// Tracker advances per-session pending-action state. The pending action
// itself lives in the store, keyed by session; the tracker owns no state.
type Tracker struct {
	store PendingStore
}

// NewTracker builds a tracker over the given pending-action store.
func NewTracker(store PendingStore) *Tracker {
	return &Tracker{store: store}
}

// Pending loads the session's pending action, nil when none.
func (t *Tracker) Pending(ctx context.Context, sessionID string) (*models.PendingAction, error) {
	return t.store.Get(ctx, sessionID)
}

// Advance merges the extraction result into the session state and returns
// the resulting turn. On READY the pending action is cleared from the store
// before returning, so a crash or repeat submission can never re-trigger the
// same action.
func (t *Tracker) Advance(ctx context.Context, sessionID string, pending *models.PendingAction, res nlu.Result) (Turn, error) {
	if res.Intent != nlu.IntentCancellation {
		if pending == nil {
			return Turn{State: StateNone}, nil
		}
		// no intent, no fillable content: hold position and re-ask
		return t.await(ctx, sessionID, pending)
	}

	switch {
	case pending == nil:
		pending = models.NewPendingAction(models.ActionCancelOrder, res.Slots)
	case conflictingOrder(pending, res.Slots):
		// a new cancellation for a different order supersedes the old one;
		// merging would contaminate slots across orders
		pending = models.NewPendingAction(models.ActionCancelOrder, res.Slots)
	default:
		mergeSlots(pending, res.Slots)
	}

	applyReasonDefault(pending)

	if len(missingSlots(pending)) == 0 {
		if err := t.store.Clear(ctx, sessionID); err != nil {
			return Turn{}, fmt.Errorf("clear pending action: %w", err)
		}
		return Turn{State: StateReady, Pending: pending}, nil
	}
	return t.await(ctx, sessionID, pending)
}

func (t *Tracker) await(ctx context.Context, sessionID string, pending *models.PendingAction) (Turn, error) {
	missing := missingSlots(pending)
	for _, name := range missing {
		pending.Prompted[name] = true
	}
	if err := t.store.Put(ctx, sessionID, pending); err != nil {
		return Turn{}, fmt.Errorf("store pending action: %w", err)
	}
	return Turn{State: StateAwaitingSlots, Pending: pending, Missing: missing}, nil
}

// mergeSlots fills only currently-absent slots; a later ambiguous message
// never overwrites an already-filled value.
func mergeSlots(pending *models.PendingAction, slots map[string]string) {
	for name, value := range slots {
		if value == "" {
			continue
		}
		if _, filled := pending.Slots[name]; !filled {
			pending.Slots[name] = value
		}
	}
}

func conflictingOrder(pending *models.PendingAction, slots map[string]string) bool {
	existing, okExisting := pending.Slots[models.SlotOrderNumber]
	incoming, okIncoming := slots[models.SlotOrderNumber]
	return okExisting && okIncoming && existing != incoming
}

// applyReasonDefault backfills the generic placeholder once the reason has
// been asked for on a prior turn and the reply still yielded no usable
// reason text. The user gets exactly one prompt before the default kicks in.
func applyReasonDefault(pending *models.PendingAction) {
	if _, ok := pending.Slots[models.SlotReason]; ok {
		return
	}
	if !pending.Prompted[models.SlotReason] {
		return
	}
	if _, ok := pending.Slots[models.SlotOrderNumber]; ok {
		pending.Slots[models.SlotReason] = ReasonPlaceholder
	}
}

func missingSlots(pending *models.PendingAction) []string {
	var missing []string
	for _, name := range requiredSlots[pending.ActionType] {
		if _, ok := pending.Slots[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

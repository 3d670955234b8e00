// Package movement turns stock-movement utterances into ordered intents and
// executes them against the inventory, suspending when an item needs the user
// to pick between catalog entries.
package movement

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNonPositiveQuantity = errors.New("NON_POSITIVE_QUANTITY")
	ErrEmptyItemReference  = errors.New("EMPTY_ITEM_REFERENCE")
	ErrContinuationStore   = errors.New("CONTINUATION_STORE_FAILED")
	ErrRunCancelled        = errors.New("RUN_CANCELLED")
)

// Kind is the direction of a stock change.
type Kind string

const (
	Consumption   Kind = "consumption"
	Replenishment Kind = "replenishment"
)

// Intent is one requested stock change, as typed by the user.
type Intent struct {
	Kind          Kind   `json:"kind"`
	ItemReference string `json:"itemReference"`
	Quantity      int    `json:"quantity"`
}

func (i Intent) Validate() error {
	if i.Quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveQuantity, i.Quantity)
	}
	if i.ItemReference == "" {
		return ErrEmptyItemReference
	}
	return nil
}

func (i Intent) String() string {
	return fmt.Sprintf("%s %d %s", i.Kind, i.Quantity, i.ItemReference)
}

// Candidate is one catalog entry matching an ambiguous item reference.
type Candidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Details string `json:"details,omitempty"`
}

func (c Candidate) Label() string {
	if c.Details == "" {
		return c.Name
	}
	return c.Name + " (" + c.Details + ")"
}

type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeRejected  OutcomeKind = "rejected"
)

// Outcome is the result of attempting one intent against the inventory.
type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Effect     string      `json:"effect,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

func Applied(effect string) Outcome {
	return Outcome{Kind: OutcomeApplied, Effect: effect}
}

func Ambiguous(candidates []Candidate) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, Candidates: candidates}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

// Rejection reasons shared by the sequencer and the inventory implementations.
const (
	ReasonTimeout              = "timeout"
	ReasonUnknownItem          = "unknown item"
	ReasonInsufficientStock    = "insufficient stock"
	ReasonNonPositiveQuantity  = "non-positive quantity"
	ReasonInventoryUnavailable = "inventory unavailable"
	ReasonUnknownCandidate     = "unknown candidate"
)

// StepResult pairs an intent with what happened to it.
type StepResult struct {
	Intent  Intent  `json:"intent"`
	Outcome Outcome `json:"outcome"`
}

// PendingStep is the intent that hit an ambiguity together with the
// candidates shown to the user.
type PendingStep struct {
	Intent     Intent      `json:"intent"`
	Candidates []Candidate `json:"candidates"`
}

// Continuation is the per-conversation state left behind by a suspended run.
// RemainingIntents never contains the pending intent itself.
type Continuation struct {
	ConversationID   string      `json:"conversationId"`
	Pending          PendingStep `json:"pending"`
	RemainingIntents []Intent    `json:"remainingIntents"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// Expired reports whether the continuation is older than ttl. A non-positive
// ttl disables expiry.
func (c *Continuation) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) > ttl
}

// Inventory is the stock collaborator. Implementations must return Ambiguous
// with a non-empty ordered candidate list whenever a reference matches more
// than one catalog entry, and never pick one silently. A returned error means
// the collaborator could not be reached.
type Inventory interface {
	ApplyMovement(ctx context.Context, itemReference string, kind Kind, quantity int) (Outcome, error)
	ResolveAmbiguity(ctx context.Context, intent Intent, candidates []Candidate, chosenID string) (Outcome, error)
}

// ContinuationStore keeps at most one continuation per conversation. Put
// replaces any existing one; Clear on an absent key is not an error.
type ContinuationStore interface {
	Put(ctx context.Context, c *Continuation) error
	Get(ctx context.Context, conversationID string) (*Continuation, bool, error)
	Clear(ctx context.Context, conversationID string) error
}

// Extractor turns an utterance into intents in mention order.
type Extractor interface {
	Extract(utterance string) []Intent
}

package movement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/metrics"
)

// State is a sequencer state. Ready and Running are transient; a run always
// returns in Completed or Suspended.
type State string

const (
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateSuspended State = "suspended"
	// StateUnresolved is returned by Resume when the answer did not pick a
	// candidate; the continuation is left in place.
	StateUnresolved State = "unresolved"
)

// RunResult is what a run (or a resume) produced.
type RunResult struct {
	State   State        `json:"state"`
	Results []StepResult `json:"results"`
	// Pending is set when State is Suspended or Unresolved.
	Pending   *PendingStep `json:"pending,omitempty"`
	Remaining []Intent     `json:"remaining,omitempty"`
}

// Applied counts the steps that changed stock.
func (r *RunResult) Applied() int {
	n := 0
	for _, s := range r.Results {
		if s.Outcome.Kind == OutcomeApplied {
			n++
		}
	}
	return n
}

type SequencerConfig struct {
	StepTimeout time.Duration
}

// Sequencer applies intents one at a time in extraction order.
type Sequencer struct {
	inventory Inventory
	store     ContinuationStore
	config    SequencerConfig
	logger    logger.Logger
	now       func() time.Time
}

func NewSequencer(inventory Inventory, store ContinuationStore, config SequencerConfig, log logger.Logger) *Sequencer {
	return &Sequencer{
		inventory: inventory,
		store:     store,
		config:    config,
		logger:    logger.ForComponent(log, "movement-sequencer"),
		now:       time.Now,
	}
}

// Run executes intents in order. Applied and Rejected steps continue the
// batch; the first Ambiguous step persists a continuation holding the intents
// after it and suspends. A completed run clears any continuation.
//
// If ctx is cancelled mid-run the partial result is returned with
// ErrRunCancelled; steps already applied stay applied.
func (s *Sequencer) Run(ctx context.Context, conversationID string, intents []Intent) (*RunResult, error) {
	result := &RunResult{State: StateReady, Results: make([]StepResult, 0, len(intents))}
	queue := intents

	for {
		switch result.State {
		case StateReady:
			if len(queue) == 0 {
				result.State = StateCompleted
				continue
			}
			result.State = StateRunning

		case StateRunning:
			if err := ctx.Err(); err != nil {
				s.logger.Warn("run cancelled", map[string]interface{}{
					"conversationId": conversationID,
					"applied":        result.Applied(),
					"remaining":      len(queue),
				})
				result.Remaining = queue
				return result, fmt.Errorf("%w: %v", ErrRunCancelled, err)
			}

			current := queue[0]
			queue = queue[1:]
			outcome := s.step(ctx, current)
			if ctx.Err() != nil && outcome.Reason == ReasonTimeout {
				// The parent went away during the step; nothing was recorded for it.
				result.Remaining = append([]Intent{current}, queue...)
				return result, fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())
			}
			metrics.MovementOutcomes.WithLabelValues(string(current.Kind), string(outcome.Kind)).Inc()

			if outcome.Kind == OutcomeAmbiguous {
				return s.suspend(ctx, conversationID, result, current, outcome.Candidates, queue)
			}

			result.Results = append(result.Results, StepResult{Intent: current, Outcome: outcome})
			if len(queue) == 0 {
				result.State = StateCompleted
			}

		case StateCompleted:
			if err := s.store.Clear(ctx, conversationID); err != nil {
				s.logger.Warn("failed to clear continuation", map[string]interface{}{
					"conversationId": conversationID,
					"error":          err.Error(),
				})
			}
			metrics.SequencerRuns.WithLabelValues(string(StateCompleted)).Inc()
			s.logger.Debug("run completed", map[string]interface{}{
				"conversationId": conversationID,
				"steps":          len(result.Results),
				"applied":        result.Applied(),
			})
			return result, nil

		default:
			return result, fmt.Errorf("unexpected sequencer state %q", result.State)
		}
	}
}

func (s *Sequencer) suspend(ctx context.Context, conversationID string, result *RunResult, current Intent, candidates []Candidate, remaining []Intent) (*RunResult, error) {
	pending := PendingStep{Intent: current, Candidates: candidates}
	rest := append([]Intent(nil), remaining...)

	result.State = StateSuspended
	result.Pending = &pending
	result.Remaining = rest
	metrics.SequencerRuns.WithLabelValues(string(StateSuspended)).Inc()

	cont := &Continuation{
		ConversationID:   conversationID,
		Pending:          pending,
		RemainingIntents: rest,
		CreatedAt:        s.now(),
	}
	if err := s.store.Put(ctx, cont); err != nil {
		s.logger.Error("failed to persist continuation", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err.Error(),
		})
		return result, fmt.Errorf("%w: %v", ErrContinuationStore, err)
	}

	s.logger.Info("run suspended", map[string]interface{}{
		"conversationId": conversationID,
		"item":           current.ItemReference,
		"candidates":     len(candidates),
		"remaining":      len(rest),
	})
	return result, nil
}

// Apply executes a single intent outside any batch. An Ambiguous outcome is
// returned with its candidates; no continuation is read or written.
func (s *Sequencer) Apply(ctx context.Context, intent Intent) StepResult {
	outcome := s.step(ctx, intent)
	metrics.MovementOutcomes.WithLabelValues(string(intent.Kind), string(outcome.Kind)).Inc()
	return StepResult{Intent: intent, Outcome: outcome}
}

// step executes one intent with its own deadline. Collaborator timeouts and
// failures become rejections of that intent only.
func (s *Sequencer) step(ctx context.Context, intent Intent) Outcome {
	if err := intent.Validate(); err != nil {
		if errors.Is(err, ErrNonPositiveQuantity) {
			return Rejected(ReasonNonPositiveQuantity)
		}
		return Rejected(ReasonUnknownItem)
	}

	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	outcome, err := s.inventory.ApplyMovement(stepCtx, intent.ItemReference, intent.Kind, intent.Quantity)
	return s.normalize(stepCtx, intent, outcome, err)
}

func (s *Sequencer) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StepTimeout)
}

func (s *Sequencer) normalize(stepCtx context.Context, intent Intent, outcome Outcome, err error) Outcome {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || stepCtx.Err() != nil {
			s.logger.Warn("movement step timed out", map[string]interface{}{
				"item": intent.ItemReference,
			})
			return Rejected(ReasonTimeout)
		}
		s.logger.Warn("movement step failed", map[string]interface{}{
			"item":  intent.ItemReference,
			"error": err.Error(),
		})
		return Rejected(ReasonInventoryUnavailable)
	}
	if outcome.Kind == OutcomeAmbiguous && len(outcome.Candidates) == 0 {
		return Rejected(ReasonUnknownItem)
	}
	return outcome
}

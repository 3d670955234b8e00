// Package orchestrator is the single entry point of the assistant: it checks
// for a suspended movement batch, runs the fast tier when the utterance looks
// simple, and escalates to routed agents otherwise.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"inventory-assistant/internal/agents"
	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/assistant/complexity"
	"inventory-assistant/internal/assistant/router"
	apperrors "inventory-assistant/internal/common/errors"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/metrics"
	"inventory-assistant/internal/common/observability"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/movement"
)

var (
	ErrEmptyUtterance      = errors.New("EMPTY_UTTERANCE")
	ErrMissingConversation = errors.New("MISSING_CONVERSATION_ID")
)

const (
	retryMessage   = "Non riesco a elaborare la richiesta in questo momento, riprova tra poco."
	failureMessage = "Si è verificato un problema nel gestire la richiesta, riprova tra poco."
)

// Reply is what the enclosing application renders.
type Reply struct {
	Message           string             `json:"message"`
	StructuredPayload string             `json:"structuredPayload,omitempty"`
	Suspended         bool               `json:"suspended"`
	Tier              assistant.Tier     `json:"tier"`
	Category          assistant.Category `json:"category,omitempty"`
	ErrorCode         string             `json:"errorCode,omitempty"`
}

type Router interface {
	Route(ctx context.Context, utterance string) (router.Decision, error)
}

type Resolver interface {
	Resolve(c assistant.Category) assistant.Agent
}

type Gate interface {
	Accept(resp *assistant.Response) bool
}

type Resumer interface {
	Resume(ctx context.Context, cont *movement.Continuation, answer string) (*movement.RunResult, error)
}

// Recorder receives one observation per handled utterance.
type Recorder interface {
	RecordUtterance(ctx context.Context, tier, status string, d time.Duration)
}

type Config struct {
	ContinuationTTL time.Duration
}

// Dependencies groups the collaborators; History and Recorder are optional.
type Dependencies struct {
	Fast      assistant.Agent
	Router    Router
	Registry  Resolver
	Gate      Gate
	Sequencer Resumer
	Pending   movement.ContinuationStore
	History   history.Store
	Recorder  Recorder
}

type Orchestrator struct {
	deps     Dependencies
	config   Config
	locks    *keyedMutex
	classify func(string) complexity.Level
	logger   logger.Logger
	now      func() time.Time
}

func New(deps Dependencies, config Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		config:   config,
		locks:    newKeyedMutex(),
		classify: complexity.Classify,
		logger:   logger.ForComponent(log, "orchestrator"),
		now:      time.Now,
	}
}

// Handle processes one utterance. Turns of the same conversation are
// serialised; different conversations run in parallel. Collaborator failures
// become a reply with ErrorCode set; only invalid input returns an error.
func (o *Orchestrator) Handle(ctx context.Context, utterance, conversationID string) (*Reply, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}
	if conversationID == "" {
		return nil, ErrMissingConversation
	}

	ctx, span := observability.StartSpan(ctx, "inventory-assistant/orchestrator", "assistant.handle",
		attribute.String("conversation.id", conversationID))
	defer span.End()

	unlock := o.locks.Lock(conversationID)
	defer unlock()

	start := o.now()
	log := o.logger.WithFields(map[string]interface{}{"conversationId": conversationID})

	reply, ok := o.continuePending(ctx, utterance, conversationID, log)
	if !ok {
		reply = o.process(ctx, utterance, conversationID, log)
	}

	o.remember(ctx, conversationID, utterance, reply, log)

	elapsed := o.now().Sub(start)
	status := "ok"
	if reply.ErrorCode != "" {
		status = "error"
		span.SetStatus(codes.Error, reply.ErrorCode)
	}
	span.SetAttributes(
		attribute.String("assistant.tier", string(reply.Tier)),
		attribute.String("assistant.category", string(reply.Category)),
		attribute.Bool("assistant.suspended", reply.Suspended),
	)
	metrics.UtterancesHandled.WithLabelValues(string(reply.Tier)).Inc()
	metrics.HandleDuration.WithLabelValues(string(reply.Tier)).Observe(elapsed.Seconds())
	if o.deps.Recorder != nil {
		o.deps.Recorder.RecordUtterance(ctx, string(reply.Tier), status, elapsed)
	}

	log.Info("utterance handled", map[string]interface{}{
		"tier":       string(reply.Tier),
		"category":   string(reply.Category),
		"suspended":  reply.Suspended,
		"durationMs": elapsed.Milliseconds(),
	})
	return reply, nil
}

// continuePending consumes an active continuation. An expired one, or an
// utterance that is clearly a new request, clears it and lets the turn
// through; anything else is taken as the answer to the pending prompt.
func (o *Orchestrator) continuePending(ctx context.Context, utterance, conversationID string, log logger.Logger) (*Reply, bool) {
	cont, found, err := o.deps.Pending.Get(ctx, conversationID)
	if err != nil {
		log.Warn("pending continuation unavailable", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if !found {
		return nil, false
	}

	if cont.Expired(o.now(), o.config.ContinuationTTL) {
		metrics.ContinuationEvents.WithLabelValues("expired").Inc()
		o.clearPending(ctx, conversationID, log)
		return nil, false
	}

	if _, matched := cont.Match(utterance); !matched && movement.LooksLikeNewRequest(utterance) {
		metrics.ContinuationEvents.WithLabelValues("superseded").Inc()
		log.Info("pending continuation superseded", map[string]interface{}{
			"item": cont.Pending.Intent.ItemReference,
		})
		o.clearPending(ctx, conversationID, log)
		return nil, false
	}

	result, err := o.deps.Sequencer.Resume(ctx, cont, utterance)
	if result == nil {
		log.Error("resume failed", map[string]interface{}{"error": errString(err)})
		return &Reply{Message: failureMessage, Tier: assistant.TierContinuation, ErrorCode: string(apperrors.ErrCodeInternalError)}, true
	}
	if err != nil {
		log.Warn("resumed run ended with error", map[string]interface{}{"error": err.Error()})
	}

	return fromResponse(agents.RenderRunResult(result, err), assistant.TierContinuation, assistant.CategorySingleMovement), true
}

func (o *Orchestrator) clearPending(ctx context.Context, conversationID string, log logger.Logger) {
	if err := o.deps.Pending.Clear(ctx, conversationID); err != nil {
		log.Warn("failed to clear continuation", map[string]interface{}{"error": err.Error()})
	}
}

// process is the two-tier pipeline: classify, fast tier, gate, capable tier.
func (o *Orchestrator) process(ctx context.Context, utterance, conversationID string, log logger.Logger) *Reply {
	if o.classify(utterance) == complexity.Simple && o.deps.Fast != nil {
		resp, err := o.deps.Fast.Handle(ctx, &assistant.Request{Utterance: utterance, ConversationID: conversationID})
		if err == nil && o.deps.Gate.Accept(resp) {
			return fromResponse(resp, assistant.TierFast, "")
		}
		metrics.TierEscalations.Inc()
		log.Debug("escalating to capable tier", map[string]interface{}{"fastError": errString(err)})
	}
	return o.capable(ctx, utterance, conversationID, log)
}

func (o *Orchestrator) capable(ctx context.Context, utterance, conversationID string, log logger.Logger) *Reply {
	decision, err := o.deps.Router.Route(ctx, utterance)
	if err != nil {
		stdErr := apperrors.NewClassificationUnavailableError(err)
		log.Error("routing failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Details,
		})
		return &Reply{
			Message:   retryMessage,
			Tier:      assistant.TierCapable,
			ErrorCode: string(stdErr.Code),
		}
	}

	agent := o.deps.Registry.Resolve(decision.Category)
	resp, err := agent.Handle(ctx, &assistant.Request{
		Utterance:      utterance,
		ConversationID: conversationID,
		Category:       decision.Category,
	})
	if err != nil || resp == nil {
		log.Error("agent failed", map[string]interface{}{
			"agent":    agent.Name(),
			"category": string(decision.Category),
			"error":    errString(err),
		})
		code := apperrors.ErrCodeInternalError
		if stdErr := agents.StandardFor(err); stdErr != nil {
			code = stdErr.Code
		}
		return &Reply{
			Message:   failureMessage,
			Tier:      assistant.TierCapable,
			Category:  decision.Category,
			ErrorCode: string(code),
		}
	}
	return fromResponse(resp, assistant.TierCapable, decision.Category)
}

// remember records the turn pair; history problems never fail a reply.
func (o *Orchestrator) remember(ctx context.Context, conversationID, utterance string, reply *Reply, log logger.Logger) {
	if o.deps.History == nil {
		return
	}
	now := o.now()
	err := o.deps.History.Append(ctx, conversationID,
		history.Turn{Role: history.RoleUser, Text: utterance, At: now},
		history.Turn{Role: history.RoleAssistant, Text: reply.Message, Category: string(reply.Category), At: now},
	)
	if err != nil {
		stdErr := apperrors.NewHistoryStoreError(err)
		log.Warn("failed to record history", map[string]interface{}{
			"code":  string(stdErr.Code),
			"error": stdErr.Details,
		})
	}
}

func fromResponse(resp *assistant.Response, tier assistant.Tier, category assistant.Category) *Reply {
	reply := &Reply{
		Message:   resp.Message,
		Suspended: resp.Suspended,
		Tier:      tier,
		Category:  category,
		ErrorCode: resp.ErrorCode,
	}
	if resp.IsStructured {
		reply.StructuredPayload = resp.Payload
	}
	return reply
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

package agents

import (
	"context"
	"errors"
	"fmt"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/validation"
	"inventory-assistant/internal/movement"
)

var ErrNoMovement = errors.New("NO_MOVEMENT_FOUND")

var singleMovementSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["kind", "item", "quantity"],
	"properties": {
		"kind": {"type": "string", "enum": ["consumption", "replenishment"]},
		"item": {"type": "string", "minLength": 1},
		"quantity": {"type": "integer", "minimum": 1}
	}
}`)

const singleMovementPrompt = `Estrai dal messaggio un solo movimento di magazzino.
Rispondi solo con JSON: {"kind": "consumption" | "replenishment", "item": "<nome del vino>", "quantity": <intero positivo>}.
Messaggio: %s`

type parsedMovement struct {
	Kind     string `json:"kind"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// MovementAgent serves both movement categories. The pattern extractor runs
// first; when it finds nothing the model parses a single intent, which is
// applied directly instead of going through the batch sequencer.
type MovementAgent struct {
	name      string
	extractor movement.Extractor
	runner    MovementRunner
	completer genai.Completer
	model     string
	logger    logger.Logger
}

func NewMovementAgent(name string, extractor movement.Extractor, runner MovementRunner, completer genai.Completer, model string, log logger.Logger) *MovementAgent {
	return &MovementAgent{
		name:      name,
		extractor: extractor,
		runner:    runner,
		completer: completer,
		model:     model,
		logger:    logger.ForComponent(log, name),
	}
}

func (a *MovementAgent) Name() string { return a.name }

func (a *MovementAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	intents := a.extractor.Extract(req.Utterance)
	if len(intents) == 0 {
		intent, err := a.parseSingle(ctx, req.Utterance)
		if err != nil {
			a.logger.Warn("no movement found", map[string]interface{}{
				"conversationId": req.ConversationID,
				"error":          err.Error(),
			})
			return failed("Non ho capito quale movimento registrare. Indica quantità e vino, per esempio \"venduto 2 Barolo\".", err), nil
		}
		// A model-parsed intent is applied as one step and never suspends.
		return RenderStep(a.runner.Apply(ctx, intent)), nil
	}

	a.logger.Debug("running movements", map[string]interface{}{
		"conversationId": req.ConversationID,
		"intents":        len(intents),
	})

	result, err := a.runner.Run(ctx, req.ConversationID, intents)
	if result == nil {
		return nil, fmt.Errorf("movement run: %w", err)
	}
	if err != nil {
		// Partial runs are still reported with the error code.
		a.logger.Warn("movement run ended with error", map[string]interface{}{
			"conversationId": req.ConversationID,
			"error":          err.Error(),
		})
	}
	return RenderRunResult(result, err), nil
}

func (a *MovementAgent) parseSingle(ctx context.Context, utterance string) (movement.Intent, error) {
	if a.completer == nil {
		return movement.Intent{}, ErrNoMovement
	}
	raw, err := a.completer.Complete(ctx, genai.CompletionRequest{
		Model:       a.model,
		Prompt:      fmt.Sprintf(singleMovementPrompt, utterance),
		MaxTokens:   128,
		Temperature: 0,
	})
	if err != nil {
		return movement.Intent{}, fmt.Errorf("%w: %v", ErrNoMovement, err)
	}

	var parsed parsedMovement
	if err := singleMovementSchema.DecodeInto(raw, &parsed); err != nil {
		return movement.Intent{}, fmt.Errorf("%w: %v", ErrNoMovement, err)
	}
	intent := movement.Intent{
		Kind:          movement.Kind(parsed.Kind),
		ItemReference: parsed.Item,
		Quantity:      parsed.Quantity,
	}
	if err := intent.Validate(); err != nil {
		return movement.Intent{}, fmt.Errorf("%w: %v", ErrNoMovement, err)
	}
	return intent, nil
}

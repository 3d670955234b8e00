package agents

import (
	"context"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/movement"
)

const fastPrompt = "Rispondi in una o due frasi alla richiesta dell'utente sulla cantina. " +
	"Se ti servono dati che non hai, dillo chiaramente.\nRichiesta: "

// FastTier answers simple utterances. A single recognised movement is applied
// directly; anything else gets one short completion from the fast model.
// Failures are reported in metadata so the quality gate escalates them.
type FastTier struct {
	extractor movement.Extractor
	runner    MovementRunner
	stock     StockReader
	completer genai.Completer
	model     string
	timeout   time.Duration
	logger    logger.Logger
}

func NewFastTier(extractor movement.Extractor, runner MovementRunner, stock StockReader, completer genai.Completer, model string, timeout time.Duration, log logger.Logger) *FastTier {
	return &FastTier{
		extractor: extractor,
		runner:    runner,
		stock:     stock,
		completer: completer,
		model:     model,
		timeout:   timeout,
		logger:    logger.ForComponent(log, "fast-tier"),
	}
}

func (f *FastTier) Name() string { return "fast-tier" }

func (f *FastTier) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	if intents := f.extractor.Extract(req.Utterance); len(intents) == 1 {
		result, err := f.runner.Run(ctx, req.ConversationID, intents)
		if result == nil {
			return failed("", err), nil
		}
		if err != nil {
			f.logger.Warn("movement run ended with error", map[string]interface{}{
				"conversationId": req.ConversationID,
				"error":          err.Error(),
			})
		}
		return RenderRunResult(result, err), nil
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	completion := genai.CompletionRequest{
		Model:       f.model,
		System:      systemPrompt,
		Prompt:      fastPrompt + req.Utterance,
		MaxTokens:   256,
		Temperature: 0.2,
	}
	if wines := f.lookup(ctx, req.Utterance); len(wines) > 0 {
		completion.Context = map[string]interface{}{"wines": wines}
	}

	text, err := f.completer.Complete(ctx, completion)
	if err != nil {
		f.logger.Warn("fast completion failed", map[string]interface{}{
			"conversationId": req.ConversationID,
			"error":          err.Error(),
		})
		return failed("", err), nil
	}
	return &assistant.Response{Message: text}, nil
}

// lookup gives the model the stock of wines whose name appears in the
// utterance. Errors only cost context.
func (f *FastTier) lookup(ctx context.Context, utterance string) []stockLine {
	if f.stock == nil {
		return nil
	}
	wines, err := f.stock.FindWines(ctx, lookupSubject(utterance))
	if err != nil {
		f.logger.Debug("stock lookup failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return toStockLines(wines)
}

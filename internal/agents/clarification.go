package agents

import (
	"context"
	"fmt"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/history"
)

const historyWindow = 10

// ClarificationAgent answers questions about the conversation itself
// ("cosa ti avevo chiesto?") from the stored history.
type ClarificationAgent struct {
	history   history.Store
	completer genai.Completer
	model     string
	logger    logger.Logger
}

func NewClarificationAgent(store history.Store, completer genai.Completer, model string, log logger.Logger) *ClarificationAgent {
	return &ClarificationAgent{
		history:   store,
		completer: completer,
		model:     model,
		logger:    logger.ForComponent(log, "clarification-agent"),
	}
}

func (a *ClarificationAgent) Name() string { return "clarification-agent" }

func (a *ClarificationAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	turns, err := a.history.Recent(ctx, req.ConversationID, historyWindow)
	if err != nil {
		return failed("Non riesco a recuperare la conversazione, riprova tra poco.", err), nil
	}
	if len(turns) == 0 {
		return &assistant.Response{Message: "Non ho messaggi precedenti in questa conversazione."}, nil
	}

	text, err := a.completer.Complete(ctx, genai.CompletionRequest{
		Model:       a.model,
		System:      systemPrompt,
		Prompt:      fmt.Sprintf("Conversazione finora:\n%s\nRispondi alla domanda dell'utente sulla conversazione: %s", history.Transcript(turns), req.Utterance),
		MaxTokens:   256,
		Temperature: 0.2,
	})
	if err == nil && text != "" {
		return &assistant.Response{Message: text}, nil
	}
	if err != nil {
		a.logger.Warn("clarification completion failed", map[string]interface{}{"error": err.Error()})
	}

	// The current utterance is usually not stored yet; skip it only if it is.
	last, ok := history.LastUserTurn(turns, turns[len(turns)-1].Text == req.Utterance)
	if !ok {
		return &assistant.Response{Message: "Non ho messaggi precedenti in questa conversazione."}, nil
	}
	return &assistant.Response{Message: fmt.Sprintf("Il tuo ultimo messaggio era: \"%s\".", last.Text)}, nil
}

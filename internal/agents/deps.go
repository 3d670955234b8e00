// Package agents holds one handler per task category. Each agent owns its
// prompts; data access goes through the narrow interfaces below.
package agents

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/catalog"
	"inventory-assistant/internal/common/aws"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"
)

// StockReader reads catalog entries and stock levels.
type StockReader interface {
	StockLevels(ctx context.Context, nameFilter string) ([]inventory.Wine, error)
	LowStock(ctx context.Context) ([]inventory.Wine, error)
	FindWines(ctx context.Context, reference string) ([]inventory.Wine, error)
}

// CatalogWriter changes catalog entries.
type CatalogWriter interface {
	AddWine(ctx context.Context, w inventory.Wine) (string, error)
	RemoveWine(ctx context.Context, wineID string) error
	UpdatePrice(ctx context.Context, wineID string, price float64) error
	SetMinQuantity(ctx context.Context, wineID string, minQuantity int) error
}

// Ledger aggregates the movement history.
type Ledger interface {
	TopMoved(ctx context.Context, kind movement.Kind, since time.Time, limit int) ([]inventory.MovedWine, error)
	Totals(ctx context.Context, since time.Time) (*inventory.MovementTotals, error)
}

// Searcher is the full-text catalog index.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) (*catalog.Result, error)
	Index(ctx context.Context, e catalog.Entry) error
	Delete(ctx context.Context, id string) error
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) ([]aws.Delivery, error)
}

// MovementRunner executes movement batches, or a single intent on its own.
type MovementRunner interface {
	Run(ctx context.Context, conversationID string, intents []movement.Intent) (*movement.RunResult, error)
	Apply(ctx context.Context, intent movement.Intent) movement.StepResult
}

const systemPrompt = "Sei l'assistente di una cantina. Rispondi in italiano, in modo breve e preciso, " +
	"usando solo i dati forniti nel contesto. Non inventare quantità o prezzi."

// narrator turns structured data into prose with a model call, falling back
// to a deterministic text when the model is unavailable.
type narrator struct {
	completer genai.Completer
	model     string
	logger    logger.Logger
}

func (n narrator) narrate(ctx context.Context, instruction string, data interface{}, fallback string) string {
	if n.completer == nil {
		return fallback
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fallback
	}
	text, err := n.completer.Complete(ctx, genai.CompletionRequest{
		Model:       n.model,
		System:      systemPrompt,
		Prompt:      instruction,
		Context:     map[string]interface{}{"data": json.RawMessage(payload)},
		Temperature: 0.3,
	})
	if err != nil {
		n.logger.Warn("narration unavailable, using plain text", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}
	return text
}

// structured attaches a JSON payload for rich rendering.
func structured(message string, payload interface{}) *assistant.Response {
	data, err := json.Marshal(payload)
	if err != nil {
		return &assistant.Response{Message: message}
	}
	return &assistant.Response{Message: message, Payload: string(data), IsStructured: true}
}

func failed(message string, err error) *assistant.Response {
	return &assistant.Response{
		Message:   message,
		Metadata:  map[string]interface{}{"error": err.Error()},
		ErrorCode: codeOf(err),
	}
}

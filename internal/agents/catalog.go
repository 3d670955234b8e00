package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/catalog"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/validation"
	"inventory-assistant/internal/inventory"
)

var ErrUnknownCommand = errors.New("UNKNOWN_CATALOG_COMMAND")

var catalogCommandSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["action", "name"],
	"properties": {
		"action": {"type": "string", "enum": ["add", "remove", "update_price"]},
		"name": {"type": "string", "minLength": 1},
		"producer": {"type": "string"},
		"vintage": {"type": "integer", "minimum": 0},
		"color": {"type": "string"},
		"region": {"type": "string"},
		"price": {"type": "number", "minimum": 0},
		"quantity": {"type": "integer", "minimum": 0}
	}
}`)

const catalogCommandPrompt = `Trasforma la richiesta in un comando di catalogo.
Rispondi solo con JSON: {"action": "add" | "remove" | "update_price", "name": "...", "producer": "...", "vintage": 0, "color": "...", "region": "...", "price": 0, "quantity": 0}.
Ometti i campi che non conosci.
Richiesta: %s`

type catalogCommand struct {
	Action   string  `json:"action"`
	Name     string  `json:"name"`
	Producer string  `json:"producer"`
	Vintage  int     `json:"vintage"`
	Color    string  `json:"color"`
	Region   string  `json:"region"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CatalogAgent adds, removes and re-prices wines. The model turns the request
// into a command that is schema-checked before anything is written.
type CatalogAgent struct {
	stock     StockReader
	writer    CatalogWriter
	search    Searcher
	completer genai.Completer
	model     string
	logger    logger.Logger
}

func NewCatalogAgent(stock StockReader, writer CatalogWriter, search Searcher, completer genai.Completer, model string, log logger.Logger) *CatalogAgent {
	return &CatalogAgent{
		stock:     stock,
		writer:    writer,
		search:    search,
		completer: completer,
		model:     model,
		logger:    logger.ForComponent(log, "catalog-agent"),
	}
}

func (a *CatalogAgent) Name() string { return "catalog-agent" }

func (a *CatalogAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	raw, err := a.completer.Complete(ctx, genai.CompletionRequest{
		Model:       a.model,
		Prompt:      fmt.Sprintf(catalogCommandPrompt, req.Utterance),
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return failed("Non riesco a elaborare la richiesta sul catalogo, riprova tra poco.", err), nil
	}

	var cmd catalogCommand
	if err := catalogCommandSchema.DecodeInto(raw, &cmd); err != nil {
		a.logger.Warn("invalid catalog command", map[string]interface{}{
			"conversationId": req.ConversationID,
			"error":          err.Error(),
		})
		return failed("Non ho capito la modifica al catalogo. Indica l'azione e il nome del vino.", err), nil
	}

	switch cmd.Action {
	case "add":
		return a.add(ctx, cmd)
	case "remove":
		return a.withTarget(ctx, cmd, a.remove)
	case "update_price":
		return a.withTarget(ctx, cmd, a.updatePrice)
	default:
		return failed("Azione di catalogo non supportata.", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Action)), nil
	}
}

func (a *CatalogAgent) add(ctx context.Context, cmd catalogCommand) (*assistant.Response, error) {
	wine := inventory.Wine{
		Name:     cmd.Name,
		Producer: cmd.Producer,
		Vintage:  cmd.Vintage,
		Color:    cmd.Color,
		Region:   cmd.Region,
		Price:    cmd.Price,
		Quantity: cmd.Quantity,
	}
	id, err := a.writer.AddWine(ctx, wine)
	if errors.Is(err, inventory.ErrDuplicateWine) {
		return &assistant.Response{Message: fmt.Sprintf("%s è già in catalogo.", wine.Label())}, nil
	}
	if err != nil {
		return failed("Non riesco a salvare il nuovo vino, riprova tra poco.", err), nil
	}

	a.index(ctx, catalog.Entry{
		ID: id, Name: wine.Name, Producer: wine.Producer, Vintage: wine.Vintage,
		Color: wine.Color, Region: wine.Region, Price: wine.Price,
	})
	return &assistant.Response{
		Message:  fmt.Sprintf("Aggiunto %s al catalogo con %d %s.", wine.Label(), wine.Quantity, plural(wine.Quantity, "bottiglia", "bottiglie")),
		Metadata: map[string]interface{}{"wineId": id},
	}, nil
}

// withTarget resolves the command's wine to exactly one entry before acting;
// several matches are listed back instead of guessing.
func (a *CatalogAgent) withTarget(ctx context.Context, cmd catalogCommand, act func(context.Context, catalogCommand, inventory.Wine) (*assistant.Response, error)) (*assistant.Response, error) {
	reference := cmd.Name
	if cmd.Vintage > 0 {
		reference = fmt.Sprintf("%s %d", cmd.Name, cmd.Vintage)
	}
	wines, err := a.stock.FindWines(ctx, reference)
	if err != nil {
		return failed("Non riesco a leggere il catalogo, riprova tra poco.", err), nil
	}

	switch len(wines) {
	case 0:
		return &assistant.Response{Message: fmt.Sprintf("Non ho trovato \"%s\" in catalogo.", reference)}, nil
	case 1:
		return act(ctx, cmd, wines[0])
	}

	var exact []inventory.Wine
	for _, w := range wines {
		if strings.EqualFold(w.Name, cmd.Name) && (cmd.Vintage == 0 || w.Vintage == cmd.Vintage) {
			exact = append(exact, w)
		}
	}
	if len(exact) == 1 {
		return act(ctx, cmd, exact[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ci sono più vini per \"%s\", indica quale (con l'annata):", reference)
	for i, w := range wines {
		fmt.Fprintf(&b, "\n%d. %s", i+1, w.Label())
	}
	return &assistant.Response{Message: b.String()}, nil
}

func (a *CatalogAgent) remove(ctx context.Context, _ catalogCommand, w inventory.Wine) (*assistant.Response, error) {
	if err := a.writer.RemoveWine(ctx, w.ID); err != nil {
		return failed("Non riesco a rimuovere il vino, riprova tra poco.", err), nil
	}
	if a.search != nil {
		if err := a.search.Delete(ctx, w.ID); err != nil {
			a.logger.Warn("catalog index delete failed", map[string]interface{}{"wineId": w.ID, "error": err.Error()})
		}
	}
	return &assistant.Response{
		Message:  fmt.Sprintf("Rimosso %s dal catalogo.", w.Label()),
		Metadata: map[string]interface{}{"wineId": w.ID},
	}, nil
}

func (a *CatalogAgent) updatePrice(ctx context.Context, cmd catalogCommand, w inventory.Wine) (*assistant.Response, error) {
	if cmd.Price <= 0 {
		return &assistant.Response{Message: fmt.Sprintf("Indica il nuovo prezzo per %s.", w.Label())}, nil
	}
	if err := a.writer.UpdatePrice(ctx, w.ID, cmd.Price); err != nil {
		return failed("Non riesco ad aggiornare il prezzo, riprova tra poco.", err), nil
	}
	return &assistant.Response{
		Message:  fmt.Sprintf("Prezzo di %s aggiornato a %.2f €.", w.Label(), cmd.Price),
		Metadata: map[string]interface{}{"wineId": w.ID},
	}, nil
}

// index keeps the search index in step; failures only affect search quality.
func (a *CatalogAgent) index(ctx context.Context, e catalog.Entry) {
	if a.search == nil {
		return
	}
	if err := a.search.Index(ctx, e); err != nil {
		a.logger.Warn("catalog index update failed", map[string]interface{}{"wineId": e.ID, "error": err.Error()})
	}
}

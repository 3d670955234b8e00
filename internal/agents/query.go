package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/catalog"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/inventory"
)

var lookupNoise = regexp.MustCompile(`(?i)\b(quant[aeio]|quali|qual|che|abbiamo|abbiam|ho|hai|ci|sono|resta|restano|rimast[aeio]|rimane|rimangono|bottiglie|bottiglia|di|del|della|dei|degli|delle|in|cantina|magazzino|giacenza|giacenze|stock|scorte|mostra|dimmi|elenca|vini|vino|how|many|much|do|we|have|of|is|are|there|left|show|me|list|the|wines|wine|bottles)\b|[?!.,;:]`)

const (
	searchLimit = 5
	stockLimit  = 20
)

// stockLine is the stock view handed to the model.
type stockLine struct {
	Wine     string  `json:"wine"`
	Producer string  `json:"producer,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

func toStockLines(wines []inventory.Wine) []stockLine {
	lines := make([]stockLine, 0, len(wines))
	for _, w := range wines {
		lines = append(lines, stockLine{Wine: w.Label(), Producer: w.Producer, Quantity: w.Quantity, Price: w.Price})
	}
	return lines
}

// lookupSubject strips question words so the rest can be matched against
// wine names.
func lookupSubject(utterance string) string {
	return strings.Join(strings.Fields(lookupNoise.ReplaceAllString(utterance, " ")), " ")
}

// QueryAgent answers questions about the catalog and stock. It is also the
// catch-all for categories without an agent of their own.
type QueryAgent struct {
	search   Searcher
	stock    StockReader
	narrator narrator
	logger   logger.Logger
}

func NewQueryAgent(search Searcher, stock StockReader, completer genai.Completer, model string, log logger.Logger) *QueryAgent {
	log = logger.ForComponent(log, "query-agent")
	return &QueryAgent{
		search:   search,
		stock:    stock,
		narrator: narrator{completer: completer, model: model, logger: log},
		logger:   log,
	}
}

func (a *QueryAgent) Name() string { return "query-agent" }

func (a *QueryAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	subject := lookupSubject(req.Utterance)

	wines, err := a.collect(ctx, subject)
	if err != nil {
		return failed("Non riesco a leggere l'inventario in questo momento, riprova tra poco.", err), nil
	}

	lines := toStockLines(wines)
	fallback := plainStock(subject, lines)
	message := a.narrator.narrate(ctx,
		"Rispondi alla domanda usando le giacenze nel contesto.\nDomanda: "+req.Utterance,
		lines, fallback)

	resp := &assistant.Response{
		Message:  message,
		Metadata: map[string]interface{}{"wines": len(lines)},
	}
	if req.Category == assistant.CategoryExtraction {
		resp.Message = "L'importazione da file non è ancora disponibile. " + resp.Message
	}
	return resp, nil
}

// collect prefers the full-text index and reads stock for each hit; without
// hits it falls back to a name match on the inventory.
func (a *QueryAgent) collect(ctx context.Context, subject string) ([]inventory.Wine, error) {
	if subject == "" {
		wines, err := a.stock.StockLevels(ctx, "")
		if len(wines) > stockLimit {
			wines = wines[:stockLimit]
		}
		return wines, err
	}

	if a.search != nil {
		hits, err := a.search.Search(ctx, subject, searchLimit)
		if err != nil {
			a.logger.Warn("catalog search failed, using inventory match", map[string]interface{}{
				"error": err.Error(),
			})
		} else if len(hits.Entries) > 0 {
			return a.stockFor(ctx, hits.Entries)
		}
	}
	return a.stock.StockLevels(ctx, subject)
}

func (a *QueryAgent) stockFor(ctx context.Context, entries []catalog.Entry) ([]inventory.Wine, error) {
	seen := make(map[string]bool)
	var wines []inventory.Wine
	for _, e := range entries {
		found, err := a.stock.StockLevels(ctx, e.Name)
		if err != nil {
			return nil, err
		}
		for _, w := range found {
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			wines = append(wines, w)
		}
	}
	return wines, nil
}

func plainStock(subject string, lines []stockLine) string {
	if len(lines) == 0 {
		if subject == "" {
			return "Il catalogo è vuoto."
		}
		return fmt.Sprintf("Non ho trovato vini per \"%s\".", subject)
	}
	var b strings.Builder
	b.WriteString("Giacenze:")
	for _, l := range lines {
		fmt.Fprintf(&b, "\n- %s: %d %s", l.Wine, l.Quantity, plural(l.Quantity, "bottiglia", "bottiglie"))
	}
	return b.String()
}

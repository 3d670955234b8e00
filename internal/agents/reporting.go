package agents

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/inventory"
)

var lowStockRequest = regexp.MustCompile(`(?i)(sotto\s*scorta|in esaurimento|esaurit\w*|da riordinare|riordino|low.?stock|running low|reorder)`)

// ReportingAgent renders the stock table. The payload is an HTML table the
// client shows as is.
type ReportingAgent struct {
	stock  StockReader
	logger logger.Logger
	now    func() time.Time
}

func NewReportingAgent(stock StockReader, log logger.Logger) *ReportingAgent {
	return &ReportingAgent{
		stock:  stock,
		logger: logger.ForComponent(log, "reporting-agent"),
		now:    time.Now,
	}
}

func (a *ReportingAgent) Name() string { return "reporting-agent" }

func (a *ReportingAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	title := "Report giacenze"
	var wines []inventory.Wine
	var err error
	if lowStockRequest.MatchString(req.Utterance) {
		title = "Vini sotto scorta"
		wines, err = a.stock.LowStock(ctx)
	} else {
		wines, err = a.stock.StockLevels(ctx, "")
	}
	if err != nil {
		return failed("Non riesco a preparare il report, riprova tra poco.", err), nil
	}

	bottles := 0
	value := 0.0
	for _, w := range wines {
		bottles += w.Quantity
		value += float64(w.Quantity) * w.Price
	}

	a.logger.Debug("report rendered", map[string]interface{}{"rows": len(wines)})
	return &assistant.Response{
		Message: fmt.Sprintf("%s del %s: %d %s, %d bottiglie, valore %.2f €.",
			title, a.now().Format("02/01/2006"), len(wines), plural(len(wines), "vino", "vini"), bottles, value),
		Payload:      renderTable(title, wines),
		IsStructured: true,
		Metadata:     map[string]interface{}{"rows": len(wines), "bottles": bottles},
	}, nil
}

func renderTable(title string, wines []inventory.Wine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<table data-report=\"stock\"><caption>%s</caption>", html.EscapeString(title))
	b.WriteString("<thead><tr><th>Vino</th><th>Produttore</th><th>Regione</th><th>Quantità</th><th>Scorta minima</th><th>Prezzo</th></tr></thead><tbody>")
	for _, w := range wines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%.2f</td></tr>",
			html.EscapeString(w.Label()), html.EscapeString(w.Producer), html.EscapeString(w.Region),
			w.Quantity, w.MinQuantity, w.Price)
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"
)

var (
	periodToday = regexp.MustCompile(`(?i)\b(oggi|today)\b`)
	periodWeek  = regexp.MustCompile(`(?i)\b(settiman\w*|week\w*|7 giorni)\b`)
	periodYear  = regexp.MustCompile(`(?i)\b(anno|annual\w*|year\w*|12 mesi)\b`)
	inbound     = regexp.MustCompile(`(?i)\b(caricat\w*|acquistat\w*|comprat\w*|ricevut\w*|riforniment\w*|entrat\w*|purchas\w*|restock\w*|received|bought)\b`)
)

const topLimit = 5

type analyticsReport struct {
	Period string                    `json:"period"`
	Totals *inventory.MovementTotals `json:"totals"`
	Kind   movement.Kind             `json:"kind"`
	Top    []inventory.MovedWine     `json:"top"`
}

// AnalyticsAgent summarises the movement ledger over a period named in the
// utterance (today, week, month, year; a month by default).
type AnalyticsAgent struct {
	ledger   Ledger
	narrator narrator
	logger   logger.Logger
	now      func() time.Time
}

func NewAnalyticsAgent(ledger Ledger, completer genai.Completer, model string, log logger.Logger) *AnalyticsAgent {
	log = logger.ForComponent(log, "analytics-agent")
	return &AnalyticsAgent{
		ledger:   ledger,
		narrator: narrator{completer: completer, model: model, logger: log},
		logger:   log,
		now:      time.Now,
	}
}

func (a *AnalyticsAgent) Name() string { return "analytics-agent" }

func (a *AnalyticsAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	label, since := periodOf(req.Utterance, a.now())
	kind := movement.Consumption
	if inbound.MatchString(req.Utterance) {
		kind = movement.Replenishment
	}

	totals, err := a.ledger.Totals(ctx, since)
	if err != nil {
		return failed("Non riesco a leggere lo storico dei movimenti, riprova tra poco.", err), nil
	}
	top, err := a.ledger.TopMoved(ctx, kind, since, topLimit)
	if err != nil {
		return failed("Non riesco a leggere lo storico dei movimenti, riprova tra poco.", err), nil
	}

	report := analyticsReport{Period: label, Totals: totals, Kind: kind, Top: top}
	message := a.narrator.narrate(ctx,
		"Commenta in poche frasi i dati dei movimenti nel contesto.\nDomanda: "+req.Utterance,
		report, plainAnalytics(report))

	return structured(message, report), nil
}

func periodOf(utterance string, now time.Time) (string, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case periodToday.MatchString(utterance):
		return "oggi", midnight
	case periodWeek.MatchString(utterance):
		return "ultimi 7 giorni", midnight.AddDate(0, 0, -7)
	case periodYear.MatchString(utterance):
		return "ultimo anno", midnight.AddDate(-1, 0, 0)
	default:
		return "ultimi 30 giorni", midnight.AddDate(0, 0, -30)
	}
}

func plainAnalytics(r analyticsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Movimenti %s: %d (%d bottiglie scaricate, %d caricate).",
		r.Period, r.Totals.Movements, r.Totals.Consumed, r.Totals.Replenished)
	if len(r.Top) == 0 {
		return b.String()
	}
	title := "Più venduti"
	if r.Kind == movement.Replenishment {
		title = "Più caricati"
	}
	fmt.Fprintf(&b, "\n%s:", title)
	for i, m := range r.Top {
		fmt.Fprintf(&b, "\n%d. %s: %d", i+1, m.Label, m.Quantity)
	}
	return b.String()
}

package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/aws"
	apperrors "inventory-assistant/internal/common/errors"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/inventory"
)

// thresholdRequest captures "avvisami quando il Barolo scende sotto 3".
var thresholdRequest = regexp.MustCompile(`(?i)(?:avvisa\w*|notifica\w*|alert|warn|notify)\s+(?:mi\s+)?(?:me\s+)?(?:quando|se|when|if)\s+(?:il\s+|lo\s+|la\s+|l'|i\s+|gli\s+|le\s+|the\s+)?(.+?)\s+(?:scende|scendono|va|vanno|è|sono|goes|drops|falls|is|are)\s+(?:sotto|below|under)\s+(?:le\s+|i\s+)?(\d+)`)

// NotificationAgent configures low-stock thresholds and sends the current
// low-stock alert through the configured channels.
type NotificationAgent struct {
	stock    StockReader
	writer   CatalogWriter
	notifier Notifier
	logger   logger.Logger
}

func NewNotificationAgent(stock StockReader, writer CatalogWriter, notifier Notifier, log logger.Logger) *NotificationAgent {
	return &NotificationAgent{
		stock:    stock,
		writer:   writer,
		notifier: notifier,
		logger:   logger.ForComponent(log, "notification-agent"),
	}
}

func (a *NotificationAgent) Name() string { return "notification-agent" }

func (a *NotificationAgent) Handle(ctx context.Context, req *assistant.Request) (*assistant.Response, error) {
	if m := thresholdRequest.FindStringSubmatch(req.Utterance); m != nil {
		threshold, err := strconv.Atoi(m[2])
		if err == nil {
			return a.setThreshold(ctx, strings.TrimSpace(m[1]), threshold)
		}
	}
	return a.alertLowStock(ctx)
}

func (a *NotificationAgent) setThreshold(ctx context.Context, reference string, threshold int) (*assistant.Response, error) {
	wines, err := a.stock.FindWines(ctx, reference)
	if err != nil {
		return failed("Non riesco a leggere il catalogo, riprova tra poco.", err), nil
	}
	if len(wines) == 0 {
		return &assistant.Response{Message: fmt.Sprintf("Non ho trovato \"%s\" in catalogo.", reference)}, nil
	}
	if len(wines) > 1 {
		var b strings.Builder
		fmt.Fprintf(&b, "Ci sono più vini per \"%s\", indica quale:", reference)
		for i, w := range wines {
			fmt.Fprintf(&b, "\n%d. %s", i+1, w.Label())
		}
		return &assistant.Response{Message: b.String()}, nil
	}

	w := wines[0]
	if err := a.writer.SetMinQuantity(ctx, w.ID, threshold); err != nil {
		return failed("Non riesco a salvare la soglia, riprova tra poco.", err), nil
	}
	return &assistant.Response{
		Message:  fmt.Sprintf("Ok, ti avviso quando %s scende sotto %d %s (ora: %d).", w.Label(), threshold, plural(threshold, "bottiglia", "bottiglie"), w.Quantity),
		Metadata: map[string]interface{}{"wineId": w.ID, "threshold": threshold},
	}, nil
}

func (a *NotificationAgent) alertLowStock(ctx context.Context) (*assistant.Response, error) {
	wines, err := a.stock.LowStock(ctx)
	if err != nil {
		return failed("Non riesco a controllare le scorte, riprova tra poco.", err), nil
	}
	if len(wines) == 0 {
		return &assistant.Response{Message: "Nessun vino è sotto la scorta minima."}, nil
	}

	body := lowStockBody(wines)
	if a.notifier == nil {
		return &assistant.Response{Message: body}, nil
	}

	subject := fmt.Sprintf("Cantina: %d %s sotto scorta", len(wines), plural(len(wines), "vino", "vini"))
	deliveries, err := a.notifier.Notify(ctx, subject, body)
	if err != nil {
		a.logger.Error("low-stock alert not delivered", map[string]interface{}{"error": err.Error()})
		channels := failedChannels(deliveries)
		stdErr := apperrors.NewNotificationSendFailedError(strings.Join(channels, ","), err)
		return &assistant.Response{
			Message:   body + "\nNon sono riuscito a inviare la notifica.",
			Metadata:  map[string]interface{}{"notified": false, "failedChannels": channels},
			ErrorCode: string(stdErr.Code),
		}, nil
	}

	var sent []string
	for _, d := range deliveries {
		if d.Err == nil {
			sent = append(sent, d.Channel)
		} else {
			a.logger.Warn("alert channel failed", map[string]interface{}{"channel": d.Channel, "error": d.Err.Error()})
		}
	}
	return &assistant.Response{
		Message:  body + fmt.Sprintf("\nNotifica inviata (%s).", strings.Join(sent, ", ")),
		Metadata: map[string]interface{}{"notified": true, "channels": sent},
	}, nil
}

func failedChannels(deliveries []aws.Delivery) []string {
	var out []string
	for _, d := range deliveries {
		if d.Err != nil {
			out = append(out, d.Channel)
		}
	}
	return out
}

func lowStockBody(wines []inventory.Wine) string {
	var b strings.Builder
	b.WriteString("Vini sotto scorta:")
	for _, w := range wines {
		fmt.Fprintf(&b, "\n- %s: %d (minimo %d)", w.Label(), w.Quantity, w.MinQuantity)
	}
	return b.String()
}

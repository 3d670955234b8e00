package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/catalog"
	"inventory-assistant/internal/common/aws"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func request(utterance string, category assistant.Category) *assistant.Request {
	return &assistant.Request{Utterance: utterance, ConversationID: "conv-1", Category: category}
}

// ==========================
// Fast tier
// ==========================

func TestFastTier_AppliesSingleMovement(t *testing.T) {
	runner := &fakeRunner{result: completedRun(movement.StepResult{
		Intent:  movement.Intent{Kind: movement.Consumption, ItemReference: "Barolo", Quantity: 2},
		Outcome: movement.Applied("Barolo 2015: 12 -> 10"),
	})}
	completer := new(MockCompleter)
	fast := NewFastTier(movement.NewPatternExtractor(), runner, &fakeStock{}, completer, "fast", time.Second, logger.NewTestLogger(t))

	resp, err := fast.Handle(context.Background(), request("venduto 2 Barolo", ""))
	require.NoError(t, err)
	assert.True(t, resp.IsStructured)
	assert.Len(t, runner.intents, 1)
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestFastTier_AnswersWithStockContext(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.CompletionRequest) bool {
		lines, ok := req.Context["wines"].([]stockLine)
		return req.Model == "fast" && ok && len(lines) == 1 && lines[0].Quantity == 12
	})).Return("Hai 12 bottiglie di Barolo 2015.", nil)

	fast := NewFastTier(movement.NewPatternExtractor(), &fakeRunner{}, &fakeStock{wines: cellar}, completer, "fast", time.Second, logger.NewTestLogger(t))

	resp, err := fast.Handle(context.Background(), request("quante bottiglie di Barolo abbiamo?", ""))
	require.NoError(t, err)
	assert.Equal(t, "Hai 12 bottiglie di Barolo 2015.", resp.Message)
	completer.AssertExpectations(t)
}

func TestFastTier_FailureIsFlagged(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("", genai.ErrLLMTimeout)

	fast := NewFastTier(movement.NewPatternExtractor(), &fakeRunner{}, nil, completer, "fast", time.Second, logger.NewTestLogger(t))

	resp, err := fast.Handle(context.Background(), request("quanto Barolo c'è", ""))
	require.NoError(t, err)
	assert.Empty(t, resp.Message)
	assert.Contains(t, resp.Metadata["error"], "LLM_TIMEOUT")
	assert.Equal(t, "LLM_TIMEOUT", resp.ErrorCode)
}

// ==========================
// Query agent
// ==========================

func TestLookupSubject(t *testing.T) {
	tests := map[string]string{
		"quante bottiglie di Barolo abbiamo?": "Barolo",
		"how many bottles of Chianti left":    "Chianti",
		"quanto Amarone 2015 resta in cantina": "Amarone 2015",
	}
	for in, want := range tests {
		assert.Equal(t, want, lookupSubject(in), in)
	}
}

func TestQueryAgent_UsesSearchHits(t *testing.T) {
	search := &fakeSearch{result: &catalog.Result{Entries: []catalog.Entry{{ID: "w3", Name: "Amarone"}}}}
	stock := &fakeStock{wines: cellar}
	agent := NewQueryAgent(search, stock, nil, "", logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("quante bottiglie di amarone?", assistant.CategoryQuery))
	require.NoError(t, err)
	assert.Equal(t, []string{"Amarone"}, stock.filters)
	assert.Contains(t, resp.Message, "Amarone 2012: 5 bottiglie")
	assert.Contains(t, resp.Message, "Amarone 2015: 3 bottiglie")
	assert.Equal(t, 2, resp.Metadata["wines"])
}

func TestQueryAgent_SearchFailureFallsBack(t *testing.T) {
	search := &fakeSearch{err: catalog.ErrSearchTimeout}
	stock := &fakeStock{wines: cellar}
	agent := NewQueryAgent(search, stock, nil, "", logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("quanto Chianti abbiamo?", assistant.CategoryQuery))
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Chianti Classico 2019: 2 bottiglie")
}

func TestQueryAgent_Narrates(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.CompletionRequest) bool {
		return req.Model == "capable" && req.Context["data"] != nil
	})).Return("Del Barolo 2015 restano 12 bottiglie.", nil)

	agent := NewQueryAgent(nil, &fakeStock{wines: cellar}, completer, "capable", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("quanto Barolo?", assistant.CategoryQuery))
	require.NoError(t, err)
	assert.Equal(t, "Del Barolo 2015 restano 12 bottiglie.", resp.Message)
}

func TestQueryAgent_ExtractionNotice(t *testing.T) {
	agent := NewQueryAgent(nil, &fakeStock{wines: cellar}, nil, "", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("importa il listino", assistant.CategoryExtraction))
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "L'importazione da file non è ancora disponibile.")
}

func TestQueryAgent_InventoryDown(t *testing.T) {
	agent := NewQueryAgent(nil, &fakeStock{err: inventory.ErrInventoryUnavailable}, nil, "", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("quanto Barolo?", assistant.CategoryQuery))
	require.NoError(t, err)
	assert.NotNil(t, resp.Metadata["error"])
}

func TestQueryAgent_NothingFound(t *testing.T) {
	agent := NewQueryAgent(nil, &fakeStock{wines: cellar}, nil, "", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("quanto Brunello?", assistant.CategoryQuery))
	require.NoError(t, err)
	assert.Equal(t, `Non ho trovato vini per "Brunello".`, resp.Message)
}

// ==========================
// Analytics agent
// ==========================

func TestAnalyticsAgent(t *testing.T) {
	ledger := &fakeLedger{
		totals: &inventory.MovementTotals{Movements: 7, Consumed: 20, Replenished: 12},
		top:    []inventory.MovedWine{{Label: "Barolo 2015", Quantity: 11}, {Label: "Chianti Classico 2019", Quantity: 9}},
	}
	agent := NewAnalyticsAgent(ledger, nil, "", logger.NewTestLogger(t))
	agent.now = func() time.Time { return time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC) }

	resp, err := agent.Handle(context.Background(), request("quali vini abbiamo venduto di più questa settimana?", assistant.CategoryAnalytics))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), ledger.since)
	assert.Equal(t, movement.Consumption, ledger.kind)
	assert.True(t, resp.IsStructured)
	assert.Contains(t, resp.Message, "Movimenti ultimi 7 giorni: 7 (20 bottiglie scaricate, 12 caricate).")
	assert.Contains(t, resp.Message, "1. Barolo 2015: 11")
}

func TestAnalyticsAgent_Replenishments(t *testing.T) {
	ledger := &fakeLedger{totals: &inventory.MovementTotals{}}
	agent := NewAnalyticsAgent(ledger, nil, "", logger.NewTestLogger(t))

	_, err := agent.Handle(context.Background(), request("cosa abbiamo acquistato quest'anno", assistant.CategoryAnalytics))
	require.NoError(t, err)
	assert.Equal(t, movement.Replenishment, ledger.kind)
}

func TestAnalyticsAgent_LedgerDown(t *testing.T) {
	agent := NewAnalyticsAgent(&fakeLedger{err: inventory.ErrInventoryUnavailable}, nil, "", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("andamento del mese", assistant.CategoryAnalytics))
	require.NoError(t, err)
	assert.NotNil(t, resp.Metadata["error"])
}

func TestPeriodOf(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		utterance string
		label     string
		since     time.Time
	}{
		{"vendite di oggi", "oggi", time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)},
		{"this week", "ultimi 7 giorni", time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{"nell'ultimo anno", "ultimo anno", time.Date(2023, 5, 20, 0, 0, 0, 0, time.UTC)},
		{"trend", "ultimi 30 giorni", time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		label, since := periodOf(tt.utterance, now)
		assert.Equal(t, tt.label, label, tt.utterance)
		assert.Equal(t, tt.since, since, tt.utterance)
	}
}

// ==========================
// Catalog agent
// ==========================

func catalogAgent(t *testing.T, reply string, writer *fakeWriter, search *fakeSearch) *CatalogAgent {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return(reply, nil)
	var searcher Searcher
	if search != nil {
		searcher = search
	}
	return NewCatalogAgent(&fakeStock{wines: cellar}, writer, searcher, completer, "capable", logger.NewTestLogger(t))
}

func TestCatalogAgent_Add(t *testing.T) {
	writer, search := newFakeWriter(), &fakeSearch{}
	agent := catalogAgent(t, `{"action":"add","name":"Etna Rosso","producer":"Benanti","vintage":2020,"quantity":6,"price":25}`, writer, search)

	resp, err := agent.Handle(context.Background(), request("aggiungi Etna Rosso 2020 di Benanti, 6 bottiglie a 25 euro", assistant.CategoryCatalogManagement))
	require.NoError(t, err)

	require.Len(t, writer.added, 1)
	assert.Equal(t, "Benanti", writer.added[0].Producer)
	require.Len(t, search.indexed, 1)
	assert.Equal(t, "new-id", search.indexed[0].ID)
	assert.Equal(t, "Aggiunto Etna Rosso 2020 al catalogo con 6 bottiglie.", resp.Message)
}

func TestCatalogAgent_AddDuplicate(t *testing.T) {
	writer := newFakeWriter()
	writer.addErr = fmt.Errorf("%w: Barolo 2015", inventory.ErrDuplicateWine)
	agent := catalogAgent(t, `{"action":"add","name":"Barolo","vintage":2015}`, writer, &fakeSearch{})

	resp, err := agent.Handle(context.Background(), request("aggiungi Barolo 2015", assistant.CategoryCatalogManagement))
	require.NoError(t, err)
	assert.Equal(t, "Barolo 2015 è già in catalogo.", resp.Message)
}

func TestCatalogAgent_RemoveUnique(t *testing.T) {
	writer, search := newFakeWriter(), &fakeSearch{}
	agent := catalogAgent(t, `{"action":"remove","name":"Barolo"}`, writer, search)

	resp, err := agent.Handle(context.Background(), request("elimina il Barolo", assistant.CategoryCatalogManagement))
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, writer.removed)
	assert.Equal(t, []string{"w1"}, search.deleted)
	assert.Equal(t, "Rimosso Barolo 2015 dal catalogo.", resp.Message)
}

func TestCatalogAgent_AmbiguousTargetIsListed(t *testing.T) {
	writer := newFakeWriter()
	agent := catalogAgent(t, `{"action":"update_price","name":"Amarone","price":90}`, writer, nil)

	resp, err := agent.Handle(context.Background(), request("porta l'Amarone a 90 euro", assistant.CategoryCatalogManagement))
	require.NoError(t, err)
	assert.Empty(t, writer.prices)
	assert.Contains(t, resp.Message, "1. Amarone 2012")
	assert.Contains(t, resp.Message, "2. Amarone 2015")
}

func TestCatalogAgent_UpdatePriceWithVintage(t *testing.T) {
	writer := newFakeWriter()
	agent := catalogAgent(t, `{"action":"update_price","name":"Amarone","vintage":2015,"price":130}`, writer, nil)

	resp, err := agent.Handle(context.Background(), request("Amarone 2015 a 130 euro", assistant.CategoryCatalogManagement))
	require.NoError(t, err)
	assert.Equal(t, 130.0, writer.prices["w4"])
	assert.Equal(t, "Prezzo di Amarone 2015 aggiornato a 130.00 €.", resp.Message)
}

func TestCatalogAgent_InvalidCommand(t *testing.T) {
	tests := []string{
		`{"action":"rename","name":"Barolo"}`,
		`{"action":"add"}`,
		`non so`,
	}
	for _, reply := range tests {
		t.Run(reply, func(t *testing.T) {
			writer := newFakeWriter()
			agent := catalogAgent(t, reply, writer, nil)
			resp, err := agent.Handle(context.Background(), request("fai qualcosa", assistant.CategoryCatalogManagement))
			require.NoError(t, err)
			assert.NotNil(t, resp.Metadata["error"])
			assert.Empty(t, writer.added)
		})
	}
}

func TestCatalogAgent_NotFound(t *testing.T) {
	agent := catalogAgent(t, `{"action":"remove","name":"Brunello"}`, newFakeWriter(), nil)
	resp, err := agent.Handle(context.Background(), request("togli il Brunello", assistant.CategoryCatalogManagement))
	require.NoError(t, err)
	assert.Equal(t, `Non ho trovato "Brunello" in catalogo.`, resp.Message)
}

// ==========================
// Reporting agent
// ==========================

func TestReportingAgent_StockTable(t *testing.T) {
	agent := NewReportingAgent(&fakeStock{wines: []inventory.Wine{
		{ID: "w1", Name: "Barolo", Vintage: 2015, Producer: "Borgogno & Figli", Quantity: 12, Price: 45},
		{ID: "w2", Name: "Chianti", Quantity: 2, Price: 20},
	}}, logger.NewTestLogger(t))
	agent.now = func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) }

	resp, err := agent.Handle(context.Background(), request("fammi il report delle giacenze", assistant.CategoryReporting))
	require.NoError(t, err)

	assert.True(t, resp.IsStructured)
	assert.Equal(t, "Report giacenze del 20/05/2024: 2 vini, 14 bottiglie, valore 580.00 €.", resp.Message)
	assert.Contains(t, resp.Payload, "<td>Barolo 2015</td><td>Borgogno &amp; Figli</td>")
	assert.Contains(t, resp.Payload, "<caption>Report giacenze</caption>")
}

func TestReportingAgent_LowStock(t *testing.T) {
	agent := NewReportingAgent(&fakeStock{wines: cellar, low: cellar[1:2]}, logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("report dei vini sotto scorta", assistant.CategoryReporting))
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Vini sotto scorta")
	assert.Equal(t, 1, resp.Metadata["rows"])
}

// ==========================
// Notification agent
// ==========================

func TestNotificationAgent_SetsThreshold(t *testing.T) {
	writer := newFakeWriter()
	agent := NewNotificationAgent(&fakeStock{wines: cellar}, writer, nil, logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("avvisami quando il Barolo scende sotto 4", assistant.CategoryNotification))
	require.NoError(t, err)
	assert.Equal(t, 4, writer.mins["w1"])
	assert.Equal(t, "Ok, ti avviso quando Barolo 2015 scende sotto 4 bottiglie (ora: 12).", resp.Message)
}

func TestNotificationAgent_ThresholdAmbiguous(t *testing.T) {
	writer := newFakeWriter()
	agent := NewNotificationAgent(&fakeStock{wines: cellar}, writer, nil, logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("avvisami se l'Amarone va sotto 2", assistant.CategoryNotification))
	require.NoError(t, err)
	assert.Empty(t, writer.mins)
	assert.Contains(t, resp.Message, "Ci sono più vini per \"Amarone\"")
}

func TestNotificationAgent_SendsLowStockAlert(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, "Cantina: 1 vino sotto scorta", mock.MatchedBy(func(body string) bool {
		return body == "Vini sotto scorta:\n- Chianti Classico 2019: 2 (minimo 4)"
	})).Return([]aws.Delivery{
		{Channel: "sns", MessageID: "m-1"},
		{Channel: "email", Err: errors.New("throttled")},
	}, nil)

	agent := NewNotificationAgent(&fakeStock{low: cellar[1:2]}, newFakeWriter(), notifier, logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("ci sono avvisi di scorte?", assistant.CategoryNotification))
	require.NoError(t, err)

	assert.Contains(t, resp.Message, "Notifica inviata (sns).")
	assert.Equal(t, true, resp.Metadata["notified"])
	notifier.AssertExpectations(t)
}

func TestNotificationAgent_DeliveryFailed(t *testing.T) {
	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil, aws.ErrAllSendsFailed)

	agent := NewNotificationAgent(&fakeStock{low: cellar[1:2]}, newFakeWriter(), notifier, logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("manda l'allerta scorte", assistant.CategoryNotification))
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Non sono riuscito a inviare la notifica.")
	assert.Equal(t, false, resp.Metadata["notified"])
	assert.Equal(t, "NOTIFICATION_SEND_FAILED", resp.ErrorCode)
}

func TestNotificationAgent_NothingLow(t *testing.T) {
	notifier := new(MockNotifier)
	agent := NewNotificationAgent(&fakeStock{}, newFakeWriter(), notifier, logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("allerta scorte", assistant.CategoryNotification))
	require.NoError(t, err)
	assert.Equal(t, "Nessun vino è sotto la scorta minima.", resp.Message)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

// ==========================
// Clarification agent
// ==========================

func TestClarificationAgent_UsesTranscript(t *testing.T) {
	store := &fakeHistory{turns: []history.Turn{
		{Role: history.RoleUser, Text: "quanto Barolo?"},
		{Role: history.RoleAssistant, Text: "12 bottiglie"},
	}}
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.CompletionRequest) bool {
		return req.Model == "capable" &&
			strings.Contains(req.Prompt, "user: quanto Barolo?") &&
			strings.Contains(req.Prompt, "assistant: 12 bottiglie")
	})).Return("Mi avevi chiesto quanto Barolo c'è.", nil)

	agent := NewClarificationAgent(store, completer, "capable", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("cosa ti avevo chiesto?", assistant.CategoryDialogueClarification))
	require.NoError(t, err)
	assert.Equal(t, "Mi avevi chiesto quanto Barolo c'è.", resp.Message)
}

func TestClarificationAgent_FallsBackToLastMessage(t *testing.T) {
	store := &fakeHistory{turns: []history.Turn{
		{Role: history.RoleUser, Text: "venduto 2 Barolo"},
		{Role: history.RoleAssistant, Text: "fatto"},
	}}
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.Anything).Return("", genai.ErrLLMUnavailable)

	agent := NewClarificationAgent(store, completer, "capable", logger.NewTestLogger(t))
	resp, err := agent.Handle(context.Background(), request("cosa avevo detto?", assistant.CategoryDialogueClarification))
	require.NoError(t, err)
	assert.Equal(t, `Il tuo ultimo messaggio era: "venduto 2 Barolo".`, resp.Message)
}

func TestClarificationAgent_EmptyHistory(t *testing.T) {
	completer := new(MockCompleter)
	agent := NewClarificationAgent(&fakeHistory{}, completer, "capable", logger.NewTestLogger(t))

	resp, err := agent.Handle(context.Background(), request("di cosa parlavamo?", assistant.CategoryDialogueClarification))
	require.NoError(t, err)
	assert.Equal(t, "Non ho messaggi precedenti in questa conversazione.", resp.Message)
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

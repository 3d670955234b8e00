package agents

import (
	"context"
	"strings"
	"time"

	"inventory-assistant/internal/catalog"
	"inventory-assistant/internal/common/aws"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/inventory"
	"inventory-assistant/internal/movement"

	"github.com/stretchr/testify/mock"
)

// ==========================
// Mocks
// ==========================

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req genai.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, subject, body string) ([]aws.Delivery, error) {
	args := m.Called(ctx, subject, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]aws.Delivery), args.Error(1)
}

// ==========================
// Fakes
// ==========================

type fakeStock struct {
	wines   []inventory.Wine
	low     []inventory.Wine
	err     error
	filters []string
}

func (f *fakeStock) StockLevels(ctx context.Context, nameFilter string) ([]inventory.Wine, error) {
	f.filters = append(f.filters, nameFilter)
	if f.err != nil {
		return nil, f.err
	}
	var out []inventory.Wine
	for _, w := range f.wines {
		if nameFilter == "" || strings.Contains(strings.ToLower(w.Name), strings.ToLower(nameFilter)) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStock) LowStock(ctx context.Context) ([]inventory.Wine, error) {
	return f.low, f.err
}

func (f *fakeStock) FindWines(ctx context.Context, reference string) ([]inventory.Wine, error) {
	if f.err != nil {
		return nil, f.err
	}
	if reference == "" {
		return nil, nil
	}
	var out []inventory.Wine
	for _, w := range f.wines {
		if strings.Contains(strings.ToLower(w.Label()), strings.ToLower(reference)) {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeWriter struct {
	added   []inventory.Wine
	removed []string
	prices  map[string]float64
	mins    map[string]int
	addErr  error
	err     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{prices: map[string]float64{}, mins: map[string]int{}}
}

func (f *fakeWriter) AddWine(ctx context.Context, w inventory.Wine) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, w)
	return "new-id", nil
}

func (f *fakeWriter) RemoveWine(ctx context.Context, wineID string) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, wineID)
	return nil
}

func (f *fakeWriter) UpdatePrice(ctx context.Context, wineID string, price float64) error {
	if f.err != nil {
		return f.err
	}
	f.prices[wineID] = price
	return nil
}

func (f *fakeWriter) SetMinQuantity(ctx context.Context, wineID string, minQuantity int) error {
	if f.err != nil {
		return f.err
	}
	f.mins[wineID] = minQuantity
	return nil
}

type fakeLedger struct {
	totals *inventory.MovementTotals
	top    []inventory.MovedWine
	err    error
	since  time.Time
	kind   movement.Kind
}

func (f *fakeLedger) TopMoved(ctx context.Context, kind movement.Kind, since time.Time, limit int) ([]inventory.MovedWine, error) {
	f.kind = kind
	return f.top, f.err
}

func (f *fakeLedger) Totals(ctx context.Context, since time.Time) (*inventory.MovementTotals, error) {
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return f.totals, nil
}

type fakeSearch struct {
	result  *catalog.Result
	err     error
	indexed []catalog.Entry
	deleted []string
}

func (f *fakeSearch) Search(ctx context.Context, text string, limit int) (*catalog.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &catalog.Result{}, nil
	}
	return f.result, nil
}

func (f *fakeSearch) Index(ctx context.Context, e catalog.Entry) error {
	f.indexed = append(f.indexed, e)
	return nil
}

func (f *fakeSearch) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeRunner struct {
	result  *movement.RunResult
	err     error
	intents [][]movement.Intent

	outcome movement.Outcome
	applied []movement.Intent
}

func (f *fakeRunner) Run(ctx context.Context, conversationID string, intents []movement.Intent) (*movement.RunResult, error) {
	f.intents = append(f.intents, intents)
	return f.result, f.err
}

func (f *fakeRunner) Apply(ctx context.Context, intent movement.Intent) movement.StepResult {
	f.applied = append(f.applied, intent)
	return movement.StepResult{Intent: intent, Outcome: f.outcome}
}

type fakeHistory struct {
	turns []history.Turn
	err   error
}

func (f *fakeHistory) Append(ctx context.Context, conversationID string, turns ...history.Turn) error {
	f.turns = append(f.turns, turns...)
	return f.err
}

func (f *fakeHistory) Recent(ctx context.Context, conversationID string, n int) ([]history.Turn, error) {
	return f.turns, f.err
}

func (f *fakeHistory) Clear(ctx context.Context, conversationID string) error {
	f.turns = nil
	return f.err
}

func completedRun(steps ...movement.StepResult) *movement.RunResult {
	return &movement.RunResult{State: movement.StateCompleted, Results: steps}
}

var cellar = []inventory.Wine{
	{ID: "w1", Name: "Barolo", Producer: "Borgogno", Vintage: 2015, Quantity: 12, Price: 45, MinQuantity: 3},
	{ID: "w2", Name: "Chianti Classico", Producer: "Fontodi", Vintage: 2019, Quantity: 2, Price: 22, MinQuantity: 4},
	{ID: "w3", Name: "Amarone", Producer: "Bertani", Vintage: 2012, Quantity: 5, Price: 80},
	{ID: "w4", Name: "Amarone", Producer: "Quintarelli", Vintage: 2015, Quantity: 3, Price: 120},
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/assistant/complexity"
	"inventory-assistant/internal/assistant/quality"
	"inventory-assistant/internal/assistant/router"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/history"
	"inventory-assistant/internal/movement"
	"inventory-assistant/internal/movement/pending"
)

// ==========================
// Fakes
// ==========================

type fakeAgent struct {
	name  string
	resp  *assistant.Response
	err   error
	delay time.Duration

	mu       sync.Mutex
	requests []*assistant.Request
	active   int32
	peak     int32
}

func (a *fakeAgent) Name() string { return a.name }

func (a *fakeAgent) Handle(_ context.Context, req *assistant.Request) (*assistant.Response, error) {
	n := atomic.AddInt32(&a.active, 1)
	for {
		p := atomic.LoadInt32(&a.peak)
		if n <= p || atomic.CompareAndSwapInt32(&a.peak, p, n) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	atomic.AddInt32(&a.active, -1)

	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return a.resp, a.err
}

func (a *fakeAgent) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

type fakeRouter struct {
	decision router.Decision
	err      error
	calls    int32
}

func (r *fakeRouter) Route(context.Context, string) (router.Decision, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.decision, r.err
}

type fakeResolver map[assistant.Category]assistant.Agent

func (f fakeResolver) Resolve(c assistant.Category) assistant.Agent { return f[c] }

// cellar answers "amarone" with two candidates and applies everything else.
type cellar struct{}

var amarone = []movement.Candidate{
	{ID: "w3", Name: "Amarone", Details: "2012"},
	{ID: "w4", Name: "Amarone", Details: "2015"},
}

func (cellar) ApplyMovement(_ context.Context, item string, kind movement.Kind, qty int) (movement.Outcome, error) {
	if item == "amarone" || item == "Amarone" {
		return movement.Ambiguous(amarone), nil
	}
	return movement.Applied(fmt.Sprintf("%s: %d", item, qty)), nil
}

func (cellar) ResolveAmbiguity(_ context.Context, intent movement.Intent, candidates []movement.Candidate, chosenID string) (movement.Outcome, error) {
	for _, c := range candidates {
		if c.ID == chosenID {
			return movement.Applied(fmt.Sprintf("%s: %d", c.Label(), intent.Quantity)), nil
		}
	}
	return movement.Rejected(movement.ReasonUnknownCandidate), nil
}

type recordingHistory struct {
	mu    sync.Mutex
	turns map[string][]history.Turn
	err   error
}

func (h *recordingHistory) Append(_ context.Context, id string, turns ...history.Turn) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.turns == nil {
		h.turns = make(map[string][]history.Turn)
	}
	h.turns[id] = append(h.turns[id], turns...)
	return nil
}

func (h *recordingHistory) Recent(_ context.Context, id string, _ int) ([]history.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turns[id], nil
}

func (h *recordingHistory) Clear(_ context.Context, id string) error { return nil }

type recorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recorder) RecordUtterance(_ context.Context, tier, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, tier+"/"+status)
}

// flakyStore fails Put on demand and otherwise behaves like the memory store.
type flakyStore struct {
	*pending.MemoryStore
	failPut atomic.Bool
}

func (s *flakyStore) Put(ctx context.Context, c *movement.Continuation) error {
	if s.failPut.Load() {
		return errors.New("redis down")
	}
	return s.MemoryStore.Put(ctx, c)
}

type harness struct {
	orch      *Orchestrator
	fast      *fakeAgent
	capable   *fakeAgent
	router    *fakeRouter
	store     *flakyStore
	sequencer *movement.Sequencer
	history   *recordingHistory
	recorder  *recorder
}

func newHarness(t *testing.T, level complexity.Level) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)
	store := &flakyStore{MemoryStore: pending.NewMemoryStore(0)}
	seq := movement.NewSequencer(cellar{}, store, movement.SequencerConfig{StepTimeout: time.Second}, log)

	h := &harness{
		fast:      &fakeAgent{name: "fast", resp: &assistant.Response{Message: `{"ok":true}`, Payload: `{"ok":true}`, IsStructured: true}},
		capable:   &fakeAgent{name: "query", resp: &assistant.Response{Message: "Hai 12 bottiglie di Barolo 2015 in cantina."}},
		router:    &fakeRouter{decision: router.Decision{Category: assistant.CategoryQuery, Source: "model"}},
		store:     store,
		sequencer: seq,
		history:   &recordingHistory{},
		recorder:  &recorder{},
	}
	h.orch = New(Dependencies{
		Fast:      h.fast,
		Router:    h.router,
		Registry:  fakeResolver{assistant.CategoryQuery: h.capable, assistant.CategorySingleMovement: h.capable},
		Gate:      quality.NewGate(0),
		Sequencer: seq,
		Pending:   store,
		History:   h.history,
		Recorder:  h.recorder,
	}, Config{ContinuationTTL: 30 * time.Minute}, log)
	h.orch.classify = func(string) complexity.Level { return level }
	return h
}

// suspend leaves a pending "amarone" choice for the conversation.
func (h *harness) suspend(t *testing.T, conversationID string) {
	t.Helper()
	result, err := h.sequencer.Run(context.Background(), conversationID, []movement.Intent{
		{Kind: movement.Consumption, ItemReference: "amarone", Quantity: 2},
		{Kind: movement.Consumption, ItemReference: "Barolo", Quantity: 1},
	})
	require.NoError(t, err)
	require.Equal(t, movement.StateSuspended, result.State)
}

// ==========================
// Input validation
// ==========================

func TestHandle_InvalidInput(t *testing.T) {
	h := newHarness(t, complexity.Simple)

	_, err := h.orch.Handle(context.Background(), "   ", "c1")
	assert.ErrorIs(t, err, ErrEmptyUtterance)

	_, err = h.orch.Handle(context.Background(), "quanti Barolo ho?", "")
	assert.ErrorIs(t, err, ErrMissingConversation)

	assert.Zero(t, h.fast.calls())
}

// ==========================
// Tiers
// ==========================

func TestHandle_FastTierAccepted(t *testing.T) {
	h := newHarness(t, complexity.Simple)

	reply, err := h.orch.Handle(context.Background(), "venduto 2 Barolo", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierFast, reply.Tier)
	assert.Equal(t, `{"ok":true}`, reply.StructuredPayload)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.router.calls))
	assert.Zero(t, h.capable.calls())
}

func TestHandle_Escalation(t *testing.T) {
	tests := []struct {
		name string
		resp *assistant.Response
		err  error
	}{
		{"gate rejects weak reply", &assistant.Response{Message: "Non ho capito."}, nil},
		{"fast tier error", nil, errors.New("llm down")},
		{"fast tier failure metadata", &assistant.Response{Metadata: map[string]interface{}{"error": "timeout"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, complexity.Simple)
			h.fast.resp, h.fast.err = tt.resp, tt.err

			reply, err := h.orch.Handle(context.Background(), "quanti Barolo ho?", "c1")
			require.NoError(t, err)

			assert.Equal(t, assistant.TierCapable, reply.Tier)
			assert.Equal(t, assistant.CategoryQuery, reply.Category)
			assert.Equal(t, "Hai 12 bottiglie di Barolo 2015 in cantina.", reply.Message)
			assert.Equal(t, 1, h.fast.calls())
			assert.Equal(t, 1, h.capable.calls())
		})
	}
}

func TestHandle_ComplexSkipsFastTier(t *testing.T) {
	h := newHarness(t, complexity.Complex)

	reply, err := h.orch.Handle(context.Background(), "confronta le vendite di Barolo e Chianti", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierCapable, reply.Tier)
	assert.Zero(t, h.fast.calls())
	require.Equal(t, 1, h.capable.calls())
	assert.Equal(t, assistant.CategoryQuery, h.capable.requests[0].Category)
}

func TestHandle_RoutingUnavailable(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.router.err = fmt.Errorf("%w: timeout", router.ErrClassificationUnavailable)

	reply, err := h.orch.Handle(context.Background(), "che vini ho?", "c1")
	require.NoError(t, err)

	assert.Equal(t, "CLASSIFICATION_UNAVAILABLE", reply.ErrorCode)
	assert.Equal(t, retryMessage, reply.Message)
	assert.Zero(t, h.capable.calls())
	assert.Equal(t, []string{"capable/error"}, h.recorder.statuses)
}

func TestHandle_AgentFailure(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.capable.resp, h.capable.err = nil, errors.New("inventory down")

	reply, err := h.orch.Handle(context.Background(), "che vini ho?", "c1")
	require.NoError(t, err)

	assert.Equal(t, "INTERNAL_ERROR", reply.ErrorCode)
	assert.Equal(t, assistant.CategoryQuery, reply.Category)
}

func TestHandle_AgentFailureKeepsKnownCode(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.capable.resp, h.capable.err = nil, fmt.Errorf("%w: deadline", genai.ErrLLMTimeout)

	reply, err := h.orch.Handle(context.Background(), "che vini ho?", "c1")
	require.NoError(t, err)

	assert.Equal(t, "LLM_TIMEOUT", reply.ErrorCode)
	assert.Equal(t, failureMessage, reply.Message)
}

// ==========================
// Pending continuations
// ==========================

func TestHandle_ResumesPendingChoice(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.suspend(t, "c1")

	reply, err := h.orch.Handle(context.Background(), "il secondo", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierContinuation, reply.Tier)
	assert.Equal(t, assistant.CategorySingleMovement, reply.Category)
	assert.False(t, reply.Suspended)
	assert.Contains(t, reply.StructuredPayload, `"completed"`)
	assert.Contains(t, reply.StructuredPayload, "Amarone (2015): 2")
	assert.Contains(t, reply.StructuredPayload, "Barolo: 1")

	assert.Zero(t, h.store.Len())
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.router.calls))
	assert.Zero(t, h.capable.calls())
}

func TestHandle_UnmatchedAnswerRepromptsAndKeepsChoice(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.suspend(t, "c1")

	reply, err := h.orch.Handle(context.Background(), "boh", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierContinuation, reply.Tier)
	assert.True(t, reply.Suspended)
	assert.Equal(t, 1, h.store.Len())

	reply, err = h.orch.Handle(context.Background(), "2012", "c1")
	require.NoError(t, err)
	assert.False(t, reply.Suspended)
	assert.Contains(t, reply.StructuredPayload, "Amarone (2012): 2")
	assert.Zero(t, h.store.Len())
}

func TestHandle_NewRequestSupersedesPendingChoice(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.router.decision = router.Decision{Category: assistant.CategorySingleMovement, Source: "model"}
	h.suspend(t, "c1")

	reply, err := h.orch.Handle(context.Background(), "venduto 3 Barolo", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierCapable, reply.Tier)
	assert.Equal(t, 1, h.capable.calls())
	assert.Zero(t, h.store.Len())
}

func TestHandle_ExpiredContinuationIsDropped(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	require.NoError(t, h.store.Put(context.Background(), &movement.Continuation{
		ConversationID: "c1",
		Pending: movement.PendingStep{
			Intent:     movement.Intent{Kind: movement.Consumption, ItemReference: "amarone", Quantity: 1},
			Candidates: amarone,
		},
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}))

	reply, err := h.orch.Handle(context.Background(), "2", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierCapable, reply.Tier)
	assert.Zero(t, h.store.Len())
	assert.Equal(t, 1, h.capable.calls())
}

func TestHandle_ContinuationNotSavedOnResume(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	_, err := h.sequencer.Run(context.Background(), "c1", []movement.Intent{
		{Kind: movement.Consumption, ItemReference: "amarone", Quantity: 2},
		{Kind: movement.Consumption, ItemReference: "Barolo", Quantity: 1},
		{Kind: movement.Consumption, ItemReference: "amarone", Quantity: 3},
	})
	require.NoError(t, err)
	h.store.failPut.Store(true)

	reply, err := h.orch.Handle(context.Background(), "il secondo", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierContinuation, reply.Tier)
	assert.False(t, reply.Suspended)
	assert.Equal(t, "CONTINUATION_STORE_FAILED", reply.ErrorCode)
	assert.Contains(t, reply.Message, "ripeti il movimento")
	assert.Contains(t, reply.StructuredPayload, "Barolo: 1")
	assert.Zero(t, h.store.Len())
}

func TestHandle_CapableErrorCodeIsKept(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.router.decision = router.Decision{Category: assistant.CategorySingleMovement, Source: "model"}
	h.capable.resp = &assistant.Response{
		Message:   "Amarone 2015 scaricato.\nNon riesco a salvare la scelta in sospeso.",
		ErrorCode: "CONTINUATION_STORE_FAILED",
	}

	reply, err := h.orch.Handle(context.Background(), "consumato 5 amarone e 2 barolo", "c1")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierCapable, reply.Tier)
	assert.False(t, reply.Suspended)
	assert.Equal(t, "CONTINUATION_STORE_FAILED", reply.ErrorCode)
}

func TestHandle_ContinuationIsPerConversation(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.suspend(t, "c1")

	reply, err := h.orch.Handle(context.Background(), "2", "c2")
	require.NoError(t, err)

	assert.Equal(t, assistant.TierCapable, reply.Tier)
	assert.Equal(t, 1, h.store.Len())
}

// ==========================
// History and concurrency
// ==========================

func TestHandle_RecordsHistory(t *testing.T) {
	h := newHarness(t, complexity.Complex)

	_, err := h.orch.Handle(context.Background(), "che vini ho?", "c1")
	require.NoError(t, err)

	turns := h.history.turns["c1"]
	require.Len(t, turns, 2)
	assert.Equal(t, history.RoleUser, turns[0].Role)
	assert.Equal(t, "che vini ho?", turns[0].Text)
	assert.Equal(t, history.RoleAssistant, turns[1].Role)
	assert.Equal(t, "query", turns[1].Category)
}

func TestHandle_HistoryFailureDoesNotFailReply(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.history.err = errors.New("redis down")

	reply, err := h.orch.Handle(context.Background(), "che vini ho?", "c1")
	require.NoError(t, err)
	assert.Empty(t, reply.ErrorCode)
}

func TestHandle_SerialisesSameConversation(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.capable.delay = 10 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Handle(context.Background(), "che vini ho?", "same")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&h.capable.peak))
	assert.Equal(t, 8, h.capable.calls())
	assert.Zero(t, h.orch.locks.size())
}

func TestHandle_ParallelAcrossConversations(t *testing.T) {
	h := newHarness(t, complexity.Complex)
	h.capable.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.Handle(context.Background(), "che vini ho?", fmt.Sprintf("c%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Greater(t, atomic.LoadInt32(&h.capable.peak), int32(1))
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taedam/internal/envelope"
	"taedam/internal/history"
)

type stubPlanner struct {
	route string
	tasks []Task
}

func (p stubPlanner) Plan(context.Context, string) (string, []Task) {
	return p.route, p.tasks
}

type stubHistorian struct {
	block *history.Block
	err   error
	dates []string
}

func (h *stubHistorian) GetOrBuild(_ context.Context, _, date string) (*history.Block, error) {
	h.dates = append(h.dates, date)
	return h.block, h.err
}

type stubMaintainer struct {
	triggers int
}

func (m *stubMaintainer) MaybeTrigger(*TurnState, *history.Block) { m.triggers++ }

func testOrchestrator(t *testing.T, planner Planner, historian HistoryProvider, maintainer Maintainer, handlers ...Handler) *Orchestrator {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	require.NoError(t, err)
	metrics := MustNewMetrics(prometheus.NewRegistry())
	o := NewOrchestrator(planner, historian, maintainer, newDispatcherWithMetrics(registry, nil, metrics), nil)
	o.metrics = metrics
	return o
}

func TestRunTurnHappyPath(t *testing.T) {
	historian := &stubHistorian{block: &history.Block{}}
	maintainer := &stubMaintainer{}
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "reply"}}},
		historian, maintainer,
		finalHandler("reply", "안녕!"),
	)

	out := o.RunTurn(context.Background(), envelope.Input{SessionID: "s1", Payload: envelope.InputPayload{Text: "hi"}})
	require.True(t, out.OK)
	assert.Equal(t, "안녕!", out.Result.Text)
	assert.Equal(t, envelope.TypeChat, out.Type())
	assert.Equal(t, 1, maintainer.triggers)
}

func TestRunTurnHandlerErrorBecomesEnvelope(t *testing.T) {
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "explode"}}},
		&stubHistorian{block: &history.Block{}}, &stubMaintainer{},
		HandlerFunc{Capability: "explode", Fn: func(context.Context, *TurnState, map[string]any) error {
			return errors.New("boom")
		}},
	)

	out := o.RunTurn(context.Background(), envelope.Input{SessionID: "s1"})
	require.False(t, out.OK)
	assert.Equal(t, "internal_error", out.Error.Code)
	assert.True(t, out.Error.Retryable)
}

func TestRunTurnPanicBecomesEnvelope(t *testing.T) {
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "panic"}}},
		&stubHistorian{block: &history.Block{}}, &stubMaintainer{},
		HandlerFunc{Capability: "panic", Fn: func(context.Context, *TurnState, map[string]any) error {
			panic("handler bug")
		}},
	)

	out := o.RunTurn(context.Background(), envelope.Input{SessionID: "s1"})
	require.False(t, out.OK)
	assert.Equal(t, "internal_error", out.Error.Code)
}

func TestRunTurnHistoryFailureDegrades(t *testing.T) {
	maintainer := &stubMaintainer{}
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "reply"}}},
		&stubHistorian{err: errors.New("db down")}, maintainer,
		finalHandler("reply", "ok"),
	)

	out := o.RunTurn(context.Background(), envelope.Input{SessionID: "s1"})
	require.True(t, out.OK)
	// No snapshot means no maintenance this turn.
	assert.Equal(t, 0, maintainer.triggers)
}

func TestRunTurnNoFinalIsError(t *testing.T) {
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "noop"}}},
		&stubHistorian{block: &history.Block{}}, &stubMaintainer{},
		noopHandler("noop"),
	)

	out := o.RunTurn(context.Background(), envelope.Input{SessionID: "s1"})
	require.False(t, out.OK)
	assert.False(t, out.Error.Retryable)
}

func TestLogicalDate(t *testing.T) {
	historian := &stubHistorian{block: &history.Block{}}
	o := testOrchestrator(t,
		stubPlanner{route: "smalltalk", tasks: []Task{{Name: "reply"}}},
		historian, &stubMaintainer{},
		finalHandler("reply", "ok"),
	)
	// 2026-03-01 23:30 UTC is already 2026-03-02 in KST.
	o.clock = func() time.Time { return time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC) }

	o.RunTurn(context.Background(), envelope.Input{SessionID: "s1"})
	require.Equal(t, []string{"2026-03-02"}, historian.dates)

	o.RunTurn(context.Background(), envelope.Input{
		SessionID: "s1",
		Payload:   envelope.InputPayload{Metadata: envelope.InputMetadata{Date: "2026-01-15"}},
	})
	assert.Equal(t, "2026-01-15", historian.dates[1])
}

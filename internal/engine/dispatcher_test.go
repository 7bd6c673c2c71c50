package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taedam/internal/envelope"
)

func testDispatcher(t *testing.T, handlers ...Handler) *Dispatcher {
	t.Helper()
	registry, err := NewRegistry(handlers...)
	require.NoError(t, err)
	return newDispatcherWithMetrics(registry, nil, MustNewMetrics(prometheus.NewRegistry()))
}

func finalHandler(name, text string) Handler {
	return HandlerFunc{Capability: name, Fn: func(_ context.Context, st *TurnState, _ map[string]any) error {
		return st.SetFinal(envelope.Chat(text, name))
	}}
}

func noopHandler(name string) Handler {
	return HandlerFunc{Capability: name, Fn: func(context.Context, *TurnState, map[string]any) error {
		return nil
	}}
}

func TestDispatcherStopsAtFinal(t *testing.T) {
	executed := []string{}
	record := func(name string) Handler {
		return HandlerFunc{Capability: name, Fn: func(_ context.Context, st *TurnState, _ map[string]any) error {
			executed = append(executed, name)
			if name == "second" {
				return st.SetFinal(envelope.Chat("done", name))
			}
			return nil
		}}
	}
	d := testDispatcher(t, record("first"), record("second"), record("third"))

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "first"}, {Name: "second"}, {Name: "third"}}
	require.NoError(t, d.Run(context.Background(), st))

	assert.Equal(t, []string{"first", "second"}, executed)
	require.NotNil(t, st.Final)
	assert.Equal(t, "done", st.Final.Result.Text)
}

func TestDispatcherUnknownCapabilityContinues(t *testing.T) {
	d := testDispatcher(t, finalHandler("reply", "hi"))

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "does_not_exist"}, {Name: "reply"}}
	require.NoError(t, d.Run(context.Background(), st))

	require.NotNil(t, st.Final)
	assert.Equal(t, "hi", st.Final.Result.Text)
	require.Len(t, st.Errors(), 1)
	assert.Contains(t, st.Errors()[0], "does_not_exist")
}

func TestDispatcherDrainsWithoutFinal(t *testing.T) {
	d := testDispatcher(t, noopHandler("noop"))

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "noop"}, {Name: "noop"}}
	require.NoError(t, d.Run(context.Background(), st))
	assert.Nil(t, st.Final)
	assert.Empty(t, st.Plan)
}

func TestDispatcherHandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	d := testDispatcher(t, HandlerFunc{Capability: "explode", Fn: func(context.Context, *TurnState, map[string]any) error {
		return boom
	}})

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "explode"}}
	err := d.Run(context.Background(), st)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "explode")
}

func TestDispatcherStepBudget(t *testing.T) {
	// A handler that re-enqueues itself forever must hit the cap.
	d := testDispatcher(t, HandlerFunc{Capability: "loop", Fn: func(_ context.Context, st *TurnState, _ map[string]any) error {
		st.AppendTask(Task{Name: "loop"})
		return nil
	}})

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "loop"}}
	err := d.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("%d", MaxSteps))
}

func TestDispatcherHonorsCancellation(t *testing.T) {
	d := testDispatcher(t, noopHandler("noop"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewTurnState(envelope.Input{SessionID: "s1"})
	st.Plan = []Task{{Name: "noop"}}
	err := d.Run(ctx, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetFinalOneShot(t *testing.T) {
	st := NewTurnState(envelope.Input{SessionID: "s1"})
	require.NoError(t, st.SetFinal(envelope.Chat("first", "a")))
	err := st.SetFinal(envelope.Chat("second", "b"))
	assert.ErrorIs(t, err, ErrFinalAlreadySet)
	assert.Equal(t, "first", st.Final.Result.Text)
}

func TestPopAppendTask(t *testing.T) {
	st := NewTurnState(envelope.Input{SessionID: "s1"})
	_, ok := st.PopTask()
	assert.False(t, ok)

	st.AppendTask(Task{Name: "a"})
	st.AppendTask(Task{Name: "b"})
	head, ok := st.PopTask()
	require.True(t, ok)
	assert.Equal(t, "a", head.Name)
	head, _ = st.PopTask()
	assert.Equal(t, "b", head.Name)
}

package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taedam/internal/engine"
	"taedam/internal/envelope"
)

func TestSafetyAlertIsFixedCopy(t *testing.T) {
	h := NewSafetyHandler(nil)
	st := engine.NewTurnState(envelope.Input{SessionID: "s1", Payload: envelope.InputPayload{Text: "출혈이 있어요"}})

	require.NoError(t, h.Execute(context.Background(), st, nil))
	require.NotNil(t, st.Final)
	assert.Equal(t, envelope.TypeSafetyAlert, st.Final.Type())
	assert.Contains(t, st.Final.Result.Text, "119")
	assert.Equal(t, "red", st.Final.Result.Data["triage_level"])
}

func TestSafetyAlertRespectsExistingFinal(t *testing.T) {
	h := NewSafetyHandler(nil)
	st := engine.NewTurnState(envelope.Input{SessionID: "s1"})
	require.NoError(t, st.SetFinal(envelope.Chat("already done", "other")))

	err := h.Execute(context.Background(), st, nil)
	assert.ErrorIs(t, err, engine.ErrFinalAlreadySet)
	assert.Equal(t, "already done", st.Final.Result.Text)
}

package engine

import (
	"context"
	"time"

	"taedam/internal/envelope"
	"taedam/internal/history"
	"taedam/internal/logging"
	"taedam/internal/shared/timeutil"
)

// Planner turns raw user text into a route name and the initial plan.
type Planner interface {
	Plan(ctx context.Context, text string) (route string, tasks []Task)
}

// HistoryProvider populates the per-(session, day) snapshot.
type HistoryProvider interface {
	GetOrBuild(ctx context.Context, sessionID, date string) (*history.Block, error)
}

// Maintainer schedules the turn's background maintenance work at most once.
type Maintainer interface {
	MaybeTrigger(st *TurnState, block *history.Block)
}

// Orchestrator is the composition root of one turn.
type Orchestrator struct {
	planner    Planner
	historian  HistoryProvider
	maintainer Maintainer
	dispatcher *Dispatcher
	logger     logging.Logger
	metrics    *Metrics
	clock      func() time.Time
}

// NewOrchestrator wires the turn pipeline. maintainer may be nil (e.g. in
// a one-shot CLI context without background workers).
func NewOrchestrator(planner Planner, historian HistoryProvider, maintainer Maintainer, dispatcher *Dispatcher, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		planner:    planner,
		historian:  historian,
		maintainer: maintainer,
		dispatcher: dispatcher,
		logger:     logging.OrNop(logger),
		metrics:    defaultMetrics(),
		clock:      time.Now,
	}
}

// RunTurn executes one turn end to end and always returns a terminal
// response. Handler errors and panics become a generic internal-error
// envelope; nothing mid-crash is surfaced.
func (o *Orchestrator) RunTurn(ctx context.Context, input envelope.Input) (out *envelope.Output) {
	start := o.clock()
	st := NewTurnState(input)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panic (session=%s): %v", st.SessionID, r)
			o.metrics.incFailure("panic")
			out = envelope.Err("internal_error", "요청을 처리하지 못했어요. 잠시 후 다시 시도해 주세요.", true)
		}
		route, _ := st.Scratch[ScratchRoute].(string)
		o.metrics.observeTurn(route, string(out.Type()), o.clock().Sub(start))
	}()

	route, tasks := o.planner.Plan(ctx, st.Text())
	st.Scratch[ScratchRoute] = route
	st.Plan = tasks
	o.logger.Info("turn start session=%s route=%s plan=%d", st.SessionID, route, len(tasks))

	date := o.logicalDate(input)
	st.Scratch[ScratchDate] = date

	block, err := o.historian.GetOrBuild(ctx, st.SessionID, date)
	if err != nil {
		// The snapshot seasons prompts; losing it degrades the reply but
		// must not fail the turn.
		o.logger.Warn("history population failed (session=%s): %v", st.SessionID, err)
	} else {
		st.Scratch[ScratchHistory] = block
		if o.maintainer != nil {
			o.maintainer.MaybeTrigger(st, block)
		}
	}

	if err := o.dispatcher.Run(ctx, st); err != nil {
		o.logger.Error("turn failed (session=%s): %v", st.SessionID, err)
		o.metrics.incFailure("handler")
		return envelope.Err("internal_error", "요청을 처리하지 못했어요. 잠시 후 다시 시도해 주세요.", true)
	}

	if st.Final == nil {
		// Well-formed templates always terminate with a final; this is the
		// defensive fallback for an empty or fully no-op plan.
		o.logger.Error("plan drained without terminal response (session=%s, route=%s)", st.SessionID, route)
		o.metrics.incFailure("no_final")
		return envelope.Err("internal_error", "응답을 생성하지 못했어요.", false)
	}
	return st.Final
}

// logicalDate resolves the turn's logical day: the envelope's explicit date
// when present, otherwise today in KST.
func (o *Orchestrator) logicalDate(input envelope.Input) string {
	if d := input.Payload.Metadata.Date; d != "" {
		return d
	}
	return o.clock().In(timeutil.KST).Format("2006-01-02")
}

package engine

import (
	"context"
	"fmt"

	"taedam/internal/logging"
)

// MaxSteps bounds the number of tasks one turn may execute. The plan
// templates are short; handlers may append follow-up tasks but an append
// chain this long is a liveness bug, surfaced as a fatal turn error.
const MaxSteps = 32

// Dispatcher drains a turn's plan through the registry.
type Dispatcher struct {
	registry *Registry
	logger   logging.Logger
	metrics  *Metrics
}

// NewDispatcher builds a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
	}
}

// newDispatcherWithMetrics exists for tests that need isolated collectors.
func newDispatcherWithMetrics(registry *Registry, logger logging.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logging.OrNop(logger), metrics: metrics}
}

// Run executes tasks until a terminal response is set or the plan drains.
// Unknown capability names are recorded as non-fatal routing errors. Handler
// errors propagate untouched; the orchestrator converts them. Each iteration
// pops exactly one task and never re-enqueues it, so the loop terminates in
// len(plan) plus handler-appended tasks steps, hard-capped at MaxSteps.
func (d *Dispatcher) Run(ctx context.Context, st *TurnState) error {
	steps := 0
	for st.Final == nil && len(st.Plan) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("turn cancelled: %w", err)
		}
		steps++
		if steps > MaxSteps {
			return fmt.Errorf("step budget exceeded after %d tasks", MaxSteps)
		}

		task, _ := st.PopTask()
		handler, ok := d.registry.Resolve(task.Name)
		if !ok {
			d.logger.Warn("unknown capability: %s (session=%s)", task.Name, st.SessionID)
			st.RecordError(fmt.Sprintf("unknown capability: %s", task.Name))
			d.metrics.incRoutingError()
			continue
		}

		d.logger.Debug("executing %s (session=%s, step=%d)", task.Name, st.SessionID, steps)
		if err := handler.Execute(ctx, st, task.Args); err != nil {
			return fmt.Errorf("capability %s: %w", task.Name, err)
		}
	}
	d.metrics.observeSteps(steps)
	return nil
}

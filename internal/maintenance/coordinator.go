// Package maintenance runs the fire-and-forget background work a turn
// schedules: persona refresh and profile fact extraction. Jobs never report
// into the turn that spawned them; failures are logged and dropped.
package maintenance

import (
	"context"
	"time"

	"taedam/internal/async"
	"taedam/internal/engine"
	"taedam/internal/history"
	"taedam/internal/llm"
	"taedam/internal/logging"
	"taedam/internal/store"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	jobTimeout       = 30 * time.Second
)

// PersonaSink persists persona versions.
type PersonaSink interface {
	InsertPersonaVersion(ctx context.Context, sessionID, personaJSON string) (int, error)
}

// ProfileSink reads and writes the session profiles.
type ProfileSink interface {
	GetBaby(ctx context.Context, sessionID string) (*store.BabyProfile, error)
	UpsertBaby(ctx context.Context, p store.BabyProfile) error
	GetMother(ctx context.Context, sessionID string) (*store.MotherProfile, error)
	UpsertMother(ctx context.Context, p store.MotherProfile) error
}

// Config sizes the worker pool.
type Config struct {
	Workers   int // default 2
	QueueSize int // default 64
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Coordinator owns the bounded job queue and worker pool. One Coordinator
// serves the whole process.
type Coordinator struct {
	model    llm.Client
	personas PersonaSink
	profiles ProfileSink
	jobs     chan job
	logger   logging.Logger
	metrics  *Metrics
}

// NewCoordinator builds the coordinator and starts its workers.
func NewCoordinator(config Config, model llm.Client, personas PersonaSink, profiles ProfileSink, logger logging.Logger) *Coordinator {
	workers := config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queue := config.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	c := &Coordinator{
		model:    model,
		personas: personas,
		profiles: profiles,
		jobs:     make(chan job, queue),
		logger:   logging.OrNop(logger),
		metrics:  defaultMetrics(),
	}
	for i := 0; i < workers; i++ {
		async.Go(c.logger, "maintenance-worker", c.work)
	}
	return c
}

// MaybeTrigger schedules the turn's maintenance jobs at most once. The flag
// lives in the turn's scratch, so a handler re-entering the dispatcher cannot
// double-schedule.
func (c *Coordinator) MaybeTrigger(st *engine.TurnState, block *history.Block) {
	if triggered, _ := st.Scratch[engine.ScratchBackground].(bool); triggered {
		return
	}
	st.Scratch[engine.ScratchBackground] = true

	sessionID := st.SessionID
	c.enqueue(job{name: "persona_refresh", run: func(ctx context.Context) error {
		return c.refreshPersona(ctx, sessionID, block)
	}})
	c.enqueue(job{name: "profile_extract", run: func(ctx context.Context) error {
		return c.extractProfileFacts(ctx, sessionID, block)
	}})
}

// SchedulePersonaRefresh enqueues an on-demand persona refresh outside the
// turn path (admin endpoint). Best-effort like everything else here.
func (c *Coordinator) SchedulePersonaRefresh(sessionID string, block *history.Block) {
	c.enqueue(job{name: "persona_refresh", run: func(ctx context.Context) error {
		return c.refreshPersona(ctx, sessionID, block)
	}})
}

// enqueue drops the job when the queue is full. Maintenance is best-effort;
// backpressure must never reach the turn path.
func (c *Coordinator) enqueue(j job) {
	select {
	case c.jobs <- j:
	default:
		c.logger.Warn("maintenance queue full, dropping %s", j.name)
	}
}

func (c *Coordinator) work() {
	for j := range c.jobs {
		c.runJob(j)
	}
}

// runJob executes one job with a deadline. Errors and panics are terminal for
// the job only; the outcome is counted and the worker moves on.
func (c *Coordinator) runJob(j job) {
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			c.logger.Error("job panic [%s]: %v", j.name, r)
		}
		c.metrics.observeJob(j.name, outcome)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := j.run(ctx); err != nil {
		outcome = "error"
		c.logger.Warn("job %s failed: %v", j.name, err)
	}
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"detbench/internal/metrics"
	"detbench/processing/task"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("a run of this kind is already in progress")

const eventBuffer = 64

// Dispatcher executes f on the interactive goroutine. Functions must run in
// the order they were dispatched.
type Dispatcher func(f func())

// Immediate runs f on the calling goroutine. Used by headless runs.
func Immediate(f func()) { f() }

// Hooks are invoked by the Runner, OnStart on the goroutine calling Start and
// the rest through the Dispatcher.
type Hooks struct {
	OnStart  func()
	OnEvent  func(task.Event)
	OnFinish func()
}

// Run is the handle of one active run.
type Run struct {
	ID        string
	Kind      task.Kind
	StartedAt time.Time

	once sync.Once
	done chan struct{}
}

// Done is closed after OnFinish has run.
func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) Wait() { <-r.done }

// Runner executes workers on background goroutines and relays their events
// through the Dispatcher. At most one run per task kind is active; runs of
// different kinds may overlap. A started run cannot be cancelled.
type Runner struct {
	mu     sync.Mutex
	active map[task.Kind]*Run

	dispatch Dispatcher
	logger   *slog.Logger
}

func New(dispatch Dispatcher, logger *slog.Logger) *Runner {
	if dispatch == nil {
		dispatch = Immediate
	}
	return &Runner{
		active:   make(map[task.Kind]*Run),
		dispatch: dispatch,
		logger:   logger,
	}
}

// Busy reports whether a run of kind is active.
func (r *Runner) Busy(kind task.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[kind]
	return ok
}

func (r *Runner) Start(w task.Worker, hooks Hooks) (*Run, error) {
	kind := w.Kind()

	r.mu.Lock()
	if _, busy := r.active[kind]; busy {
		r.mu.Unlock()
		metrics.RunsRejected.WithLabelValues(string(kind)).Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, kind)
	}
	run := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	r.active[kind] = run
	r.mu.Unlock()

	log := r.logger.With("run_id", run.ID, "kind", kind)
	log.Info("run started")
	metrics.RunsInProgress.WithLabelValues(string(kind)).Inc()

	if hooks.OnStart != nil {
		hooks.OnStart()
	}

	events := make(chan task.Event, eventBuffer)
	go r.execute(run, w, events, log)
	go r.pump(run, events, hooks, log)

	return run, nil
}

func (r *Runner) execute(run *Run, w task.Worker, events chan<- task.Event, log *slog.Logger) {
	defer close(events)
	defer func() {
		if p := recover(); p != nil {
			log.Error("worker panicked", "panic", p)
			events <- task.Event{Kind: run.Kind, Type: task.EventResult, Text: fmt.Sprintf("Task aborted: %v\n", p)}
		}
	}()

	w.Run(context.Background(), events)
}

func (r *Runner) pump(run *Run, events <-chan task.Event, hooks Hooks, log *slog.Logger) {
	finished := false

	for ev := range events {
		if finished {
			log.Warn("dropping event sent after finish", "type", ev.Type)
			continue
		}

		if ev.Type == task.EventFinished {
			finished = true
			r.finish(run, hooks, "finished", log)
			continue
		}

		if hooks.OnEvent != nil {
			r.dispatch(func() { hooks.OnEvent(ev) })
		}
	}

	if !finished {
		log.Warn("worker exited without a finished event")
		r.finish(run, hooks, "aborted", log)
	}
}

// finish clears the active handle exactly once and hands control back.
func (r *Runner) finish(run *Run, hooks Hooks, outcome string, log *slog.Logger) {
	run.once.Do(func() {
		r.mu.Lock()
		if r.active[run.Kind] == run {
			delete(r.active, run.Kind)
		}
		r.mu.Unlock()

		elapsed := time.Since(run.StartedAt)
		metrics.RunsInProgress.WithLabelValues(string(run.Kind)).Dec()
		metrics.RunsTotal.WithLabelValues(string(run.Kind), outcome).Inc()
		metrics.RunDuration.WithLabelValues(string(run.Kind)).Observe(elapsed.Seconds())
		log.Info("run complete", "outcome", outcome, "duration", elapsed)

		r.dispatch(func() {
			if hooks.OnFinish != nil {
				hooks.OnFinish()
			}
			close(run.done)
		})
	})
}

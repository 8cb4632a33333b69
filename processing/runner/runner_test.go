package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"detbench/internal/logging"
	"detbench/processing/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedWorker sends its script, optionally waiting on release first.
type scriptedWorker struct {
	kind    task.Kind
	script  []task.Event
	release chan struct{}
	panics  bool
}

func (w *scriptedWorker) Kind() task.Kind { return w.kind }

func (w *scriptedWorker) Run(_ context.Context, events chan<- task.Event) {
	if w.release != nil {
		<-w.release
	}
	for _, ev := range w.script {
		events <- ev
	}
	if w.panics {
		panic("worker bug")
	}
}

func progress(kind task.Kind, text string) task.Event {
	return task.Event{Kind: kind, Type: task.EventProgress, Text: text}
}

func finished(kind task.Kind) task.Event {
	return task.Event{Kind: kind, Type: task.EventFinished}
}

// recorder collects hook calls.
type recorder struct {
	mu       sync.Mutex
	started  int
	texts    []string
	finishes int
}

func (rec *recorder) hooks() Hooks {
	return Hooks{
		OnStart: func() {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.started++
		},
		OnEvent: func(ev task.Event) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.texts = append(rec.texts, ev.Text)
		},
		OnFinish: func() {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.finishes++
		},
	}
}

func (rec *recorder) snapshot() (int, []string, int) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.started, append([]string(nil), rec.texts...), rec.finishes
}

func waitRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRunnerDeliversEventsInOrder(t *testing.T) {
	r := New(Immediate, logging.FallbackLogger())
	w := &scriptedWorker{kind: task.KindBenchmark, script: []task.Event{
		progress(task.KindBenchmark, "one"),
		progress(task.KindBenchmark, "two"),
		{Kind: task.KindBenchmark, Type: task.EventResult, Text: "three"},
		finished(task.KindBenchmark),
	}}
	rec := &recorder{}

	run, err := r.Start(w, rec.hooks())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	waitRun(t, run)

	started, texts, finishes := rec.snapshot()
	assert.Equal(t, 1, started)
	assert.Equal(t, []string{"one", "two", "three"}, texts)
	assert.Equal(t, 1, finishes)
	assert.False(t, r.Busy(task.KindBenchmark))
}

func TestRunnerRejectsSameKindWhileRunning(t *testing.T) {
	r := New(Immediate, logging.FallbackLogger())
	release := make(chan struct{})
	first := &scriptedWorker{kind: task.KindEvaluation, release: release, script: []task.Event{finished(task.KindEvaluation)}}

	run, err := r.Start(first, Hooks{})
	require.NoError(t, err)
	assert.True(t, r.Busy(task.KindEvaluation))

	rec := &recorder{}
	_, err = r.Start(&scriptedWorker{kind: task.KindEvaluation}, rec.hooks())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	started, _, _ := rec.snapshot()
	assert.Zero(t, started)

	// a different kind is allowed to overlap
	other, err := r.Start(&scriptedWorker{kind: task.KindBenchmark, script: []task.Event{finished(task.KindBenchmark)}}, Hooks{})
	require.NoError(t, err)
	waitRun(t, other)

	close(release)
	waitRun(t, run)
	assert.False(t, r.Busy(task.KindEvaluation))

	again, err := r.Start(&scriptedWorker{kind: task.KindEvaluation, script: []task.Event{finished(task.KindEvaluation)}}, Hooks{})
	require.NoError(t, err)
	waitRun(t, again)
	assert.NotEqual(t, run.ID, again.ID)
}

func TestRunnerRecoversWorkerPanic(t *testing.T) {
	r := New(Immediate, logging.FallbackLogger())
	w := &scriptedWorker{kind: task.KindBenchmark, panics: true, script: []task.Event{
		progress(task.KindBenchmark, "partial"),
	}}
	rec := &recorder{}

	run, err := r.Start(w, rec.hooks())
	require.NoError(t, err)
	waitRun(t, run)

	_, texts, finishes := rec.snapshot()
	assert.Equal(t, []string{"partial", "Task aborted: worker bug\n"}, texts)
	assert.Equal(t, 1, finishes)
	assert.False(t, r.Busy(task.KindBenchmark))
}

func TestRunnerFinishesWhenWorkerOmitsFinished(t *testing.T) {
	r := New(Immediate, logging.FallbackLogger())
	w := &scriptedWorker{kind: task.KindEvaluation, script: []task.Event{progress(task.KindEvaluation, "only")}}
	rec := &recorder{}

	run, err := r.Start(w, rec.hooks())
	require.NoError(t, err)
	waitRun(t, run)

	_, texts, finishes := rec.snapshot()
	assert.Equal(t, []string{"only"}, texts)
	assert.Equal(t, 1, finishes)
}

func TestRunnerDropsEventsAfterFinished(t *testing.T) {
	r := New(Immediate, logging.FallbackLogger())
	w := &scriptedWorker{kind: task.KindEvaluation, script: []task.Event{
		progress(task.KindEvaluation, "kept"),
		finished(task.KindEvaluation),
		progress(task.KindEvaluation, "late"),
		finished(task.KindEvaluation),
	}}
	rec := &recorder{}

	run, err := r.Start(w, rec.hooks())
	require.NoError(t, err)
	waitRun(t, run)

	_, texts, finishes := rec.snapshot()
	assert.Equal(t, []string{"kept"}, texts)
	assert.Equal(t, 1, finishes)
}

func TestRunnerUsesDispatcherGoroutine(t *testing.T) {
	queue := make(chan func(), 16)
	stop := make(chan struct{})
	var loop sync.WaitGroup
	loop.Add(1)
	go func() {
		defer loop.Done()
		for {
			select {
			case f := <-queue:
				f()
			case <-stop:
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		loop.Wait()
	})

	dispatched := 0
	var mu sync.Mutex
	dispatch := func(f func()) {
		mu.Lock()
		dispatched++
		mu.Unlock()
		queue <- f
	}

	r := New(dispatch, logging.FallbackLogger())
	w := &scriptedWorker{kind: task.KindBenchmark, script: []task.Event{
		progress(task.KindBenchmark, "a"),
		progress(task.KindBenchmark, "b"),
		finished(task.KindBenchmark),
	}}
	rec := &recorder{}

	run, err := r.Start(w, rec.hooks())
	require.NoError(t, err)
	waitRun(t, run)

	_, texts, finishes := rec.snapshot()
	assert.Equal(t, []string{"a", "b"}, texts)
	assert.Equal(t, 1, finishes)

	mu.Lock()
	assert.Equal(t, 3, dispatched)
	mu.Unlock()
}

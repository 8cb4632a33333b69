package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"detbench/processing/backend"
	"detbench/processing/relay"
)

// EvaluationWorker validates a model against a dataset descriptor. Everything
// the model prints while evaluating, and the final summary, is written to the
// output channel and diverted to progress events by the relay.
type EvaluationWorker struct {
	lifecycle

	req    Request
	loader backend.Loader
	relay  *relay.Relay
	out    io.Writer
	logger *slog.Logger
}

// NewEvaluationWorker builds a worker writing to out, which must be one of
// the channels diverted by r.
func NewEvaluationWorker(req Request, loader backend.Loader, r *relay.Relay, out io.Writer, logger *slog.Logger) *EvaluationWorker {
	return &EvaluationWorker{
		req:    req,
		loader: loader,
		relay:  r,
		out:    out,
		logger: logger,
	}
}

func (w *EvaluationWorker) Kind() Kind { return KindEvaluation }

func (w *EvaluationWorker) Run(ctx context.Context, events chan<- Event) {
	em := emitter{kind: KindEvaluation, events: events}

	if err := w.moveTo(StateRunning); err != nil {
		em.result(fmt.Sprintf("An error occurred during validation: %v\n", err))
		em.finished()
		return
	}
	defer em.finished()
	defer w.moveTo(StateFinished)

	w.relay.Do(em.progress, func() {
		if err := guard(func() error { return w.evaluate(ctx) }); err != nil {
			w.logger.Warn("validation failed", "model", w.req.ModelPath, "data", w.req.DataPath, "error", err)
			fmt.Fprintf(w.out, "An error occurred during validation: %v\n", err)
		}
	})
}

func (w *EvaluationWorker) evaluate(ctx context.Context) error {
	if err := w.req.Validate(); err != nil {
		return err
	}

	model, err := w.loader.Load(ctx, w.req.ModelPath)
	if err != nil {
		return err
	}
	defer model.Close()

	metrics, err := model.Evaluate(ctx, w.req.DataPath, w.out)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w.out, metrics.Summary())
	return err
}

package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"detbench/internal/metrics"
	"detbench/processing/backend"
	"detbench/processing/dataset"
)

// BenchmarkWorker measures per-image inference latency over a folder of
// images and reports a trimmed-mean throughput.
type BenchmarkWorker struct {
	lifecycle

	req    Request
	loader backend.Loader
	now    func() time.Time
	logger *slog.Logger
}

// NewBenchmarkWorker builds a worker for the image folder in req.DataPath.
func NewBenchmarkWorker(req Request, loader backend.Loader, logger *slog.Logger) *BenchmarkWorker {
	return &BenchmarkWorker{
		req:    req,
		loader: loader,
		now:    time.Now,
		logger: logger,
	}
}

func (w *BenchmarkWorker) Kind() Kind { return KindBenchmark }

func (w *BenchmarkWorker) Run(ctx context.Context, events chan<- Event) {
	em := emitter{kind: KindBenchmark, events: events}

	if err := w.moveTo(StateRunning); err != nil {
		em.result(fmt.Sprintf("Benchmark failed: %v\n", err))
		em.finished()
		return
	}
	defer em.finished()
	defer w.moveTo(StateFinished)

	if err := guard(func() error { return w.benchmark(ctx, em) }); err != nil {
		w.logger.Warn("benchmark failed", "model", w.req.ModelPath, "images", w.req.DataPath, "error", err)
		em.result(fmt.Sprintf("Benchmark failed: %v\n", err))
	}
}

func (w *BenchmarkWorker) benchmark(ctx context.Context, em emitter) error {
	if err := w.req.Validate(); err != nil {
		return err
	}

	images, err := dataset.ListImages(w.req.DataPath)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		em.result(fmt.Sprintf("No images found in %s\n", w.req.DataPath))
		return nil
	}

	model, err := w.loader.Load(ctx, w.req.ModelPath)
	if err != nil {
		return err
	}
	defer model.Close()

	em.progress(fmt.Sprintf("Warming up on %s...\n", filepath.Base(images[0])))
	if _, err := model.Infer(ctx, images[0]); err != nil {
		return fmt.Errorf("warm-up: %w", err)
	}

	samples := make([]float64, 0, len(images))
	for i, img := range images {
		name := filepath.Base(img)

		start := w.now()
		_, err := model.Infer(ctx, img)
		elapsed := w.now().Sub(start).Seconds()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		samples = append(samples, elapsed)
		metrics.InferenceLatency.Observe(elapsed)

		em.progress(fmt.Sprintf("[%d/%d] %s: %.4f s (%.2f FPS)\n", i+1, len(images), name, elapsed, InstantFPS(elapsed)))
	}

	em.result(fmt.Sprintf("Average FPS over %d images: %.2f\n", len(samples), AverageFPS(samples)))
	return nil
}

func InstantFPS(elapsed float64) float64 {
	if elapsed <= 0 {
		return 0
	}
	return 1 / elapsed
}

// AverageFPS is the throughput implied by the samples, in frames per second.
// With more than two samples the fastest and slowest are dropped first.
func AverageFPS(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}

	kept := samples
	if n > 2 {
		sorted := slices.Clone(samples)
		slices.Sort(sorted)
		kept = sorted[1 : n-1]
	}

	var sum float64
	for _, s := range kept {
		sum += s
	}
	if sum <= 0 {
		return 0
	}
	return float64(len(kept)) / sum
}

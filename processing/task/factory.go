package task

import (
	"fmt"
	"io"
	"log/slog"

	"detbench/internal/config"
	"detbench/processing/backend"
	"detbench/processing/dataset"
	"detbench/processing/relay"
)

// Deps are the collaborators shared by every worker.
type Deps struct {
	Loader  backend.Loader
	Relay   *relay.Relay
	Output  io.Writer
	Dataset config.DatasetConfig
	Logger  *slog.Logger
}

// NewWorker resolves the selected paths for kind and builds a fresh worker.
func NewWorker(kind Kind, selected Request, deps Deps) (Worker, error) {
	req := selected

	switch kind {
	case KindEvaluation:
		if req.DataPath != "" {
			req.DataPath = dataset.DescriptorPath(req.DataPath, deps.Dataset.Descriptor)
		}
		return NewEvaluationWorker(req, deps.Loader, deps.Relay, deps.Output, deps.Logger), nil
	case KindBenchmark:
		if req.DataPath != "" {
			req.DataPath = dataset.ImageDir(req.DataPath, deps.Dataset.ImageSubpath)
		}
		return NewBenchmarkWorker(req, deps.Loader, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown task kind: %s", kind)
	}
}

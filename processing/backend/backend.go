package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"detbench/internal/models"

	"github.com/go-viper/mapstructure/v2"
)

var (
	ErrUnexpectedShape = errors.New("unexpected result shape")
	ErrRemote          = errors.New("model server error")
	ErrNotConnected    = errors.New("model connection closed")
)

// Loader opens a trained detection model.
type Loader interface {
	Load(ctx context.Context, modelPath string) (Model, error)
}

// Model is a loaded detection model. Implementations may block for a long
// time; callers run them off the UI goroutine.
type Model interface {
	// Evaluate validates the model against a dataset descriptor. Progress
	// text produced while evaluating is written to out.
	Evaluate(ctx context.Context, datasetSpec string, out io.Writer) (models.Metrics, error)
	Infer(ctx context.Context, imagePath string) ([]models.DetectionResult, error)
	Close() error
}

// DecodeMetrics converts a loosely typed metrics payload into the fixed
// record. Every field must be present with a numeric type; null counts as
// missing.
func DecodeMetrics(raw map[string]any) (models.Metrics, error) {
	var m models.Metrics
	if raw == nil {
		return m, fmt.Errorf("%w: empty metrics payload", ErrUnexpectedShape)
	}

	for _, key := range []string{"map", "map50", "map75"} {
		if !isNumber(raw[key]) {
			return m, fmt.Errorf("%w: %q is %T, want number", ErrUnexpectedShape, key, raw[key])
		}
	}
	perCategory, ok := raw["maps"].([]any)
	if !ok {
		return m, fmt.Errorf("%w: %q is %T, want list of numbers", ErrUnexpectedShape, "maps", raw["maps"])
	}
	for i, v := range perCategory {
		if !isNumber(v) {
			return m, fmt.Errorf("%w: maps[%d] is %T, want number", ErrUnexpectedShape, i, v)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &m,
		ErrorUnset: true,
	})
	if err != nil {
		return m, err
	}

	if err := dec.Decode(raw); err != nil {
		return models.Metrics{}, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return m, nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32:
		return true
	}
	return false
}

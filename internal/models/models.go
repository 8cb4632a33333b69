package models

import "fmt"

// DetectionResult is one box reported by the model server. Box holds
// normalized y1, x1, y2, x2.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

// Metrics is the box accuracy summary returned by a validation pass.
type Metrics struct {
	Map50_95       float64   `mapstructure:"map"`
	Map50          float64   `mapstructure:"map50"`
	Map75          float64   `mapstructure:"map75"`
	PerCategoryMap []float64 `mapstructure:"maps"`
}

// Summary renders the metrics in the fixed log format, one value per line.
func (m Metrics) Summary() string {
	return fmt.Sprintf(
		"\nValidation finished.\nmAP50-95: %v\nmAP50: %v\nmAP75: %v\nlist of mAP50-95 for each category: %v\n",
		m.Map50_95, m.Map50, m.Map75, m.PerCategoryMap,
	)
}

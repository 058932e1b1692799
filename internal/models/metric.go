package models

// Metric is one named measurement attached to a chat log entry ('metric' table).
// MetricValue stays nil until the metric is computed, and forever if computation failed.
type Metric struct {
	ID          int64    `db:"id" json:"id"`
	LogID       int64    `db:"log_id" json:"log_id"`
	MetricName  string   `db:"metric_name" json:"metric_name"`
	MetricValue *float64 `db:"metric_value" json:"metric_value"`
	Explanation *string  `db:"explanation" json:"explanation"`
}

// MetricResult is the per-metric payload the UI renders.
type MetricResult struct {
	MetricValue *float64 `json:"metric_value"`
	Explanation *string  `json:"explanation"`
}

// FullResult is a chat log entry together with every metric currently attached to it.
type FullResult struct {
	ChatLog
	Metrics map[string]MetricResult `json:"metrics"`
}

// NewFullResult assembles the polling document from a chat log row and its metric rows.
// Rows sharing a name collapse onto the latest one.
func NewFullResult(log ChatLog, metrics []Metric) FullResult {
	result := FullResult{
		ChatLog: log,
		Metrics: make(map[string]MetricResult, len(metrics)),
	}
	for _, m := range metrics {
		result.Metrics[m.MetricName] = MetricResult{
			MetricValue: m.MetricValue,
			Explanation: m.Explanation,
		}
	}
	return result
}

package entity

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunSuccess    RunStatus = "success"
	RunIncomplete RunStatus = "incomplete"
	RunAborted    RunStatus = "aborted"
)

// ExtractedItem maps field name to a scalar (string, number or nil).
// Dotted schema fields become one level of nested maps.
type ExtractedItem map[string]interface{}

type QualityReport struct {
	TotalItems     int      `json:"total_items"`
	CompleteItems  int      `json:"complete_items"`
	CompletionRate float64  `json:"completion_rate"`
	MissingFields  []string `json:"missing_fields"`
	Errors         []string `json:"errors"`
}

type ResultMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	ItemCount int       `json:"item_count"`
	RunID     string    `json:"run_id,omitempty"`
}

// RunResult is the terminal, externally durable artifact of a run. It is
// produced at most once. The serialized form nests the items under the
// collection name next to the metadata block.
type RunResult struct {
	Status        RunStatus
	Collection    string
	Items         []ExtractedItem
	Metadata      ResultMetadata
	QualityReport QualityReport
}

func (r *RunResult) MarshalJSON() ([]byte, error) {
	data := map[string]interface{}{
		r.Collection: r.Items,
		"metadata":   r.Metadata,
	}
	return json.Marshal(struct {
		Status        RunStatus              `json:"status"`
		Data          map[string]interface{} `json:"data"`
		QualityReport QualityReport          `json:"quality_report"`
	}{
		Status:        r.Status,
		Data:          data,
		QualityReport: r.QualityReport,
	})
}

// RunOutcome is what the runner hands back to the caller: the terminal
// status plus the result when extraction got that far.
type RunOutcome struct {
	Status     RunStatus
	Iterations int
	Result     *RunResult
	Notes      []string
}

package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scraper-agent/internal/domain/entity"
)

// BuildResult assembles the terminal RunResult for a set of extracted
// items: metadata plus the quality report. Completion rate follows the
// 0/0 -> 0 rule; missing fields are those never non-empty in any item.
func BuildResult(items []entity.ExtractedItem, schema entity.Schema, collection, runID string) *entity.RunResult {
	fields := schema.FieldNames()

	complete := 0
	for _, item := range items {
		allSet := true
		for _, field := range fields {
			if isEmptyValue(lookupField(item, field)) {
				allSet = false
				break
			}
		}
		if allSet {
			complete++
		}
	}

	rate := 0.0
	if len(items) > 0 {
		rate = float64(complete) / float64(len(items))
	}

	missing := []string{}
	for _, field := range fields {
		seen := false
		for _, item := range items {
			if !isEmptyValue(lookupField(item, field)) {
				seen = true
				break
			}
		}
		if !seen {
			missing = append(missing, field)
		}
	}

	return &entity.RunResult{
		Status:     entity.RunSuccess,
		Collection: collection,
		Items:      items,
		Metadata: entity.ResultMetadata{
			Timestamp: time.Now(),
			ItemCount: len(items),
			RunID:     runID,
		},
		QualityReport: entity.QualityReport{
			TotalItems:     len(items),
			CompleteItems:  complete,
			CompletionRate: rate,
			MissingFields:  missing,
			Errors:         []string{},
		},
	}
}

// SaveResult persists the result document as indented JSON.
func SaveResult(result *entity.RunResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
	"scraper-agent/internal/usecase/budget"
	"scraper-agent/internal/usecase/extract"
)

// PageMarkdownTool converts the cached page content to markdown, a
// cheap readable view when the structural summary is not enough.
type PageMarkdownTool struct {
	cache  *budget.ArtifactCache
	logger output.LoggerPort
}

func NewPageMarkdownTool(cache *budget.ArtifactCache, logger output.LoggerPort) *PageMarkdownTool {
	return &PageMarkdownTool{cache: cache, logger: logger}
}

func (t *PageMarkdownTool) Name() entity.ToolName { return entity.ToolPageMarkdown }
func (t *PageMarkdownTool) Kind() entity.ToolKind { return entity.KindPure }
func (t *PageMarkdownTool) Description() string {
	return "Render the last retrieved page content as markdown text"
}
func (t *PageMarkdownTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *PageMarkdownTool) Execute(ctx context.Context, args string) (string, error) {
	html, ok := t.cache.Get(budget.KindPageHTML)
	if !ok {
		return "", fmt.Errorf("no page content cached; call get_html first")
	}

	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return markdown, nil
}

// ExtractDataTool runs the selector-driven extraction engine over the
// cached full page content, builds the RunResult and persists it. It is
// one of the two completion signals of a run.
type ExtractDataTool struct {
	engine     *extract.Engine
	cache      *budget.ArtifactCache
	recorder   *extract.Recorder
	cfg        *entity.ScrapeConfig
	runID      string
	outputPath string
	logger     output.LoggerPort
}

func NewExtractDataTool(
	engine *extract.Engine,
	cache *budget.ArtifactCache,
	recorder *extract.Recorder,
	cfg *entity.ScrapeConfig,
	runID string,
	outputPath string,
	logger output.LoggerPort,
) *ExtractDataTool {
	return &ExtractDataTool{
		engine:     engine,
		cache:      cache,
		recorder:   recorder,
		cfg:        cfg,
		runID:      runID,
		outputPath: outputPath,
		logger:     logger,
	}
}

func (t *ExtractDataTool) Name() entity.ToolName { return entity.ToolExtractData }
func (t *ExtractDataTool) Kind() entity.ToolKind { return entity.KindPure }
func (t *ExtractDataTool) Description() string {
	return "Extract structured data from the cached page content using CSS selectors and save the results (recommended approach)"
}
func (t *ExtractDataTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"container_selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the repeating container (e.g. 'article.product_pod'). Empty means the whole document.",
			},
			"field_selectors": map[string]interface{}{
				"type":        "object",
				"description": "Map of schema field name to 'selector' or 'selector@attribute' (e.g. {\"title\": \"h3 a@title\", \"price\": \".price_color\"})",
				"additionalProperties": map[string]interface{}{
					"type": "string",
				},
			},
			"base_url": map[string]interface{}{
				"type":        "string",
				"description": "Base URL for resolving relative links (defaults to the target URL)",
			},
		},
		"required": []string{"field_selectors"},
	}
}

type extractDataResult struct {
	OK            bool                   `json:"ok"`
	Status        string                 `json:"status"`
	TaskCompleted bool                   `json:"task_completed"`
	Items         []entity.ExtractedItem `json:"items"`
	Count         int                    `json:"count"`
	SavedTo       string                 `json:"saved_to,omitempty"`
	SaveError     string                 `json:"save_error,omitempty"`
	SelectorsUsed map[string]interface{} `json:"selectors_used"`
	Message       string                 `json:"message"`
}

func (t *ExtractDataTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		ContainerSelector string            `json:"container_selector"`
		FieldSelectors    map[string]string `json:"field_selectors"`
		BaseURL           string            `json:"base_url"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if len(input.FieldSelectors) == 0 {
		return "", fmt.Errorf("field_selectors parameter is required")
	}

	html, ok := t.cache.Get(budget.KindPageHTML)
	if !ok {
		return "", fmt.Errorf("no page content cached; call get_html first")
	}

	baseURL := input.BaseURL
	if baseURL == "" {
		baseURL = t.cfg.URL
	}

	extraction, err := t.engine.Extract(html, input.ContainerSelector, input.FieldSelectors, baseURL)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	result := extract.BuildResult(extraction.Items, t.cfg.Schema, t.cfg.CollectionName(), t.runID)
	t.recorder.Record(result)

	payload := extractDataResult{
		OK:            true,
		Status:        "success",
		TaskCompleted: true,
		Items:         extraction.Items,
		Count:         extraction.Count,
		SelectorsUsed: map[string]interface{}{
			"container": input.ContainerSelector,
			"fields":    input.FieldSelectors,
		},
	}

	// A failed write is reported, not fatal: the run still completes
	// and the caller keeps the in-memory result.
	if err := extract.SaveResult(result, t.outputPath); err != nil {
		t.logger.Error("Result persistence failed", "path", t.outputPath, "error", err)
		payload.SaveError = err.Error()
		payload.Message = fmt.Sprintf("Extracted %d items but saving to %s failed: %v. Task is complete.", extraction.Count, t.outputPath, err)
	} else {
		payload.SavedTo = t.outputPath
		payload.Message = fmt.Sprintf("Successfully extracted %d items and saved to %s. Task is complete.", extraction.Count, t.outputPath)
	}

	t.logger.Info("Extraction completed", "items", extraction.Count, "output", t.outputPath)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal extraction result: %w", err)
	}
	return string(data), nil
}

// SaveResultsTool persists oracle-provided data verbatim.
type SaveResultsTool struct {
	outputPath string
	logger     output.LoggerPort
}

func NewSaveResultsTool(outputPath string, logger output.LoggerPort) *SaveResultsTool {
	return &SaveResultsTool{outputPath: outputPath, logger: logger}
}

func (t *SaveResultsTool) Name() entity.ToolName { return entity.ToolSaveResults }
func (t *SaveResultsTool) Kind() entity.ToolKind { return entity.KindPure }
func (t *SaveResultsTool) Description() string {
	return "Save extracted data to the output file"
}
func (t *SaveResultsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data": map[string]interface{}{
				"type":        "object",
				"description": "Complete scraped data in JSON format",
			},
		},
		"required": []string{"data"},
	}
}

func (t *SaveResultsTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.Data == nil {
		return "", fmt.Errorf("data parameter is required")
	}

	serialized, err := json.MarshalIndent(input.Data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}

	if dir := filepath.Dir(t.outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(t.outputPath, serialized, 0644); err != nil {
		return "", fmt.Errorf("error saving results: %w", err)
	}

	t.logger.Info("Results saved", "path", t.outputPath)
	return fmt.Sprintf("Results saved to %s", t.outputPath), nil
}

// DoneTool is the explicit completion signal.
type DoneTool struct {
	logger output.LoggerPort
}

func NewDoneTool(logger output.LoggerPort) *DoneTool {
	return &DoneTool{logger: logger}
}

func (t *DoneTool) Name() entity.ToolName { return entity.ToolDone }
func (t *DoneTool) Kind() entity.ToolKind { return entity.KindPure }
func (t *DoneTool) Description() string {
	return "Call this when scraping is complete"
}
func (t *DoneTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Optional completion message",
			},
		},
		"required": []string{},
	}
}

func (t *DoneTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Message string `json:"message"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("invalid input format: %w", err)
		}
	}
	if input.Message == "" {
		input.Message = "Scraping completed"
	}

	t.logger.Info("Task marked done", "message", input.Message)
	return fmt.Sprintf("Task completed: %s", input.Message), nil
}

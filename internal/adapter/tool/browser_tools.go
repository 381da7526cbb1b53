package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scraper-agent/internal/application/port/output"
	"scraper-agent/internal/domain/entity"
)

const defaultNavigateTimeout = 10 * time.Second

type NavigateTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewNavigateTool(browser output.BrowserPort, logger output.LoggerPort) *NavigateTool {
	return &NavigateTool{browser: browser, logger: logger}
}

func (t *NavigateTool) Name() entity.ToolName { return entity.ToolNavigateWeb }
func (t *NavigateTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *NavigateTool) Description() string {
	return "Navigate to a specific URL with error handling and timeout"
}
func (t *NavigateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to visit. Must include protocol (https:// or http://).",
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Timeout in seconds (optional, default 10s)",
			},
		},
		"required": []string{"url"},
	}
}

func (t *NavigateTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL     string  `json:"url"`
		Timeout float64 `json:"timeout"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.URL == "" {
		return "", fmt.Errorf("url parameter is required")
	}

	timeout := defaultNavigateTimeout
	if input.Timeout > 0 {
		timeout = time.Duration(input.Timeout * float64(time.Second))
	}

	t.logger.Info("Navigating", "url", input.URL)
	if err := t.browser.Navigate(ctx, input.URL, timeout); err != nil {
		return "", fmt.Errorf("navigation to %s failed: %w", input.URL, err)
	}

	return fmt.Sprintf("Successfully navigated to %s", t.browser.CurrentURL()), nil
}

type ClickTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewClickTool(browser output.BrowserPort, logger output.LoggerPort) *ClickTool {
	return &ClickTool{browser: browser, logger: logger}
}

func (t *ClickTool) Name() entity.ToolName { return entity.ToolClickElement }
func (t *ClickTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *ClickTool) Description() string {
	return "Click on an element identified by CSS selector"
}
func (t *ClickTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element to click",
			},
		},
		"required": []string{"selector"},
	}
}

func (t *ClickTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.Selector == "" {
		return "", fmt.Errorf("selector parameter is required")
	}

	if err := t.browser.Click(ctx, input.Selector); err != nil {
		return "", fmt.Errorf("unable to click on %s: %w", input.Selector, err)
	}
	return fmt.Sprintf("Clicked on %s", input.Selector), nil
}

type FillTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewFillTool(browser output.BrowserPort, logger output.LoggerPort) *FillTool {
	return &FillTool{browser: browser, logger: logger}
}

func (t *FillTool) Name() entity.ToolName { return entity.ToolFillField }
func (t *FillTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *FillTool) Description() string {
	return "Fill a field identified by CSS selector"
}
func (t *FillTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Value to fill",
			},
		},
		"required": []string{"selector", "value"},
	}
}

func (t *FillTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Selector string `json:"selector"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", fmt.Errorf("invalid input format: %w", err)
	}
	if input.Selector == "" {
		return "", fmt.Errorf("selector parameter is required")
	}

	if err := t.browser.Fill(ctx, input.Selector, input.Value); err != nil {
		return "", fmt.Errorf("unable to fill field %s: %w", input.Selector, err)
	}
	return fmt.Sprintf("Field %s filled with '%s'", input.Selector, input.Value), nil
}

type ScreenshotTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewScreenshotTool(browser output.BrowserPort, logger output.LoggerPort) *ScreenshotTool {
	return &ScreenshotTool{browser: browser, logger: logger}
}

func (t *ScreenshotTool) Name() entity.ToolName { return entity.ToolCaptureScreen }
func (t *ScreenshotTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *ScreenshotTool) Description() string {
	return "Take a screenshot of the current page"
}
func (t *ScreenshotTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture full page",
			},
		},
		"required": []string{},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		FullPage bool `json:"full_page"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("invalid input format: %w", err)
		}
	}

	shot, err := t.browser.CaptureScreenshot(ctx, input.FullPage)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(shot.Data)
	return fmt.Sprintf("data:image/%s;base64,%s", shot.Format, b64), nil
}

type ExtractLinksTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewExtractLinksTool(browser output.BrowserPort, logger output.LoggerPort) *ExtractLinksTool {
	return &ExtractLinksTool{browser: browser, logger: logger}
}

func (t *ExtractLinksTool) Name() entity.ToolName { return entity.ToolExtractLinks }
func (t *ExtractLinksTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *ExtractLinksTool) Description() string {
	return "Extract all links from current page with optional text filtering"
}
func (t *ExtractLinksTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"filter": map[string]interface{}{
				"type":        "string",
				"description": "Filter links containing this text (optional)",
			},
		},
		"required": []string{},
	}
}

const maxLinksListed = 20

func (t *ExtractLinksTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Filter string `json:"filter"`
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("invalid input format: %w", err)
		}
	}

	links, err := t.browser.Links(ctx, input.Filter)
	if err != nil {
		return "", fmt.Errorf("link extraction failed: %w", err)
	}
	if len(links) == 0 {
		return "No links found with this filter.", nil
	}

	if len(links) > maxLinksListed {
		links = links[:maxLinksListed]
	}
	lines := make([]string, 0, len(links))
	for _, l := range links {
		lines = append(lines, fmt.Sprintf("%s -> %s", l.Text, l.Href))
	}
	return strings.Join(lines, "\n"), nil
}

type GetHTMLTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewGetHTMLTool(browser output.BrowserPort, logger output.LoggerPort) *GetHTMLTool {
	return &GetHTMLTool{browser: browser, logger: logger}
}

func (t *GetHTMLTool) Name() entity.ToolName { return entity.ToolGetHTML }
func (t *GetHTMLTool) Kind() entity.ToolKind { return entity.KindBrowser }
func (t *GetHTMLTool) Description() string {
	return "Get complete HTML content of current page"
}
func (t *GetHTMLTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

func (t *GetHTMLTool) Execute(ctx context.Context, args string) (string, error) {
	html, err := t.browser.PageHTML(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	t.logger.Debug("HTML retrieved", "chars", len(html))
	return html, nil
}

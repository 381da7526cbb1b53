package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"scraper-agent/internal/domain/entity"
)

const scraperSystemTemplate = `Extract structured data from {{.URL}} according to this schema:

{{.ConfigJSON}}
{{if .PaginationNote}}
{{.PaginationNote}}
{{end}}
OBJECTIVE: Extract all data matching the schema structure and produce a properly formatted result.

RULES:
- Use the available tools to discover the best extraction approach
- One tool call per response, never more
- Complete the full extraction workflow autonomously
- When a tool reports an error, adapt your approach instead of repeating the same call
- Large page content is cached for you: analyze_and_extract_data and page_markdown always work on the full page, not the summary you see

WORKFLOW:
1. Navigate to the target URL
2. Retrieve the HTML content
3. Identify the repeating container and a CSS selector for each schema field
4. Extract the data with analyze_and_extract_data (it saves the results for you)
5. Call done when the extraction is complete

Start by navigating to the target URL.`

type systemPromptData struct {
	URL            string
	ConfigJSON     string
	PaginationNote string
}

// ScraperSystemPrompt renders the instruction that opens every run. It
// embeds the schema document and the pagination policy.
func ScraperSystemPrompt(cfg *entity.ScrapeConfig) (string, error) {
	configJSON, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tmpl, err := template.New("scraper").Parse(scraperSystemTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, systemPromptData{
		URL:            cfg.URL,
		ConfigJSON:     string(configJSON),
		PaginationNote: paginationNote(cfg.Options),
	}); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func paginationNote(opts entity.ScrapeOptions) string {
	switch {
	case opts.Pagination && opts.MaxPages > 0:
		return fmt.Sprintf(`PAGINATION LIMIT: 'options.max_pages' is %d.
Scrape page 1 completely, then continue page by page.
STOP after scraping %d page(s) even if more pages exist.`, opts.MaxPages, opts.MaxPages)
	case opts.Pagination:
		return "PAGINATION: 'options.pagination' is true. Scrape all available pages until no more pages exist."
	default:
		return ""
	}
}

// ScraperUserDirective is the single user message that starts the loop.
func ScraperUserDirective(cfg *entity.ScrapeConfig) string {
	directive := fmt.Sprintf("Please scrape data from %s according to the schema. Devise your strategy and execute it step by step.", cfg.URL)
	if cfg.Options.MaxPages > 0 {
		directive += fmt.Sprintf("\n\nIMPORTANT: Stop after scraping %d page(s). Do not scrape more than %d page(s).", cfg.Options.MaxPages, cfg.Options.MaxPages)
	}
	return directive
}

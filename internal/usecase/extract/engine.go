package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scraper-agent/internal/domain/entity"
)

// Engine resolves CSS selectors against raw HTML and assembles items.
// It is deterministic: identical inputs yield identical output.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Extraction is the raw outcome of one Extract call, before the quality
// report is computed.
type Extraction struct {
	Items []entity.ExtractedItem `json:"items"`
	Count int                    `json:"count"`
}

// Extract finds every container matching containerSelector (the whole
// document when empty) and resolves each field spec against it. Field
// specs use "<selector>" or "<selector>@<attribute>"; "@text" forces text
// content, "@html" the serialized markup. Containers with no non-empty
// field are dropped silently.
func (e *Engine) Extract(html, containerSelector string, fieldSelectors map[string]string, baseURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var containers []*goquery.Selection
	if containerSelector == "" {
		containers = []*goquery.Selection{doc.Selection}
	} else {
		doc.Find(containerSelector).Each(func(_ int, s *goquery.Selection) {
			containers = append(containers, s)
		})
	}

	items := make([]entity.ExtractedItem, 0, len(containers))
	for _, container := range containers {
		item := entity.ExtractedItem{}
		populated := false

		for name, spec := range fieldSelectors {
			selector, attribute := splitSelectorAttribute(spec)

			var value interface{}
			el := container.Find(selector).First()
			if el.Length() > 0 {
				value = extractValue(el, attribute, baseURL)
			}

			if value != nil && looksLikePrice(name) {
				if s, ok := value.(string); ok {
					value = normalizeNumeric(s)
				}
			}

			setField(item, name, value)
			if !isEmptyValue(value) {
				populated = true
			}
		}

		if populated {
			items = append(items, item)
		}
	}

	return &Extraction{Items: items, Count: len(items)}, nil
}

// splitSelectorAttribute splits "h3 a@title" into ("h3 a", "title").
func splitSelectorAttribute(spec string) (string, string) {
	if idx := strings.Index(spec, "@"); idx >= 0 {
		return strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+1:])
	}
	return strings.TrimSpace(spec), ""
}

func extractValue(el *goquery.Selection, attribute, baseURL string) interface{} {
	if attribute != "" {
		switch attribute {
		case "text":
			return strings.TrimSpace(el.Text())
		case "html":
			markup, err := goquery.OuterHtml(el)
			if err != nil {
				return nil
			}
			return markup
		case "class":
			// Rating widgets encode the value as the last class
			// ("stars four" -> "four").
			classes := strings.Fields(el.AttrOr("class", ""))
			if len(classes) > 1 {
				return classes[len(classes)-1]
			}
			return el.AttrOr("class", "")
		default:
			value := el.AttrOr(attribute, "")
			if value != "" && isURLAttribute(attribute) {
				value = resolveURL(baseURL, value)
			}
			return value
		}
	}

	// Element-kind defaults.
	switch goquery.NodeName(el) {
	case "img":
		src := el.AttrOr("src", "")
		if src == "" {
			src = el.AttrOr("data-src", "")
		}
		return resolveURL(baseURL, src)
	case "a":
		return resolveURL(baseURL, el.AttrOr("href", ""))
	case "input", "textarea":
		return el.AttrOr("value", "")
	default:
		return strings.TrimSpace(el.Text())
	}
}

func isURLAttribute(attribute string) bool {
	return attribute == "href" || attribute == "src" || attribute == "data-src"
}

// resolveURL makes value absolute against base. Absolute values and
// values without a usable base pass through unchanged.
func resolveURL(base, value string) string {
	if value == "" || base == "" {
		return value
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return value
	}
	ref, err := url.Parse(value)
	if err != nil {
		return value
	}
	return baseURL.ResolveReference(ref).String()
}

// setField writes value under name, expanding dotted names into nested
// maps: "specs.rating" becomes item["specs"]["rating"].
func setField(item entity.ExtractedItem, name string, value interface{}) {
	parts := strings.Split(name, ".")
	current := map[string]interface{}(item)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// lookupField reads a possibly dotted field back out of an item.
func lookupField(item entity.ExtractedItem, name string) interface{} {
	parts := strings.Split(name, ".")
	current := map[string]interface{}(item)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

var priceFieldPattern = regexp.MustCompile(`(?i)(price|prix|cost|co[uû]t|tarif|amount)`)

func looksLikePrice(fieldName string) bool {
	return priceFieldPattern.MatchString(fieldName)
}

var numericRunPattern = regexp.MustCompile(`[0-9][0-9.,\s]*`)

// normalizeNumeric parses the first run of digits and separators in text
// into a float. The original string is kept on parse failure.
func normalizeNumeric(text string) interface{} {
	run := numericRunPattern.FindString(text)
	if run == "" {
		return text
	}
	run = strings.TrimRight(strings.ReplaceAll(run, " ", ""), ".,")

	switch {
	case strings.Contains(run, ".") && strings.Contains(run, ","):
		// Commas are thousands separators when a dot is present.
		run = strings.ReplaceAll(run, ",", "")
	case strings.Contains(run, ","):
		// A single trailing comma group of two digits reads as decimals,
		// anything else as thousands grouping.
		if idx := strings.LastIndex(run, ","); len(run)-idx-1 == 2 && strings.Count(run, ",") == 1 {
			run = run[:idx] + "." + run[idx+1:]
		} else {
			run = strings.ReplaceAll(run, ",", "")
		}
	}

	parsed, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return text
	}
	return parsed
}

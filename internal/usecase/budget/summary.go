package budget

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// pageStructure holds the cheap counts extracted from one HTML document.
type pageStructure struct {
	Elements int
	Links    int
	Forms    int
	Images   int
	Tables   int

	// Repeated tag.class combinations, candidate item containers.
	containers map[string]int
}

// summarizeHTML walks the document once and renders a short structural
// summary. Returns ok=false when the input does not parse as HTML, in
// which case the caller falls back to head truncation.
func summarizeHTML(rawHTML string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false
	}

	st := &pageStructure{containers: make(map[string]int)}
	countNode(doc, st)

	if st.Elements == 0 {
		return "", false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Page content retrieved (%d chars). Structure: %d elements, %d links, %d forms, %d images, %d tables.",
		len(rawHTML), st.Elements, st.Links, st.Forms, st.Images, st.Tables)

	if top := st.topContainers(3); len(top) > 0 {
		sb.WriteString(" Repeated containers: ")
		sb.WriteString(strings.Join(top, ", "))
		sb.WriteString(".")
	}

	sb.WriteString(" Full HTML is cached; use analyze_and_extract_data or page_markdown to work with it.")
	return sb.String(), true
}

func countNode(n *html.Node, st *pageStructure) {
	if n.Type == html.ElementNode {
		st.Elements++
		switch n.Data {
		case "a":
			st.Links++
		case "form":
			st.Forms++
		case "img":
			st.Images++
		case "table":
			st.Tables++
		}

		if class := firstClass(n); class != "" {
			st.containers[n.Data+"."+class]++
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		countNode(c, st)
	}
}

func firstClass(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			classes := strings.Fields(attr.Val)
			if len(classes) > 0 {
				return classes[0]
			}
		}
	}
	return ""
}

// topContainers picks the most repeated tag.class combos; fewer than
// three occurrences is noise, not a container.
func (st *pageStructure) topContainers(limit int) []string {
	type combo struct {
		name  string
		count int
	}

	combos := make([]combo, 0, len(st.containers))
	for name, count := range st.containers {
		if count >= 3 {
			combos = append(combos, combo{name, count})
		}
	}

	sort.Slice(combos, func(i, j int) bool {
		if combos[i].count != combos[j].count {
			return combos[i].count > combos[j].count
		}
		return combos[i].name < combos[j].name
	})

	if len(combos) > limit {
		combos = combos[:limit]
	}

	result := make([]string, 0, len(combos))
	for _, c := range combos {
		result = append(result, fmt.Sprintf("%s x%d", c.name, c.count))
	}
	return result
}

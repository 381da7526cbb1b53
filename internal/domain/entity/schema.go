package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// SchemaField is one requested output field. Dotted names ("specs.rating")
// denote one level of nesting in the extracted items.
type SchemaField struct {
	Name        string
	Description string
}

// Schema preserves the document order of its fields. Go maps would lose
// it, and the order matters for the prompt and the quality report.
type Schema []SchemaField

func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s))
	for _, f := range s {
		names = append(names, f.Name)
	}
	return names
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema must be a JSON object")
	}

	fields := Schema{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("schema key is not a string: %v", keyTok)
		}

		var desc string
		if err := dec.Decode(&desc); err != nil {
			return fmt.Errorf("schema field %q: descriptor must be a string: %w", key, err)
		}
		fields = append(fields, SchemaField{Name: key, Description: desc})
	}

	*s = fields
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Description)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("schema must be a YAML mapping")
	}

	fields := Schema{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		var desc string
		if err := valNode.Decode(&desc); err != nil {
			return fmt.Errorf("schema field %q: descriptor must be a string: %w", keyNode.Value, err)
		}
		fields = append(fields, SchemaField{Name: keyNode.Value, Description: desc})
	}

	*s = fields
	return nil
}

// ScrapeOptions controls pagination. MaxPages is advisory for the oracle;
// the runner enforces only its own iteration limit.
type ScrapeOptions struct {
	Pagination bool `json:"pagination" yaml:"pagination"`
	MaxPages   int  `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`
}

// ScrapeConfig is the input document of one run. Immutable once loaded.
type ScrapeConfig struct {
	URL        string        `json:"url" yaml:"url"`
	Collection string        `json:"collection,omitempty" yaml:"collection,omitempty"`
	Schema     Schema        `json:"schema" yaml:"schema"`
	Options    ScrapeOptions `json:"options" yaml:"options"`
}

func (c *ScrapeConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config: url is required")
	}
	if len(c.Schema) == 0 {
		return fmt.Errorf("config: schema must declare at least one field")
	}
	return nil
}

// CollectionName falls back to "items" when the document does not name
// the collection.
func (c *ScrapeConfig) CollectionName() string {
	if c.Collection != "" {
		return c.Collection
	}
	return "items"
}

package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names a bundled JSON schema used to validate model output.
type Schema string

const (
	// SchemaNone skips validation.
	SchemaNone Schema = ""
	// SchemaWeights validates the weight adjuster object.
	SchemaWeights Schema = "weights"
	// SchemaExtraction validates the hybrid evaluation metrics object.
	SchemaExtraction Schema = "extraction"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[Schema]*gojsonschema.Schema{}
)

// ParseError reports model output that could not be decoded or validated.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", domain.ErrSchemaInvalid, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{domain.ErrSchemaInvalid, e.Cause} }

// CleanJSON strips markdown code fences and surrounding whitespace.
func CleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseJSON cleans raw, decodes it into v and optionally validates it against
// a bundled schema. Only the JSON value itself is accepted; trailing text is
// an error.
func ParseJSON(raw string, schema Schema, v any) error {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return &ParseError{Raw: raw, Cause: fmt.Errorf("empty response")}
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	if err := dec.Decode(v); err != nil {
		return &ParseError{Raw: raw, Cause: err}
	}
	if dec.More() {
		return &ParseError{Raw: raw, Cause: fmt.Errorf("unexpected data after JSON value")}
	}
	if schema == SchemaNone {
		return nil
	}
	s, err := loadSchema(schema)
	if err != nil {
		return &ParseError{Raw: raw, Cause: err}
	}
	res, err := s.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return &ParseError{Raw: raw, Cause: err}
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ParseError{Raw: raw, Cause: fmt.Errorf("schema %s: %s", schema, strings.Join(msgs, "; "))}
	}
	return nil
}

func loadSchema(name Schema) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	b, err := schemaFS.ReadFile("schemas/" + string(name) + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

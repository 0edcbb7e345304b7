// Package prompts holds the LLM prompt templates used by the ranking
// pipeline. Templates are embedded at compile time from ranking.yaml.
package prompts

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed ranking.yaml
var rankingYAML []byte

// Name identifies a prompt template.
type Name string

// Templates used by the pipeline stages.
const (
	HybridEvaluation  Name = "hybrid_evaluation"
	IntentClassifier  Name = "intent_classifier"
	ProjectDecomposer Name = "project_decomposer"
	RoleExtractor     Name = "role_extractor"
	WeightAdjuster    Name = "weight_adjuster"
	QueryEnhancer     Name = "query_enhancer"
)

// Placeholder keys.
const (
	KeyUserQuery = "UserQuery"
	KeyTextInput = "TextInput"
)

var (
	once      sync.Once
	templates map[Name]string
	loadErr   error
)

func load() (map[Name]string, error) {
	once.Do(func() {
		var raw map[string]string
		if err := yaml.Unmarshal(rankingYAML, &raw); err != nil {
			loadErr = fmt.Errorf("failed to parse prompt file: %w", err)
			return
		}
		templates = make(map[Name]string, len(raw))
		for k, v := range raw {
			templates[Name(k)] = v
		}
	})
	return templates, loadErr
}

// Get returns the raw template for name.
func Get(name Name) (string, error) {
	t, err := load()
	if err != nil {
		return "", err
	}
	tpl, ok := t[name]
	if !ok {
		return "", fmt.Errorf("prompt %q not found", name)
	}
	return tpl, nil
}

// MustGet is Get that panics on a missing template.
func MustGet(name Name) string {
	tpl, err := Get(name)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tpl
}

// Format replaces {{.Key}} placeholders with values from data in a single
// pass, so placeholder-like text inside values is left alone.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{."+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Render loads name and fills it with data.
func Render(name Name, data map[string]string) (string, error) {
	tpl, err := Get(name)
	if err != nil {
		return "", err
	}
	return Format(tpl, data), nil
}

// List returns the available template names, sorted.
func List() []Name {
	t, _ := load()
	out := make([]Name, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

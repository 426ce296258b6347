package generation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Model struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Provider string `yaml:"provider" json:"provider"`
}

type Catalog struct {
	Default string  `yaml:"default" json:"default"`
	Models  []Model `yaml:"models" json:"models"`
}

const DefaultModelID = "google/gemini-2.0-flash-001"

func DefaultCatalog() Catalog {
	return Catalog{
		Default: DefaultModelID,
		Models: []Model{
			{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic"},
			{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "OpenAI"},
			{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI"},
			{ID: DefaultModelID, Name: "Gemini 2.0 Flash", Provider: "Google"},
			{ID: "mistralai/mistral-large-latest", Name: "Mistral Large", Provider: "Mistral"},
		},
	}
}

// LoadCatalog reads a YAML catalog. An empty path yields the built-in one.
func LoadCatalog(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read model catalog: %w", err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(c.Models) == 0 {
		return Catalog{}, fmt.Errorf("model catalog has no models")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return Catalog{}, fmt.Errorf("model catalog entry %d has no id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return Catalog{}, fmt.Errorf("model catalog lists %q twice", m.ID)
		}
		seen[m.ID] = struct{}{}
		if m.Name == "" {
			m.Name = m.ID
		}
		c.Models[i] = m
	}
	c.Default = strings.TrimSpace(c.Default)
	if c.Default == "" {
		c.Default = c.Models[0].ID
	}
	if _, ok := seen[c.Default]; !ok {
		return Catalog{}, fmt.Errorf("default model %q is not in the catalog", c.Default)
	}
	return c, nil
}

// Resolve maps an optional selector to a model id. An empty selector is the
// default; an unknown one reports false.
func (c Catalog) Resolve(selector string) (string, bool) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return c.Default, true
	}
	for _, m := range c.Models {
		if m.ID == selector {
			return m.ID, true
		}
	}
	return "", false
}

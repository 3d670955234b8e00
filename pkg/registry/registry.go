// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
)

func LoadManifest(path string) (*AgentManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m AgentManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// LoadOrDefault reads the manifest at path, falling back to the built-in
// one when path is empty or missing.
func LoadOrDefault(path string) (*AgentManifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	m, err := LoadManifest(path)
	if os.IsNotExist(err) {
		return DefaultManifest(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func SaveManifest(m *AgentManifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

func (m *AgentManifest) Validate() error {
	if len(m.Agents) == 0 {
		return fmt.Errorf("manifest contains no agents")
	}
	ids := make(map[string]bool)
	categories := make(map[string]bool)
	for _, a := range m.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent missing required field: ID")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate agent ID: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("agent %s missing required field: DisplayName", a.ID)
		}
		if a.Category == "" {
			return fmt.Errorf("agent %s missing required field: Category", a.ID)
		}
		if categories[a.Category] {
			return fmt.Errorf("category %s declared by more than one agent", a.Category)
		}
		categories[a.Category] = true
	}
	return nil
}

func (m *AgentManifest) Find(id string) (*Agent, bool) {
	for i := range m.Agents {
		if m.Agents[i].ID == id {
			return &m.Agents[i], true
		}
	}
	return nil, false
}

func (m *AgentManifest) ForCategory(category string) (*Agent, bool) {
	for i := range m.Agents {
		if m.Agents[i].Category == category {
			return &m.Agents[i], true
		}
	}
	return nil, false
}

func (m *AgentManifest) Add(a Agent) error {
	if _, exists := m.Find(a.ID); exists {
		return fmt.Errorf("agent with ID %s already exists", a.ID)
	}
	m.Agents = append(m.Agents, a)
	m.touch()
	return nil
}

// Update sets one descriptive field of an agent.
func (m *AgentManifest) Update(id, field, value string) error {
	a, ok := m.Find(id)
	if !ok {
		return fmt.Errorf("agent with ID %s not found", id)
	}
	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "examples":
		a.Examples = splitList(value)
	case "tags":
		a.Tags = splitList(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	m.touch()
	return nil
}

// ClassificationPrompt renders the category list the router sends to the model.
func (m *AgentManifest) ClassificationPrompt() string {
	var b strings.Builder
	for _, a := range m.Agents {
		fmt.Fprintf(&b, "- %s: %s", a.Category, a.Description)
		if len(a.Examples) > 0 {
			b.WriteString(` (es. "` + strings.Join(a.Examples, `", "`) + `")`)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *AgentManifest) touch() {
	m.LastUpdated = time.Now().Format(time.RFC3339)
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Package dispatch binds task categories to agents.
package dispatch

import (
	"fmt"

	"inventory-assistant/internal/assistant"
)

// Agents is the set of handlers the registry is built from. Query is required;
// it serves Extraction and any unmapped category.
type Agents struct {
	Query                 assistant.Agent
	SingleMovement        assistant.Agent
	MultiMovement         assistant.Agent
	Analytics             assistant.Agent
	CatalogManagement     assistant.Agent
	Reporting             assistant.Agent
	Notification          assistant.Agent
	DialogueClarification assistant.Agent
}

// Registry is built once at startup and shared read-only.
type Registry struct {
	agents Agents
}

func NewRegistry(agents Agents) (*Registry, error) {
	if agents.Query == nil {
		return nil, fmt.Errorf("query agent is required")
	}
	return &Registry{agents: agents}, nil
}

// Resolve returns the agent for a category. Extraction has no agent of its
// own and unknown values never fail; both get the Query agent, as does a
// category whose agent was not configured.
func (r *Registry) Resolve(c assistant.Category) assistant.Agent {
	var agent assistant.Agent
	switch c {
	case assistant.CategoryQuery:
		agent = r.agents.Query
	case assistant.CategorySingleMovement:
		agent = r.agents.SingleMovement
	case assistant.CategoryMultiMovement:
		agent = r.agents.MultiMovement
	case assistant.CategoryAnalytics:
		agent = r.agents.Analytics
	case assistant.CategoryCatalogManagement:
		agent = r.agents.CatalogManagement
	case assistant.CategoryReporting:
		agent = r.agents.Reporting
	case assistant.CategoryNotification:
		agent = r.agents.Notification
	case assistant.CategoryDialogueClarification:
		agent = r.agents.DialogueClarification
	case assistant.CategoryExtraction:
		agent = r.agents.Query
	default:
		agent = r.agents.Query
	}
	if agent == nil {
		return r.agents.Query
	}
	return agent
}

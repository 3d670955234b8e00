package dispatch

import (
	"context"
	"testing"

	"inventory-assistant/internal/assistant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedAgent string

func (a namedAgent) Name() string { return string(a) }

func (a namedAgent) Handle(context.Context, *assistant.Request) (*assistant.Response, error) {
	return &assistant.Response{Message: string(a)}, nil
}

func fullAgents() Agents {
	return Agents{
		Query:                 namedAgent("query"),
		SingleMovement:        namedAgent("single"),
		MultiMovement:         namedAgent("multi"),
		Analytics:             namedAgent("analytics"),
		CatalogManagement:     namedAgent("catalog"),
		Reporting:             namedAgent("reporting"),
		Notification:          namedAgent("notification"),
		DialogueClarification: namedAgent("clarification"),
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry(fullAgents())
	require.NoError(t, err)

	tests := []struct {
		category assistant.Category
		expected string
	}{
		{assistant.CategoryQuery, "query"},
		{assistant.CategorySingleMovement, "single"},
		{assistant.CategoryMultiMovement, "multi"},
		{assistant.CategoryAnalytics, "analytics"},
		{assistant.CategoryCatalogManagement, "catalog"},
		{assistant.CategoryReporting, "reporting"},
		{assistant.CategoryNotification, "notification"},
		{assistant.CategoryDialogueClarification, "clarification"},
		{assistant.CategoryExtraction, "query"},
		{assistant.Category("weather"), "query"},
		{assistant.Category(""), "query"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, reg.Resolve(tt.category).Name())
		})
	}
}

func TestRegistry_EveryCategoryResolves(t *testing.T) {
	reg, err := NewRegistry(fullAgents())
	require.NoError(t, err)

	for _, c := range assistant.Categories() {
		assert.NotNil(t, reg.Resolve(c), c)
	}
}

func TestRegistry_MissingAgentFallsBackToQuery(t *testing.T) {
	agents := fullAgents()
	agents.Notification = nil
	reg, err := NewRegistry(agents)
	require.NoError(t, err)

	assert.Equal(t, "query", reg.Resolve(assistant.CategoryNotification).Name())
}

func TestNewRegistry_RequiresQuery(t *testing.T) {
	agents := fullAgents()
	agents.Query = nil
	_, err := NewRegistry(agents)
	assert.Error(t, err)
}

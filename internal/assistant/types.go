// Package assistant holds the vocabulary shared by the orchestration pipeline:
// task categories, agent requests and replies.
package assistant

import (
	"context"
	"strings"
	"unicode"
)

// Category is one member of the closed set of task categories.
type Category string

const (
	CategoryQuery                 Category = "query"
	CategorySingleMovement        Category = "single_movement"
	CategoryMultiMovement         Category = "multi_movement"
	CategoryAnalytics             Category = "analytics"
	CategoryCatalogManagement     Category = "catalog_management"
	CategoryReporting             Category = "reporting"
	CategoryNotification          Category = "notification"
	CategoryDialogueClarification Category = "dialogue_clarification"
	// CategoryExtraction is catalog extraction from an uploaded file.
	CategoryExtraction Category = "extraction"
)

// Categories lists the closed set in a stable order.
func Categories() []Category {
	return []Category{
		CategoryQuery,
		CategorySingleMovement,
		CategoryMultiMovement,
		CategoryAnalytics,
		CategoryCatalogManagement,
		CategoryReporting,
		CategoryNotification,
		CategoryDialogueClarification,
		CategoryExtraction,
	}
}

// IsMovement reports whether c is handled by the movement pipeline.
func (c Category) IsMovement() bool {
	return c == CategorySingleMovement || c == CategoryMultiMovement
}

var categoryAliases = map[string]Category{
	"movement":        CategorySingleMovement,
	"singlemove":      CategorySingleMovement,
	"multimove":       CategoryMultiMovement,
	"multimovements":  CategoryMultiMovement,
	"multiple":        CategoryMultiMovement,
	"analysis":        CategoryAnalytics,
	"catalog":         CategoryCatalogManagement,
	"catalogue":       CategoryCatalogManagement,
	"management":      CategoryCatalogManagement,
	"report":          CategoryReporting,
	"reports":         CategoryReporting,
	"alert":           CategoryNotification,
	"alerts":          CategoryNotification,
	"notifications":   CategoryNotification,
	"clarification":   CategoryDialogueClarification,
	"dialogue":        CategoryDialogueClarification,
	"extract":         CategoryExtraction,
	"import":          CategoryExtraction,
	"fileextraction":  CategoryExtraction,
	"catalogextract":  CategoryExtraction,
}

// ParseCategory normalises a raw classifier token (punctuation and whitespace
// stripped, lowercased) and checks membership in the closed set.
func ParseCategory(raw string) (Category, bool) {
	key := normalizeToken(raw)
	if key == "" {
		return "", false
	}
	for _, c := range Categories() {
		if normalizeToken(string(c)) == key {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return "", false
}

func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tier names the processing strategy that produced a reply.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
	// TierContinuation marks replies produced by resuming a suspended movement batch.
	TierContinuation Tier = "continuation"
)

// Request is what an agent receives.
type Request struct {
	Utterance      string
	ConversationID string
	Category       Category
}

// Response is what an agent or tier produces.
type Response struct {
	Message string `json:"message"`
	// Payload carries structured markup (tables, candidate lists) for rich rendering.
	Payload      string                 `json:"structuredPayload,omitempty"`
	IsStructured bool                   `json:"isStructured"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Suspended    bool                   `json:"suspended"`
	// ErrorCode is set when a collaborator failed; the reply is still shown.
	ErrorCode string `json:"errorCode,omitempty"`
}

// Agent handles one category of request.
type Agent interface {
	Name() string
	Handle(ctx context.Context, req *Request) (*Response, error)
}

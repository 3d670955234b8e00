// Package router maps an utterance to a task category.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/common/genai"
	"inventory-assistant/internal/common/logger"
	"inventory-assistant/internal/common/metrics"
	"inventory-assistant/internal/movement"
	"inventory-assistant/pkg/registry"
)

var ErrClassificationUnavailable = errors.New("CLASSIFICATION_UNAVAILABLE")

type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

type Decision struct {
	Category assistant.Category
	Source   Source
	Raw      string
}

const DefaultTimeout = 10 * time.Second

var (
	fileVocabulary = regexp.MustCompile(`(?i)\b(file|csv|excel|xlsx?|pdf|allegat[oi]|listino|importa|importare|import|upload|caricato il file|attachment|spreadsheet)\b`)

	conjunctions = regexp.MustCompile(`(?i)(,|;|\s+e\s+|\s+ed\s+|\s+and\s+|\s*&\s*)`)

	catalogMention = regexp.MustCompile(`(?i)\b(catalog[oa]?|catalogue)\b`)

	managementVerbs = regexp.MustCompile(`(?i)\b(aggiungi|crea|inserisci|elimina|cancella|rimuovi|modifica|aggiorna|cambia|rinomina|add|create|insert|delete|remove|update|change|rename|edit)\b`)

	analyticsVocabulary = regexp.MustCompile(`(?i)\b(analisi|analizza|andamento|trend|statistich[ea]|confronta|confronto|media|classifica|vendut[oi] di più|più vendut[oi]|fatturato|margine|report|analy[sz]e|analysis|statistics|compare|average|best.?selling|top|revenue|performance)\b`)
)

// Router classifies with one model call and falls back to keyword rules when
// the answer is not a known category. A failed model call is fatal for the
// request.
type Router struct {
	completer genai.Completer
	model     string
	timeout   time.Duration
	system    string
	logger    logger.Logger
}

func New(completer genai.Completer, model string, timeout time.Duration, manifest *registry.AgentManifest, log logger.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if manifest == nil {
		manifest = registry.DefaultManifest()
	}
	return &Router{
		completer: completer,
		model:     model,
		timeout:   timeout,
		system:    buildSystemPrompt(manifest),
		logger:    logger.ForComponent(log, "router"),
	}
}

func buildSystemPrompt(m *registry.AgentManifest) string {
	return "Sei il classificatore di un assistente per la gestione di una cantina. " +
		"Classifica il messaggio dell'utente in una sola delle categorie seguenti e " +
		"rispondi solo con il nome della categoria, senza altro testo.\n\n" +
		m.ClassificationPrompt()
}

func (r *Router) Route(ctx context.Context, utterance string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.completer.Complete(ctx, genai.CompletionRequest{
		Model:       r.model,
		System:      r.system,
		Prompt:      utterance,
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil {
		r.logger.Error("classification call failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Decision{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
	}

	decision := Decision{Raw: raw}
	if c, ok := parseAnswer(raw); ok {
		decision.Category = c
		decision.Source = SourceModel
	} else {
		decision.Category = Fallback(utterance)
		decision.Source = SourceFallback
		r.logger.Warn("unrecognised classifier answer, using keyword fallback", map[string]interface{}{
			"answer":   truncate(raw, 80),
			"category": string(decision.Category),
		})
	}

	metrics.RouteDecisions.WithLabelValues(string(decision.Category), string(decision.Source)).Inc()
	return decision, nil
}

// parseAnswer accepts the whole answer or, failing that, exactly one known
// category among its words ("Categoria: query").
func parseAnswer(raw string) (assistant.Category, bool) {
	if c, ok := assistant.ParseCategory(raw); ok {
		return c, true
	}
	var found []assistant.Category
	for _, word := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\n' || r == ':' || r == ',' || r == '"' || r == '`'
	}) {
		if c, ok := assistant.ParseCategory(word); ok {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}

// Fallback applies the ordered keyword rules. It always returns a member of
// the closed set; Query is the default.
func Fallback(utterance string) assistant.Category {
	switch {
	case fileVocabulary.MatchString(utterance):
		return assistant.CategoryExtraction
	case movement.HasMovementVerb(utterance) && !catalogMention.MatchString(utterance):
		if conjunctions.MatchString(utterance) || movement.CountQuantities(utterance) > 1 {
			return assistant.CategoryMultiMovement
		}
		return assistant.CategorySingleMovement
	case managementVerbs.MatchString(utterance):
		return assistant.CategoryCatalogManagement
	case analyticsVocabulary.MatchString(utterance):
		return assistant.CategoryAnalytics
	default:
		return assistant.CategoryQuery
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package agents

import (
	"errors"
	"fmt"
	"strings"

	"inventory-assistant/internal/assistant"
	"inventory-assistant/internal/movement"
)

// movementSummary is the structured payload of a movement reply.
type movementSummary struct {
	State     movement.State        `json:"state"`
	Results   []movement.StepResult `json:"results"`
	Pending   *movement.PendingStep `json:"pending,omitempty"`
	Remaining int                   `json:"remaining"`
}

// RenderRun turns a sequencer result into the user-facing reply. Suspended
// and unresolved runs end with the numbered candidate list.
func RenderRun(result *movement.RunResult) *assistant.Response {
	var b strings.Builder

	for _, step := range result.Results {
		b.WriteString(renderStep(step))
		b.WriteString("\n")
	}

	switch result.State {
	case movement.StateSuspended, movement.StateUnresolved:
		if result.State == movement.StateUnresolved && len(result.Results) == 0 {
			b.WriteString("Non ho capito quale intendi. ")
		}
		if result.Pending != nil {
			b.WriteString(renderPrompt(*result.Pending))
		}
		if n := len(result.Remaining); n > 0 {
			fmt.Fprintf(&b, "\nDopo la tua scelta proseguo con %d %s.", n, plural(n, "movimento", "movimenti"))
		}
	case movement.StateCompleted:
		if len(result.Results) == 0 {
			b.WriteString("Nessun movimento da registrare.")
		}
	}

	resp := structured(strings.TrimSpace(b.String()), movementSummary{
		State:     result.State,
		Results:   result.Results,
		Pending:   result.Pending,
		Remaining: len(result.Remaining),
	})
	resp.Suspended = result.State == movement.StateSuspended || result.State == movement.StateUnresolved
	resp.Metadata = map[string]interface{}{
		"state":   string(result.State),
		"applied": result.Applied(),
	}
	return resp
}

// RenderStep renders a movement applied outside a batch. An ambiguous item
// lists its candidates and asks for the movement again; nothing is pending.
func RenderStep(step movement.StepResult) *assistant.Response {
	resp := RenderRun(&movement.RunResult{State: movement.StateCompleted, Results: []movement.StepResult{step}})
	if step.Outcome.Kind != movement.OutcomeAmbiguous {
		return resp
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ho trovato più vini per \"%s\":", step.Intent.ItemReference)
	for i, c := range step.Outcome.Candidates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Label())
	}
	b.WriteString("\nRipeti il movimento indicando il vino esatto.")
	resp.Message = b.String()
	return resp
}

const storeFailureNotice = "Non riesco a salvare la scelta in sospeso: ripeti il movimento indicando il vino esatto."

// RenderRunResult renders a run together with the error it ended with. A
// suspension whose continuation could not be saved is not reported as
// suspended, since the next turn would find nothing to resume.
func RenderRunResult(result *movement.RunResult, err error) *assistant.Response {
	resp := RenderRun(result)
	if err == nil {
		return resp
	}
	resp.Metadata["runError"] = err.Error()
	resp.ErrorCode = codeOf(err)
	if errors.Is(err, movement.ErrContinuationStore) {
		resp.Suspended = false
		resp.Message += "\n" + storeFailureNotice
	}
	return resp
}

func renderStep(step movement.StepResult) string {
	verb := "scaricate"
	if step.Intent.Kind == movement.Replenishment {
		verb = "caricate"
	}
	switch step.Outcome.Kind {
	case movement.OutcomeApplied:
		return fmt.Sprintf("✓ %d %s %s (%s)", step.Intent.Quantity, plural(step.Intent.Quantity, "bottiglia", "bottiglie"), verb, step.Outcome.Effect)
	case movement.OutcomeRejected:
		return fmt.Sprintf("✗ %s × %d: %s", step.Intent.ItemReference, step.Intent.Quantity, rejectionText(step.Outcome.Reason))
	default:
		return fmt.Sprintf("? %s × %d", step.Intent.ItemReference, step.Intent.Quantity)
	}
}

func renderPrompt(p movement.PendingStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ho trovato più vini per \"%s\" (%d %s). Quale intendi?", p.Intent.ItemReference, p.Intent.Quantity, plural(p.Intent.Quantity, "bottiglia", "bottiglie"))
	for i, c := range p.Candidates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Label())
	}
	return b.String()
}

func rejectionText(reason string) string {
	switch {
	case reason == movement.ReasonTimeout:
		return "l'inventario non ha risposto in tempo"
	case reason == movement.ReasonUnknownItem:
		return "vino non trovato in catalogo"
	case reason == movement.ReasonNonPositiveQuantity:
		return "quantità non valida"
	case reason == movement.ReasonInventoryUnavailable:
		return "inventario non raggiungibile"
	case reason == movement.ReasonUnknownCandidate:
		return "scelta non valida"
	case strings.HasPrefix(reason, movement.ReasonInsufficientStock):
		return "giacenza insufficiente" + strings.TrimPrefix(reason, movement.ReasonInsufficientStock)
	default:
		return reason
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

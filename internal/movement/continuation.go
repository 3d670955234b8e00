package movement

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"inventory-assistant/internal/common/metrics"
)

var (
	ordinalNumberPattern = regexp.MustCompile(`\b(\d{1,2})\b`)

	ordinalWords = map[string]int{
		"primo": 1, "prima": 1, "first": 1, "1st": 1, "1°": 1,
		"secondo": 2, "seconda": 2, "second": 2, "2nd": 2, "2°": 2,
		"terzo": 3, "terza": 3, "third": 3, "3rd": 3, "3°": 3,
		"quarto": 4, "quarta": 4, "fourth": 4, "4th": 4,
		"quinto": 5, "quinta": 5, "fifth": 5, "5th": 5,
	}
	lastWords = map[string]struct{}{"ultimo": {}, "ultima": {}, "last": {}}

	// requestPattern is lookup and reporting vocabulary that never answers a
	// disambiguation prompt.
	requestPattern = regexp.MustCompile(`(?i)\b(quant[ioe]|quanta|mostra(?:mi)?|fammi|dimmi|elenc[oa]|lista|report|riepilogo|analisi|analizza|confronta|cerca|trova|giacenz[ae]|inventario|vendite|how many|how much|show|list|find|search|compare)\b`)
)

// Match picks the candidate the answer refers to: by exact name or id, by
// ordinal ("2", "the second", "l'ultimo"), or by a name fragment that fits
// exactly one candidate.
func (c *Continuation) Match(answer string) (Candidate, bool) {
	return MatchCandidate(answer, c.Pending.Candidates)
}

func MatchCandidate(answer string, candidates []Candidate) (Candidate, bool) {
	text := strings.ToLower(strings.TrimSpace(answer))
	text = strings.Trim(text, " .!,;:\"'")
	if text == "" || len(candidates) == 0 {
		return Candidate{}, false
	}

	var exact []Candidate
	for _, c := range candidates {
		if text == strings.ToLower(c.Name) || text == strings.ToLower(c.ID) || text == strings.ToLower(c.Label()) {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return exact[0], true
	}

	if idx, ok := ordinalIndex(text, len(candidates)); ok {
		return candidates[idx], true
	}

	tokens := contentTokens(text)
	if len(tokens) == 0 {
		return Candidate{}, false
	}
	var found []Candidate
	for _, c := range candidates {
		label := strings.ToLower(c.Label() + " " + c.ID)
		all := true
		for _, t := range tokens {
			if !strings.Contains(label, t) {
				all = false
				break
			}
		}
		if all {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return Candidate{}, false
}

func ordinalIndex(text string, n int) (int, bool) {
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == '\'' || r == ',' }) {
		if pos, ok := ordinalWords[w]; ok && pos <= n {
			return pos - 1, true
		}
		if _, ok := lastWords[w]; ok {
			return n - 1, true
		}
	}
	// A bare small number is a position; a vintage like 2015 is not.
	if m := ordinalNumberPattern.FindStringSubmatch(text); m != nil {
		pos, err := strconv.Atoi(m[1])
		if err == nil && pos >= 1 && pos <= n {
			return pos - 1, true
		}
	}
	return 0, false
}

func contentTokens(text string) []string {
	var tokens []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || isStopWord(w) || w == "quello" || w == "quella" || w == "that" || w == "one" {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// LooksLikeNewRequest tells a fresh request apart from an answer to a pending
// disambiguation prompt. Answers are short statements without a movement,
// question or lookup vocabulary of their own.
func LooksLikeNewRequest(utterance string) bool {
	if HasMovementVerb(utterance) && CountQuantities(utterance) > 0 {
		return true
	}
	if strings.Contains(utterance, "?") || requestPattern.MatchString(utterance) {
		return true
	}
	return len(strings.Fields(utterance)) > 6
}

// Resume applies the user's answer to the suspended intent. When the answer
// settles the item (Applied, or Rejected for a reason other than an unknown
// candidate) the continuation is cleared and the remaining intents run as a
// fresh batch, so the result equals a run over the resolved intent followed
// by the remaining ones. Otherwise the continuation is left untouched and
// the result is Unresolved.
func (s *Sequencer) Resume(ctx context.Context, cont *Continuation, answer string) (*RunResult, error) {
	unresolved := func(results []StepResult) *RunResult {
		metrics.ContinuationEvents.WithLabelValues("reprompted").Inc()
		pending := cont.Pending
		return &RunResult{
			State:     StateUnresolved,
			Results:   results,
			Pending:   &pending,
			Remaining: cont.RemainingIntents,
		}
	}

	chosen, ok := cont.Match(answer)
	if !ok {
		s.logger.Debug("answer did not match a candidate", map[string]interface{}{
			"conversationId": cont.ConversationID,
			"candidates":     len(cont.Pending.Candidates),
		})
		return unresolved(nil), nil
	}

	intent := cont.Pending.Intent
	stepCtx, cancel := s.stepContext(ctx)
	outcome, err := s.inventory.ResolveAmbiguity(stepCtx, intent, cont.Pending.Candidates, chosen.ID)
	outcome = s.normalize(stepCtx, intent, outcome, err)
	cancel()

	if err != nil || outcome.Kind == OutcomeAmbiguous || outcome.Reason == ReasonUnknownCandidate {
		var results []StepResult
		if err != nil {
			results = []StepResult{{Intent: intent, Outcome: outcome}}
		}
		return unresolved(results), nil
	}

	metrics.MovementOutcomes.WithLabelValues(string(intent.Kind), string(outcome.Kind)).Inc()
	metrics.ContinuationEvents.WithLabelValues("resumed").Inc()

	if err := s.store.Clear(ctx, cont.ConversationID); err != nil {
		s.logger.Warn("failed to clear resolved continuation", map[string]interface{}{
			"conversationId": cont.ConversationID,
			"error":          err.Error(),
		})
	}

	resolved := StepResult{
		Intent:  Intent{Kind: intent.Kind, ItemReference: chosen.Name, Quantity: intent.Quantity},
		Outcome: outcome,
	}

	rest, err := s.Run(ctx, cont.ConversationID, cont.RemainingIntents)
	if rest == nil {
		rest = &RunResult{State: StateCompleted}
	}
	rest.Results = append([]StepResult{resolved}, rest.Results...)
	return rest, err
}

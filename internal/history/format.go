package history

import "strings"

// Transcript renders turns as "role: text" lines for a model prompt.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(t.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// LastUserTurn returns the most recent user message, skipping the current one
// when skipCurrent is set.
func LastUserTurn(turns []Turn, skipCurrent bool) (Turn, bool) {
	skipped := !skipCurrent
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != RoleUser {
			continue
		}
		if !skipped {
			skipped = true
			continue
		}
		return turns[i], true
	}
	return Turn{}, false
}

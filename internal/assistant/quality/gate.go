// Package quality judges whether a fast-tier reply is good enough to return.
package quality

import (
	"strings"

	"inventory-assistant/internal/assistant"
)

const DefaultMinLength = 40

var failurePhrases = []string{
	"non ho capito",
	"non capisco",
	"non sono sicuro",
	"non sono sicura",
	"non so rispondere",
	"non saprei",
	"non riesco a",
	"si è verificato un errore",
	"c'è stato un errore",
	"errore durante",
	"riprova più tardi",
	"i don't understand",
	"i do not understand",
	"i didn't understand",
	"i'm not sure",
	"i am not sure",
	"not sure i can",
	"i can't help",
	"i cannot help",
	"an error occurred",
	"something went wrong",
	"please try again",
}

var fillerPhrases = []string{
	"ciao",
	"salve",
	"buongiorno",
	"buonasera",
	"come posso aiutarti",
	"come posso esserti utile",
	"certo",
	"va bene",
	"ok",
	"hello",
	"hi there",
	"how can i help",
	"sure",
	"of course",
	"no problem",
}

// Gate is a pure predicate over a reply.
type Gate struct {
	minLength int
}

func NewGate(minLength int) *Gate {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Gate{minLength: minLength}
}

// Accept returns false when the reply should be escalated to the capable tier.
// Structured replies are accepted before any other check.
func (g *Gate) Accept(resp *assistant.Response) bool {
	if resp == nil {
		return false
	}
	if resp.IsStructured {
		return true
	}

	message := strings.TrimSpace(resp.Message)
	if message == "" {
		return false
	}
	if flagged(resp.Metadata) {
		return false
	}

	lower := strings.ToLower(message)
	if containsAny(lower, failurePhrases) {
		return false
	}
	if len([]rune(message)) < g.minLength && containsAny(lower, fillerPhrases) {
		return false
	}
	return true
}

func flagged(metadata map[string]interface{}) bool {
	if metadata == nil {
		return false
	}
	v, ok := metadata["error"]
	if !ok || v == nil {
		return false
	}
	switch e := v.(type) {
	case bool:
		return e
	case string:
		return e != ""
	default:
		return true
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches p on word boundaries so "ok" does not fire inside "book".
func containsPhrase(text, p string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], p)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(p)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

// Package complexity decides whether an utterance is cheap enough for the fast tier.
package complexity

import (
	"regexp"
	"strings"

	"inventory-assistant/internal/movement"
)

type Level string

const (
	Simple  Level = "simple"
	Complex Level = "complex"
)

var (
	// Several quantity+item pairs joined by a conjunction or a comma.
	multiQuantityPattern = regexp.MustCompile(`(?i)\b\d+\s+[\p{L}'][\p{L}'\s]*?(?:,|;|\s+e\s+|\s+ed\s+|\s+and\s+|\s*&\s*)\s*\d+\s+\p{L}`)

	catalogPattern = regexp.MustCompile(`(?i)\b(aggiungi (?:al|in) catalogo|nuovo vino|nuova etichetta|crea (?:un )?(?:nuovo )?vino|elimina|cancella|rimuovi dal catalogo|modifica|aggiorna (?:il )?prezzo|cambia (?:il )?prezzo|rinomina|add (?:a )?new wine|add to (?:the )?catalog|delete|remove from (?:the )?catalog|update (?:the )?price|rename|edit)\b`)

	analyticsPattern = regexp.MustCompile(`(?i)\b(analisi|analizza|andamento|trend|statistich[ea]|report|rapporto|riepilogo|confronta|confronto|media|classifica|più vendut[oi]|meno vendut[oi]|fatturato|margine|analy[sz]e|analysis|statistics|summary|compare|comparison|average|best.?selling|top \d+|revenue|forecast|previsione)\b`)

	alertPattern = regexp.MustCompile(`(?i)\b(avvisami|avvisa|notifica|notifiche|allerta|alert|avviso|promemoria|notify|remind|reminder|warn me|soglia|threshold)\b`)

	metaPattern = regexp.MustCompile(`(?i)(cosa (?:ti )?(?:ho|abbiamo) detto|cosa dicevamo|di cosa parlavamo|prima mi hai detto|come (?:ti )?dicevo|ripeti|what did (?:we|i) (?:say|talk about)|as i said|you said|earlier you|repeat that)`)

	lookupPattern = regexp.MustCompile(`(?i)\b(quant[ei]|quanti|giacenz[ae]|disponibilit\p{L}*|ne ho|ho ancora|c'è ancora|ci sono|in cantina|in magazzino|how many|how much|in stock|do we have|do i have|stock of|inventory of|what is the price|prezzo di|quanto costa)\b`)
)

// Classify applies the rules in priority order, first match wins:
// complex surface patterns, implicit multi-movement, simple surface patterns,
// and Complex when nothing matched.
func Classify(utterance string) Level {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Complex
	}

	if isComplexSurface(text) {
		return Complex
	}

	if isImplicitMultiMovement(text) {
		return Complex
	}

	if isSimpleSurface(text) {
		return Simple
	}

	return Complex
}

func isComplexSurface(text string) bool {
	return multiQuantityPattern.MatchString(text) ||
		catalogPattern.MatchString(text) ||
		analyticsPattern.MatchString(text) ||
		alertPattern.MatchString(text) ||
		metaPattern.MatchString(text)
}

// isImplicitMultiMovement catches several quantities, or one quantity with
// more than one item name, without an explicit conjunction.
func isImplicitMultiMovement(text string) bool {
	quantities := movement.CountQuantities(text)
	if quantities > 1 {
		return true
	}
	if quantities == 1 {
		return countItemNames(text) > 1
	}
	return false
}

var capitalizedWord = regexp.MustCompile(`\b\p{Lu}[\p{L}']+`)

// countItemNames counts distinct capitalised words after the first token,
// consecutive ones forming a single name ("Brunello di Montalcino" is one).
func countItemNames(text string) int {
	words := strings.Fields(text)
	if len(words) < 2 {
		return 0
	}
	names := map[string]struct{}{}
	var current []string
	flush := func() {
		if len(current) > 0 {
			names[strings.ToLower(strings.Join(current, " "))] = struct{}{}
			current = nil
		}
	}
	for i, w := range words[1:] {
		clean := strings.Trim(w, ".,;:!?\"()")
		switch {
		case capitalizedWord.MatchString(clean) && capitalizedWord.FindString(clean) == clean:
			current = append(current, clean)
			if strings.ContainsAny(w[len(w)-1:], ",;.") {
				flush()
			}
		case len(current) > 0 && isNameJoiner(clean) && i+2 < len(words) && capitalizedWord.MatchString(words[i+2]):
			current = append(current, clean)
		default:
			flush()
		}
	}
	flush()
	return len(names)
}

func isNameJoiner(w string) bool {
	switch strings.ToLower(w) {
	case "di", "del", "della", "dei", "d'", "of", "de", "la", "le":
		return true
	}
	return false
}

func isSimpleSurface(text string) bool {
	if movement.HasMovementVerb(text) && movement.CountQuantities(text) == 1 {
		return true
	}
	return lookupPattern.MatchString(text)
}

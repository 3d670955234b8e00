package movement

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	replenishmentPattern = regexp.MustCompile(`(?i)\b(aggiunt[oaie]|aggiung[oie]|aggiungere|comprat[oaie]|acquistat[oaie]|ricevut[oaie]|arrivat[oaie]|caricat[oaie]|carico|rifornit[oaie]|riforniment[oi]|entrat[ae]|added|add|bought|purchased|received|restocked|restock|stocked|loaded)\b`)
	consumptionPattern   = regexp.MustCompile(`(?i)\b(vendut[oaie]|vend[oi]|consumat[oaie]|bevut[oaie]|tolt[oaie]|rimoss[oaie]|scaricat[oaie]|scarico|uscit[ae]|apert[oaie]|sold|sell|consumed|drank|drunk|used|removed|took|opened)\b`)

	// A quantity is a bare number, or an article directly in front of a
	// container word ("una bottiglia di ...").
	quantityPattern = regexp.MustCompile(`(?i)\b(?:(\d+)|(un|una|uno|one|a)\s+(?:bottiglia|bottle|cassa|case|cartone)\b)`)

	// itemSeparatorPattern ends an item phrase. Matched on the segment with a
	// trailing space so a closing " e" still counts.
	itemSeparatorPattern = regexp.MustCompile(`(?i)[,;!?\n]| (?:e|ed|and|poi|then|più|plus|&) `)

	// measurePattern is a bottle size inside an item phrase ("da 75cl", "0,75 l").
	measurePattern = regexp.MustCompile(`(?i)(?:\s+(?:da|di|in|from))?\s*\b\d+(?:[.,]\d+)?\s*(?:cl|ml|lt|litri|litro|l|cc)\b\.?`)

	containerPattern = regexp.MustCompile(`(?i)^(?:bottiglie|bottiglia|bott\.?|casse|cassa|cartoni|cartone|pezzi|pz\.?|bottles|bottle|cases|case|units|unit|pcs)(?:\s+(?:di|del|della|dei|degli|delle|of))?\s+`)
)

// unitWords follow a number that measures something other than a count.
var unitWords = map[string]struct{}{
	"cl": {}, "ml": {}, "l": {}, "lt": {}, "cc": {}, "litro": {}, "litri": {},
	"liter": {}, "liters": {}, "litre": {}, "litres": {}, "%": {}, "vol": {},
	"gradi": {}, "euro": {}, "eur": {}, "€": {}, "anni": {}, "years": {},
}

var stopWords = map[string]struct{}{
	"il": {}, "lo": {}, "la": {}, "i": {}, "gli": {}, "le": {}, "l'": {},
	"un": {}, "uno": {}, "una": {}, "di": {}, "del": {}, "dello": {}, "della": {},
	"dei": {}, "degli": {}, "delle": {}, "da": {}, "dal": {}, "dalla": {}, "in": {},
	"a": {}, "al": {}, "alla": {}, "per": {}, "con": {}, "anche": {}, "ancora": {},
	"the": {}, "an": {}, "of": {}, "from": {}, "to": {}, "for": {}, "with": {},
	"also": {}, "more": {},
}

// PatternExtractor is the deterministic extractor: one shared direction for
// the whole utterance and one intent per "<quantity> [bottles of] <item>"
// occurrence, in mention order. Repeated items are not merged.
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

type rawMention struct {
	quantity int
	item     string
	cut      bool
}

func (e *PatternExtractor) Extract(utterance string) []Intent {
	kind := DetectKind(utterance)

	locs := quantityMatches(utterance)
	mentions := make([]rawMention, 0, len(locs))

	for i, loc := range locs {
		var qty int
		var itemStart int
		if loc[2] >= 0 {
			n, err := strconv.Atoi(utterance[loc[2]:loc[3]])
			if err != nil {
				continue
			}
			qty = n
			itemStart = loc[3]
		} else {
			qty = 1
			itemStart = loc[5]
		}

		end := len(utterance)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment, cut := cutAtSeparator(utterance[itemStart:end])

		// A year right after an uncut item is its vintage, not a new quantity.
		if loc[2] >= 0 && isVintage(qty) && len(mentions) > 0 && !mentions[len(mentions)-1].cut {
			prev := &mentions[len(mentions)-1]
			prev.item = strings.TrimSpace(prev.item) + " " + strconv.Itoa(qty) + segment
			prev.cut = cut
			continue
		}

		mentions = append(mentions, rawMention{quantity: qty, item: segment, cut: cut})
	}

	intents := make([]Intent, 0, len(mentions))
	for _, m := range mentions {
		intent := Intent{Kind: kind, ItemReference: cleanItem(m.item), Quantity: m.quantity}
		if intent.Validate() != nil {
			continue
		}
		intents = append(intents, intent)
	}
	return intents
}

// DetectKind scans for direction vocabulary. Replenishment wins when both
// directions appear; with neither, the movement is a consumption.
func DetectKind(utterance string) Kind {
	if replenishmentPattern.MatchString(utterance) {
		return Replenishment
	}
	return Consumption
}

// HasMovementVerb reports whether the utterance carries any direction vocabulary.
func HasMovementVerb(utterance string) bool {
	return replenishmentPattern.MatchString(utterance) || consumptionPattern.MatchString(utterance)
}

// CountQuantities returns how many quantity phrases the utterance contains.
func CountQuantities(utterance string) int {
	return len(quantityMatches(utterance))
}

// quantityMatches keeps the quantity phrases that count bottles. A number
// glued to a unit ("75cl"), part of a decimal ("0,75") or followed by a unit
// word ("75 cl") is a measure, not a quantity.
func quantityMatches(utterance string) [][]int {
	locs := quantityPattern.FindAllStringSubmatchIndex(utterance, -1)
	kept := locs[:0]
	for _, loc := range locs {
		if loc[2] >= 0 && !standaloneNumber(utterance, loc[2], loc[3]) {
			continue
		}
		kept = append(kept, loc)
	}
	return kept
}

func standaloneNumber(s string, start, end int) bool {
	if start > 0 && (s[start-1] == ',' || s[start-1] == '.') {
		return false
	}
	if end == len(s) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(s[end:])
	switch {
	case next == ',' || next == '.':
		if end+1 < len(s) && isDigit(s[end+1]) {
			return false
		}
		return true
	case !unicode.IsSpace(next) && !unicode.IsPunct(next):
		return false
	case next == '%':
		return false
	}
	fields := strings.Fields(s[end:])
	if len(fields) == 0 {
		return true
	}
	_, isUnit := unitWords[strings.ToLower(strings.Trim(fields[0], ".,;:!?"))]
	return !isUnit
}

func cutAtSeparator(segment string) (string, bool) {
	padded := segment + " "
	for _, loc := range itemSeparatorPattern.FindAllStringIndex(padded, -1) {
		if loc[0] >= len(segment) {
			break
		}
		if decimalComma(padded, loc[0]) {
			continue
		}
		return segment[:loc[0]], true
	}
	return segment, false
}

func decimalComma(s string, i int) bool {
	return s[i] == ',' && i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func cleanItem(raw string) string {
	item := strings.TrimSpace(raw)
	item = strings.TrimSpace(measurePattern.ReplaceAllString(item, ""))
	item = containerPattern.ReplaceAllString(item, "")
	item = strings.Trim(item, " .:-\"'")

	words := strings.Fields(item)
	for len(words) > 0 && isStopWord(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && isStopWord(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

func isVintage(n int) bool {
	return n >= 1900 && n <= 2099
}

package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/parleyhq/parley/internal/config"
)

// Reserved slot keys written by the stage handlers. They live in the
// session's slot map alongside extracted entities.
const (
	slotIntent    = "intent"
	slotFillScore = "slot_score"
)

// intentDef is a compiled config.Intent.
type intentDef struct {
	name          string
	keywords      []string
	requiredSlots []string
	tools         []string
}

// Extractor performs deterministic, rule-based intent detection and slot
// extraction. Intents and slot patterns come from configuration; there is
// deliberately no model dependency so that gate behavior stays reproducible.
type Extractor struct {
	intents []intentDef
	slots   map[string]*regexp.Regexp
}

// NewExtractor compiles the configured intents and slot patterns.
func NewExtractor(intents []config.Intent, slotPatterns map[string]string) (*Extractor, error) {
	e := &Extractor{slots: make(map[string]*regexp.Regexp, len(slotPatterns))}

	for name, pattern := range slotPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("slot pattern %s: %w", name, err)
		}
		e.slots[name] = re
	}

	for _, in := range intents {
		def := intentDef{
			name:          in.Name,
			requiredSlots: in.RequiredSlots,
			tools:         in.Tools,
		}
		for _, kw := range in.Keywords {
			def.keywords = append(def.keywords, strings.ToLower(kw))
		}
		e.intents = append(e.intents, def)
	}

	return e, nil
}

// DetectIntent scores every configured intent against the utterance and
// returns the best match. Confidence grows with each matched keyword:
// one hit is a weak signal, two or more are strong.
func (e *Extractor) DetectIntent(input string) (string, float64) {
	lowered := strings.ToLower(input)

	best, bestMatched := "", 0
	for _, def := range e.intents {
		matched := 0
		for _, kw := range def.keywords {
			if strings.Contains(lowered, kw) {
				matched++
			}
		}
		if matched > bestMatched {
			best, bestMatched = def.name, matched
		}
	}

	if bestMatched == 0 {
		return "", 0
	}
	confidence := 0.55 + 0.20*float64(bestMatched)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return best, confidence
}

// ExtractSlots runs the patterns for the named slots over the utterance.
// Each pattern's first capture group (or the whole match) becomes the value.
func (e *Extractor) ExtractSlots(input string, names []string) map[string]string {
	found := make(map[string]string)
	for _, name := range names {
		re, ok := e.slots[name]
		if !ok {
			continue
		}
		m := re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			found[name] = m[1]
		} else {
			found[name] = m[0]
		}
	}
	return found
}

// Intent returns the compiled definition for name.
func (e *Extractor) Intent(name string) (intentDef, bool) {
	for _, def := range e.intents {
		if def.name == name {
			return def, true
		}
	}
	return intentDef{}, false
}

// DeclaredTools returns the union of every configured intent's tools: the
// capability set the tool-execution handler is authorized to request.
func (e *Extractor) DeclaredTools() []string {
	seen := make(map[string]bool)
	var tools []string
	for _, def := range e.intents {
		for _, t := range def.tools {
			if !seen[t] {
				seen[t] = true
				tools = append(tools, t)
			}
		}
	}
	return tools
}

// languageMarkers maps a handful of very common words to a language tag.
// Good enough for routing; anything smarter is an external capability.
var languageMarkers = map[string][]string{
	"es": {"hola", "gracias", "cuenta", "pagar", "necesito"},
	"fr": {"bonjour", "merci", "compte", "payer", "besoin"},
	"de": {"hallo", "danke", "konto", "bezahlen", "brauche"},
}

// DetectLanguage guesses the utterance language, defaulting to "en".
func DetectLanguage(input string) string {
	lowered := " " + strings.ToLower(input) + " "
	for lang, markers := range languageMarkers {
		for _, m := range markers {
			if strings.Contains(lowered, " "+m+" ") || strings.Contains(lowered, " "+m+",") ||
				strings.Contains(lowered, " "+m+"!") || strings.Contains(lowered, " "+m+".") {
				return lang
			}
		}
	}
	return "en"
}

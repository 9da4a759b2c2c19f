package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/domain/tool"
)

// greetingHandler opens the conversation. It has no gate: the result
// always advances to intent detection.
type greetingHandler struct{}

func (*greetingHandler) Stage() session.Stage { return session.StageGreeting }
func (*greetingHandler) Tools() []string      { return nil }

func (*greetingHandler) Handle(_ context.Context, sess *session.Session, input string) (*StageResult, error) {
	lang := sess.Language
	if lang == "" {
		lang = DetectLanguage(input)
	}
	return &StageResult{
		Reply:      "Hello! How can I help you today?",
		Language:   lang,
		Confidence: 1.0,
	}, nil
}

// intentHandler classifies the utterance into one of the configured intents.
type intentHandler struct {
	ex *Extractor
}

func (*intentHandler) Stage() session.Stage { return session.StageIntentDetection }
func (*intentHandler) Tools() []string      { return nil }

func (h *intentHandler) Handle(_ context.Context, _ *session.Session, input string) (*StageResult, error) {
	name, confidence := h.ex.DetectIntent(input)
	if name == "" {
		return &StageResult{
			Reply:      "I did not catch that. Could you rephrase?",
			Confidence: 0,
		}, nil
	}
	return &StageResult{
		Reply:      fmt.Sprintf("Got it, you want to %s.", strings.ReplaceAll(name, "_", " ")),
		Slots:      map[string]string{slotIntent: name},
		Confidence: confidence,
	}, nil
}

// slotHandler extracts the entities the detected intent requires, counting
// values already present on the session from earlier turns.
type slotHandler struct {
	ex *Extractor
}

func (*slotHandler) Stage() session.Stage { return session.StageSlotFilling }
func (*slotHandler) Tools() []string      { return nil }

func (h *slotHandler) Handle(_ context.Context, sess *session.Session, input string) (*StageResult, error) {
	def, ok := h.ex.Intent(sess.Slots[slotIntent])
	if !ok {
		return &StageResult{
			Reply:      "I lost track of what you needed.",
			Confidence: 0,
		}, nil
	}

	extracted := h.ex.ExtractSlots(input, def.requiredSlots)

	filled := 0
	var missing []string
	for _, name := range def.requiredSlots {
		if _, ok := extracted[name]; ok {
			filled++
			continue
		}
		if _, ok := sess.Slots[name]; ok {
			filled++
			continue
		}
		missing = append(missing, name)
	}

	confidence := 1.0
	if len(def.requiredSlots) > 0 {
		confidence = float64(filled) / float64(len(def.requiredSlots))
	}

	reply := "Thanks, I have everything I need."
	if len(missing) > 0 {
		reply = fmt.Sprintf("I still need: %s.", strings.Join(missing, ", "))
	}

	slots := make(map[string]string, len(extracted)+1)
	for k, v := range extracted {
		slots[k] = v
	}
	slots[slotFillScore] = strconv.FormatFloat(confidence, 'f', 4, 64)

	return &StageResult{
		Reply:      reply,
		Slots:      slots,
		Confidence: confidence,
	}, nil
}

// toolExecHandler turns the filled slots into capability requests. Its
// corroborating signal is the slot-extraction score recorded by the
// slot-filling stage; the gate treats this stage as critical.
type toolExecHandler struct {
	ex *Extractor
}

func (*toolExecHandler) Stage() session.Stage { return session.StageToolExecution }

func (h *toolExecHandler) Tools() []string { return h.ex.DeclaredTools() }

func (h *toolExecHandler) Handle(_ context.Context, sess *session.Session, _ string) (*StageResult, error) {
	def, ok := h.ex.Intent(sess.Slots[slotIntent])
	if !ok {
		return &StageResult{
			Reply:      "I lost track of what you needed.",
			Confidence: 0,
		}, nil
	}

	args := make(map[string]string, len(def.requiredSlots))
	filled := 0
	for _, name := range def.requiredSlots {
		if v, ok := sess.Slots[name]; ok {
			args[name] = v
			filled++
		}
	}

	confidence := 1.0
	if len(def.requiredSlots) > 0 {
		confidence = float64(filled) / float64(len(def.requiredSlots))
	}

	var corroboration *float64
	if raw, ok := sess.Slots[slotFillScore]; ok {
		if score, err := strconv.ParseFloat(raw, 64); err == nil {
			corroboration = &score
		}
	}

	requests := make([]tool.CallRequest, 0, len(def.tools))
	for _, name := range def.tools {
		requests = append(requests, tool.CallRequest{Tool: name, Args: args})
	}

	return &StageResult{
		Reply:         "Working on it.",
		Confidence:    confidence,
		Corroboration: corroboration,
		ToolRequests:  requests,
	}, nil
}

// affirmations and rejections drive the confirmation stage. Rejections
// score low on purpose: a declined confirmation routes to escalation
// where a human can unwind whatever was done.
var (
	affirmations = []string{"yes", "yep", "yeah", "confirm", "confirmed", "correct", "ok", "okay", "sure", "do it", "go ahead"}
	rejections   = []string{"no", "nope", "wrong", "cancel", "stop", "don't"}
)

type confirmationHandler struct{}

func (*confirmationHandler) Stage() session.Stage { return session.StageConfirmation }
func (*confirmationHandler) Tools() []string      { return nil }

func (*confirmationHandler) Handle(_ context.Context, _ *session.Session, input string) (*StageResult, error) {
	lowered := strings.ToLower(input)

	for _, w := range rejections {
		if strings.Contains(lowered, w) {
			return &StageResult{
				Reply:      "Understood, let me get someone to help.",
				Confidence: 0.1,
			}, nil
		}
	}
	for _, w := range affirmations {
		if strings.Contains(lowered, w) {
			return &StageResult{
				Reply:      "All done. Thanks for reaching out!",
				Confidence: 0.95,
			}, nil
		}
	}
	return &StageResult{
		Reply:      "Sorry, was that a yes or a no?",
		Confidence: 0.3,
	}, nil
}

// escalationHandler hands the conversation to a human. It has no gate;
// the transition to the escalated terminal stage always proceeds.
type escalationHandler struct{}

func (*escalationHandler) Stage() session.Stage { return session.StageEscalation }
func (*escalationHandler) Tools() []string      { return nil }

func (*escalationHandler) Handle(_ context.Context, sess *session.Session, _ string) (*StageResult, error) {
	reply := "I'm connecting you with a human agent who can take it from here."
	if intent := sess.Slots[slotIntent]; intent != "" {
		reply = fmt.Sprintf("I'm connecting you with a human agent to finish your %s request.",
			strings.ReplaceAll(intent, "_", " "))
	}
	return &StageResult{
		Reply:      reply,
		Confidence: 1.0,
	}, nil
}

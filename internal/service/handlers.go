package service

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/domain/tool"
)

// StageResult is a stage handler's candidate outcome for one turn. The
// orchestrator applies it to the session only after the gate decides;
// handlers never mutate the session themselves.
type StageResult struct {
	// Reply is the user-facing response for this turn.
	Reply string

	// Slots holds candidate slot writes, applied only on a proceed decision.
	Slots map[string]string

	// Language is the detected language tag, empty when not detected.
	Language string

	// Confidence is the handler's primary score in [0, 1].
	Confidence float64

	// Corroboration is the secondary signal for critical stages; nil when
	// the handler has none to offer.
	Corroboration *float64

	// ToolRequests names the capabilities to invoke before advancing.
	// Every entry must be inside the handler's declared tool set.
	ToolRequests []tool.CallRequest
}

// StageHandler produces a candidate result for one stage of the machine.
type StageHandler interface {
	// Stage returns the stage this handler serves.
	Stage() session.Stage

	// Tools returns the capability names the handler may request. The
	// orchestrator rejects any request outside this set.
	Tools() []string

	// Handle evaluates the utterance against the current session state.
	Handle(ctx context.Context, sess *session.Session, input string) (*StageResult, error)
}

// HandlerSet maps every non-terminal stage to its handler.
type HandlerSet map[session.Stage]StageHandler

// NewHandlerSet builds the six stage handlers around a shared extractor.
func NewHandlerSet(ex *Extractor) HandlerSet {
	handlers := []StageHandler{
		&greetingHandler{},
		&intentHandler{ex: ex},
		&slotHandler{ex: ex},
		&toolExecHandler{ex: ex},
		&confirmationHandler{},
		&escalationHandler{},
	}

	set := make(HandlerSet, len(handlers))
	for _, h := range handlers {
		set[h.Stage()] = h
	}
	return set
}

// Validate checks that every non-terminal stage has a handler.
func (s HandlerSet) Validate() error {
	for _, stage := range []session.Stage{
		session.StageGreeting, session.StageIntentDetection, session.StageSlotFilling,
		session.StageToolExecution, session.StageConfirmation, session.StageEscalation,
	} {
		if _, ok := s[stage]; !ok {
			return fmt.Errorf("no handler for stage %s: %w", stage, domain.ErrValidation)
		}
	}
	return nil
}

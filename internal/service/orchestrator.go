// Package service implements turn orchestration: stage handlers, the
// confidence gate, capability invocation, and session persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	plotel "github.com/parleyhq/parley/internal/adapter/otel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/event"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/domain/tool"
	"github.com/parleyhq/parley/internal/gate"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/port/audit"
	"github.com/parleyhq/parley/internal/port/sessionstore"
)

const escalatingReply = "Let me bring in a teammate who can help with that."

// Orchestrator drives the conversation state machine. Turns for one
// session are serialized in arrival order; distinct sessions proceed
// concurrently.
type Orchestrator struct {
	store      sessionstore.Store
	handlers   HandlerSet
	thresholds *ThresholdService
	invoker    *ToolInvoker
	sink       audit.Sink
	metrics    *plotel.Metrics
	locks      *sessionLocks

	turnDeadline    time.Duration
	conflictRetries int

	now   func() time.Time
	newID func() string
}

// NewOrchestrator wires the turn pipeline. metrics may be nil when
// telemetry is disabled.
func NewOrchestrator(
	store sessionstore.Store,
	handlers HandlerSet,
	thresholds *ThresholdService,
	invoker *ToolInvoker,
	sink audit.Sink,
	metrics *plotel.Metrics,
	cfg *config.Orchestrator,
) (*Orchestrator, error) {
	if err := handlers.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		store:           store,
		handlers:        handlers,
		thresholds:      thresholds,
		invoker:         invoker,
		sink:            sink,
		metrics:         metrics,
		locks:           newSessionLocks(),
		turnDeadline:    cfg.TurnDeadline,
		conflictRetries: cfg.ConflictRetries,
		now:             time.Now,
		newID:           uuid.NewString,
	}, nil
}

// GetSession returns the persisted session or domain.ErrNotFound when the
// ID has never processed a turn.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id: %w", domain.ErrValidation)
	}
	sess, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Version == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return sess, nil
}

// ProcessTurn runs one utterance through the current stage's handler, the
// confidence gate, and any requested capability calls, persists the
// resulting transition, and returns the appended turn.
//
// A turn against a terminal session returns domain.ErrTerminalSession and
// changes nothing. An unknown session ID starts a fresh session at the
// greeting stage.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, input string) (*session.Turn, error) {
	return o.ProcessTurnLang(ctx, sessionID, input, "")
}

// ProcessTurnLang is ProcessTurn with an explicit language tag from the
// caller. A non-empty tag overrides detection for this session.
func (o *Orchestrator) ProcessTurnLang(ctx context.Context, sessionID, input, language string) (*session.Turn, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id: %w", domain.ErrValidation)
	}
	if input == "" {
		return nil, fmt.Errorf("empty input: %w", domain.ErrValidation)
	}

	ctx = logger.WithSessionID(ctx, sessionID)

	release, err := o.locks.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	turnCtx, cancel := context.WithTimeout(ctx, o.turnDeadline)
	defer cancel()

	start := o.now()

	sess, err := o.store.Load(turnCtx, sessionID)
	if err != nil {
		return nil, err
	}
	created := sess.Version == 0

	spanCtx, span := plotel.StartTurnSpan(turnCtx, sessionID, string(sess.CurrentStage))
	defer span.End()

	if session.Terminal(sess.CurrentStage) {
		o.emit(ctx, &event.TurnEvent{
			ID:           o.newID(),
			Type:         event.TypeTurnRejected,
			SessionID:    sessionID,
			StageAtEntry: sess.CurrentStage,
			StageAtExit:  sess.CurrentStage,
			Detail:       "turn on terminal session",
			RequestID:    logger.RequestID(ctx),
			CreatedAt:    o.now(),
		})
		if o.metrics != nil {
			o.count(ctx, o.metrics.TurnsRejected, sess.CurrentStage)
		}
		return nil, fmt.Errorf("session %s is %s: %w",
			sessionID, sess.CurrentStage, domain.ErrTerminalSession)
	}

	turn, slots, detected, detail := o.evaluate(spanCtx, sess, input)
	if language == "" {
		language = detected
	}

	if err := o.persist(ctx, sess, turn, slots, language); err != nil {
		return nil, err
	}

	if created {
		o.emit(ctx, &event.TurnEvent{
			ID:        o.newID(),
			Type:      event.TypeSessionCreated,
			SessionID: sessionID,
			RequestID: logger.RequestID(ctx),
			CreatedAt: o.now(),
		})
	}

	evtType := event.TypeTurnProcessed
	if turn.GateDecision == session.DecisionEscalate {
		evtType = event.TypeTurnEscalated
	}
	o.emit(ctx, &event.TurnEvent{
		ID:           o.newID(),
		Type:         evtType,
		SessionID:    sessionID,
		TurnID:       turn.ID,
		StageAtEntry: turn.StageAtEntry,
		StageAtExit:  turn.StageAtExit,
		Confidence:   turn.Confidence,
		GateDecision: turn.GateDecision,
		ToolCalls:    turn.ToolCalls,
		Detail:       detail,
		RequestID:    logger.RequestID(ctx),
		CreatedAt:    o.now(),
	})

	o.record(ctx, turn, o.now().Sub(start))

	slog.Debug("turn processed",
		"session_id", sessionID,
		"turn_id", turn.ID,
		"stage_at_entry", turn.StageAtEntry,
		"stage_at_exit", turn.StageAtExit,
		"confidence", turn.Confidence,
		"decision", turn.GateDecision,
	)

	return turn, nil
}

// evaluate runs the stage handler, gate, and capability calls for one
// utterance against sess without mutating it. It returns the turn to
// append, the slot and language writes to apply on a proceed decision,
// and a detail line for the audit event when the turn was refused.
func (o *Orchestrator) evaluate(ctx context.Context, sess *session.Session, input string) (*session.Turn, map[string]string, string, string) {
	entry := sess.CurrentStage
	turn := &session.Turn{
		ID:           o.newID(),
		Input:        input,
		StageAtEntry: entry,
		CreatedAt:    o.now(),
	}

	handler := o.handlers[entry]
	result, err := handler.Handle(ctx, sess, input)
	if err != nil {
		// A broken handler must not strand the user; route to a human.
		slog.Error("stage handler failed",
			"session_id", sess.ID, "stage", entry, "error", err)
		turn.GateDecision = session.DecisionEscalate
		turn.Reply = escalatingReply
		turn.StageAtExit = session.StageEscalation
		return turn, nil, "", fmt.Sprintf("stage handler failed: %v", err)
	}

	turn.Confidence = result.Confidence
	turn.Reply = result.Reply

	if undeclared := firstUndeclared(handler.Tools(), result.ToolRequests); undeclared != "" {
		// The whole batch is refused; nothing reaches the runner.
		slog.Warn("refusing capability batch",
			"session_id", sess.ID, "stage", entry, "tool", undeclared,
			"error", domain.ErrUndeclaredTool)
		turn.GateDecision = session.DecisionEscalate
		turn.Reply = escalatingReply
		turn.StageAtExit = session.StageEscalation
		return turn, nil, "", fmt.Sprintf("%v: %s", domain.ErrUndeclaredTool, undeclared)
	}

	decision := gate.Decide(o.thresholds.Current(), entry, result.Confidence, result.Corroboration)

	if decision == session.DecisionProceed && len(result.ToolRequests) > 0 {
		turn.ToolCalls = o.invoker.InvokeAll(ctx, result.ToolRequests)
		for _, call := range turn.ToolCalls {
			if !call.OK() {
				decision = session.DecisionEscalate
				turn.Reply = escalatingReply
				break
			}
		}
	}

	turn.GateDecision = decision
	if decision == session.DecisionProceed {
		next, ok := session.Next(entry)
		if !ok {
			// Unreachable for a validated handler set; fail safe anyway.
			next = session.StageEscalation
		}
		turn.StageAtExit = next
		return turn, result.Slots, result.Language, ""
	}

	// Escalating turns always carry the canned handoff line, never the
	// handler's reply.
	turn.Reply = escalatingReply
	turn.StageAtExit = session.StageEscalation
	if entry == session.StageEscalation {
		// Escalation itself cannot escalate further; it hands off.
		turn.StageAtExit = session.StageEscalated
	}
	return turn, nil, "", ""
}

// persist applies the turn to sess and saves it, retrying on optimistic
// conflicts. Saves run under a non-cancelable context so a turn that did
// work is never lost to a client disconnect.
func (o *Orchestrator) persist(ctx context.Context, sess *session.Session, turn *session.Turn, slots map[string]string, language string) error {
	saveCtx := context.WithoutCancel(ctx)
	entry := turn.StageAtEntry

	for attempt := 0; ; attempt++ {
		apply(sess, turn, slots, language, o.now())

		err := o.store.Save(saveCtx, sess)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}

		if o.metrics != nil {
			o.count(saveCtx, o.metrics.SaveConflicts, entry)
		}
		if attempt >= o.conflictRetries {
			return fmt.Errorf("session %s: save conflict persisted after %d retries: %w",
				sess.ID, o.conflictRetries, domain.ErrFatal)
		}

		reloaded, loadErr := o.store.Load(saveCtx, sess.ID)
		if loadErr != nil {
			return loadErr
		}
		if last := reloaded.LastTurn(); last != nil && last.ID == turn.ID {
			// The write landed despite the reported conflict.
			*sess = *reloaded
			return nil
		}
		if reloaded.CurrentStage != entry {
			// Someone moved the session under us; the evaluated transition
			// no longer applies and must not be replayed.
			return fmt.Errorf("session %s advanced concurrently: %w", sess.ID, domain.ErrConflict)
		}
		*sess = *reloaded
	}
}

// apply mutates sess with the completed turn. Slot and language writes
// only happen on a proceed decision.
func apply(sess *session.Session, turn *session.Turn, slots map[string]string, language string, now time.Time) {
	sess.Turns = append(sess.Turns, *turn)
	sess.CurrentStage = turn.StageAtExit
	sess.LastUpdated = now
	if turn.GateDecision != session.DecisionProceed {
		return
	}
	for k, v := range slots {
		sess.Slots[k] = v
	}
	if language != "" {
		sess.Language = language
	}
}

// emit delivers an audit event without letting sink trouble or a caller
// disconnect touch the turn outcome.
func (o *Orchestrator) emit(ctx context.Context, evt *event.TurnEvent) {
	if o.sink == nil {
		return
	}
	o.sink.Emit(context.WithoutCancel(ctx), evt)
}

func (o *Orchestrator) record(ctx context.Context, turn *session.Turn, elapsed time.Duration) {
	m := o.metrics
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", string(turn.StageAtEntry)))
	m.TurnsProcessed.Add(ctx, 1, attrs)
	if turn.GateDecision == session.DecisionEscalate {
		m.TurnsEscalated.Add(ctx, 1, attrs)
	}
	m.TurnDuration.Record(ctx, elapsed.Seconds(), attrs)
	for _, call := range turn.ToolCalls {
		callAttrs := metric.WithAttributes(
			attribute.String("tool", call.Tool),
			attribute.String("outcome", string(call.Outcome)),
		)
		m.ToolCalls.Add(ctx, 1, callAttrs)
		m.ToolDuration.Record(ctx, float64(call.DurationMS)/1000, callAttrs)
	}
}

func (o *Orchestrator) count(ctx context.Context, counter metric.Int64Counter, stage session.Stage) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", string(stage))))
}

// firstUndeclared returns the first requested tool outside the declared
// set, or "" when the batch is clean.
func firstUndeclared(declared []string, reqs []tool.CallRequest) string {
	if len(reqs) == 0 {
		return ""
	}
	allowed := make(map[string]bool, len(declared))
	for _, name := range declared {
		allowed[name] = true
	}
	for _, req := range reqs {
		if !allowed[req.Tool] {
			return req.Tool
		}
	}
	return ""
}

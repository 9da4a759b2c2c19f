//go:build load

// Package load contains load tests that are excluded from regular CI runs.
// Run with: go test -tags load -count=1 -timeout 60s ./tests/load/
package load

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/parleyhq/parley/internal/adapter/memstore"
	_ "github.com/parleyhq/parley/internal/adapter/simtool"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/port/toolrunner"
	"github.com/parleyhq/parley/internal/resilience"
	"github.com/parleyhq/parley/internal/service"
)

func newLoadOrchestrator(t *testing.T) (*service.Orchestrator, *memstore.Store) {
	t.Helper()

	cfg := config.Defaults()

	registry := toolrunner.NewRegistry()
	for _, c := range cfg.Capabilities {
		capFn, err := toolrunner.NewCapability(c.Adapter, c.Config)
		if err != nil {
			t.Fatalf("capability %s: %v", c.Name, err)
		}
		registry.Register(c.Name, capFn)
	}

	extractor, err := service.NewExtractor(cfg.Intents, cfg.Slots)
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	thresholds, err := service.NewThresholdService(&cfg.Orchestrator)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	breakers := resilience.NewSet(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	invoker := service.NewToolInvoker(registry, breakers, nil, &cfg.Tools)

	store := memstore.New()
	orch, err := service.NewOrchestrator(
		store,
		service.NewHandlerSet(extractor),
		thresholds,
		invoker,
		nil,
		nil,
		&cfg.Orchestrator,
	)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return orch, store
}

// TestConcurrentConversations drives full payment conversations on many
// sessions at once. Every session must reach the completed stage with
// exactly one turn per step and a version matching its turn count.
func TestConcurrentConversations(t *testing.T) {
	orch, _ := newLoadOrchestrator(t)

	steps := []string{
		"hello",
		"I want to pay, process my payment",
		"account 123456 for $99",
		"go ahead",
		"yes",
	}

	const sessions = 50

	var failures atomic.Int64
	var wg sync.WaitGroup
	wg.Add(sessions)

	for i := range sessions {
		go func() {
			defer wg.Done()
			sessionID := fmt.Sprintf("load-%d", i)
			for _, input := range steps {
				if _, err := orch.ProcessTurn(context.Background(), sessionID, input); err != nil {
					t.Errorf("session %s input %q: %v", sessionID, input, err)
					failures.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()

	if failures.Load() > 0 {
		t.Fatalf("%d sessions failed", failures.Load())
	}

	for i := range sessions {
		sess, err := orch.GetSession(context.Background(), fmt.Sprintf("load-%d", i))
		if err != nil {
			t.Fatalf("load session %d: %v", i, err)
		}
		if sess.CurrentStage != "completed" {
			t.Errorf("session %d: expected completed, got %s", i, sess.CurrentStage)
		}
		if len(sess.Turns) != len(steps) {
			t.Errorf("session %d: expected %d turns, got %d", i, len(steps), len(sess.Turns))
		}
		if sess.Version != int64(len(sess.Turns)) {
			t.Errorf("session %d: version %d does not match %d turns", i, sess.Version, len(sess.Turns))
		}
	}
}

// TestContendedSession hammers a single session with concurrent turns and
// verifies the serialized outcome: no lost turns, monotonic versioning.
func TestContendedSession(t *testing.T) {
	orch, _ := newLoadOrchestrator(t)

	const turns = 40

	var applied, rejected atomic.Int64
	var wg sync.WaitGroup
	wg.Add(turns)

	for range turns {
		go func() {
			defer wg.Done()
			_, err := orch.ProcessTurn(context.Background(), "contended", "hello")
			if err != nil {
				rejected.Add(1)
				return
			}
			applied.Add(1)
		}()
	}
	wg.Wait()

	sess, err := orch.GetSession(context.Background(), "contended")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if int64(len(sess.Turns)) != applied.Load() {
		t.Fatalf("expected %d turns, got %d", applied.Load(), len(sess.Turns))
	}
	if sess.Version != int64(len(sess.Turns)) {
		t.Fatalf("version %d does not match %d turns", sess.Version, len(sess.Turns))
	}
	if applied.Load()+rejected.Load() != turns {
		t.Fatalf("accounting mismatch: %d applied + %d rejected != %d", applied.Load(), rejected.Load(), turns)
	}
}

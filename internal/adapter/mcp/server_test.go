package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	plmcp "github.com/parleyhq/parley/internal/adapter/mcp"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/gate"
)

// --- Mocks ---

type mockSessionReader struct {
	sessions map[string]*session.Session
}

func (m *mockSessionReader) GetSession(_ context.Context, id string) (*session.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

type mockTurnProcessor struct {
	turn *session.Turn
	err  error
}

func (m *mockTurnProcessor) ProcessTurn(_ context.Context, _, _ string) (*session.Turn, error) {
	return m.turn, m.err
}

type mockThresholdReader struct {
	th *gate.Thresholds
}

func (m *mockThresholdReader) Current() *gate.Thresholds { return m.th }

// --- Tests ---

func TestNewServer(t *testing.T) {
	cfg := plmcp.ServerConfig{
		Addr:    ":3001",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := plmcp.NewServer(cfg, plmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestServerStartStop(t *testing.T) {
	cfg := plmcp.ServerConfig{
		Addr:    ":0",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := plmcp.NewServer(cfg, plmcp.ServerDeps{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, plmcp.ServerDeps{})

	tools := s.MCPServer().ListTools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	expectedTools := map[string]bool{
		"get_session":    false,
		"process_turn":   false,
		"get_thresholds": false,
	}
	for name := range tools {
		if _, ok := expectedTools[name]; ok {
			expectedTools[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleGetSession(t *testing.T) {
	now := time.Now().UTC()
	deps := plmcp.ServerDeps{
		Sessions: &mockSessionReader{
			sessions: map[string]*session.Session{
				"s1": {
					ID:           "s1",
					CurrentStage: session.StageSlotFilling,
					Slots:        map[string]string{"intent": "check_balance"},
					Version:      2,
					CreatedAt:    now,
					LastUpdated:  now,
				},
			},
		},
	}
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	getTool, ok := tools["get_session"]
	if !ok {
		t.Fatal("get_session tool not found")
	}

	result, err := getTool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "get_session",
			Arguments: map[string]any{"session_id": "s1"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(text.Text), &sess); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if sess.ID != "s1" || sess.CurrentStage != session.StageSlotFilling {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestHandleGetSessionMissingArgument(t *testing.T) {
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, plmcp.ServerDeps{
		Sessions: &mockSessionReader{},
	})

	tools := s.MCPServer().ListTools()
	result, err := tools["get_session"].Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "get_session"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without session_id")
	}
}

func TestHandleProcessTurn(t *testing.T) {
	deps := plmcp.ServerDeps{
		Turns: &mockTurnProcessor{
			turn: &session.Turn{
				ID:           "t1",
				Input:        "hello",
				StageAtEntry: session.StageGreeting,
				StageAtExit:  session.StageIntentDetection,
				Confidence:   1.0,
				GateDecision: session.DecisionProceed,
			},
		},
	}
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	result, err := tools["process_turn"].Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "process_turn",
			Arguments: map[string]any{"session_id": "s1", "input": "hello"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text := result.Content[0].(mcplib.TextContent)
	var turn session.Turn
	if err := json.Unmarshal([]byte(text.Text), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.StageAtExit != session.StageIntentDetection {
		t.Errorf("stage_at_exit: got %s", turn.StageAtExit)
	}
}

func TestHandleProcessTurnError(t *testing.T) {
	deps := plmcp.ServerDeps{
		Turns: &mockTurnProcessor{err: errors.New("store unavailable")},
	}
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	result, err := tools["process_turn"].Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      "process_turn",
			Arguments: map[string]any{"session_id": "s1", "input": "hello"},
		},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result from failing processor")
	}
}

func TestHandleGetThresholds(t *testing.T) {
	deps := plmcp.ServerDeps{
		Thresholds: &mockThresholdReader{
			th: &gate.Thresholds{
				Stages: map[session.Stage]float64{session.StageIntentDetection: 0.85},
			},
		},
	}
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	tools := s.MCPServer().ListTools()
	result, err := tools["get_thresholds"].Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "get_thresholds"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text := result.Content[0].(mcplib.TextContent)
	var th gate.Thresholds
	if err := json.Unmarshal([]byte(text.Text), &th); err != nil {
		t.Fatal(err)
	}
	if th.Stages[session.StageIntentDetection] != 0.85 {
		t.Errorf("thresholds: %+v", th)
	}
}

func TestToolsWithoutDeps(t *testing.T) {
	s := plmcp.NewServer(plmcp.ServerConfig{Name: "test", Version: "0.1.0"}, plmcp.ServerDeps{})

	for name, tool := range s.MCPServer().ListTools() {
		result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
			Params: mcplib.CallToolParams{
				Name:      name,
				Arguments: map[string]any{"session_id": "s1", "input": "x"},
			},
		})
		if err != nil {
			t.Fatalf("%s: handler error: %v", name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected error result without deps", name)
		}
	}
}

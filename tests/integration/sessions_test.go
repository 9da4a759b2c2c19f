//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func postTurn(t *testing.T, sessionID, input string) (*http.Response, map[string]any) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"input": input})
	resp, err := http.Post(
		testServer.URL+"/api/v1/sessions/"+sessionID+"/turns",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatalf("post turn: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode turn response: %v", err)
	}
	return resp, decoded
}

func TestConversationLifecycle(t *testing.T) {
	cleanDB(testPool)

	const sessionID = "it-payment-1"

	steps := []struct {
		input     string
		wantStage string
	}{
		{"hello", "intent_detection"},
		{"I want to pay, process my payment", "slot_filling"},
		{"account 123456 for $99", "tool_execution"},
		{"go ahead", "confirmation"},
		{"yes", "completed"},
	}

	for _, step := range steps {
		resp, body := postTurn(t, sessionID, step.input)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("input %q: expected 200, got %d", step.input, resp.StatusCode)
		}
		turn, ok := body["turn"].(map[string]any)
		if !ok {
			t.Fatalf("input %q: missing turn in response", step.input)
		}
		if turn["stage_at_exit"] != step.wantStage {
			t.Fatalf("input %q: expected stage %q, got %v", step.input, step.wantStage, turn["stage_at_exit"])
		}
	}

	// The persisted session reflects the whole conversation.
	resp, err := http.Get(testServer.URL + "/api/v1/sessions/" + sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session: expected 200, got %d", resp.StatusCode)
	}

	var sess struct {
		CurrentStage string            `json:"current_stage"`
		Turns        []map[string]any  `json:"turns"`
		Slots        map[string]string `json:"slots"`
		Version      int64             `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.CurrentStage != "completed" {
		t.Fatalf("expected stage completed, got %q", sess.CurrentStage)
	}
	if len(sess.Turns) != len(steps) {
		t.Fatalf("expected %d turns, got %d", len(steps), len(sess.Turns))
	}
	if sess.Version != int64(len(steps)) {
		t.Fatalf("expected version %d, got %d", len(steps), sess.Version)
	}
	if sess.Slots["account_id"] != "123456" {
		t.Fatalf("expected account_id slot 123456, got %q", sess.Slots["account_id"])
	}

	// A completed session accepts no further turns.
	resp2, _ := postTurn(t, sessionID, "one more thing")
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on terminal session, got %d", resp2.StatusCode)
	}
}

func TestAuditTrailPersisted(t *testing.T) {
	cleanDB(testPool)

	const sessionID = "it-audit-1"

	resp, _ := postTurn(t, sessionID, "hello")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(testServer.URL + "/api/v1/sessions/" + sessionID + "/events")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()

	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("get events: expected 200, got %d", resp2.StatusCode)
	}

	var events []struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}

	var created, processed bool
	for _, ev := range events {
		if ev.SessionID != sessionID {
			t.Fatalf("event for wrong session: %q", ev.SessionID)
		}
		switch ev.Type {
		case "session.created":
			created = true
		case "turn.processed":
			processed = true
		}
	}
	if !created || !processed {
		t.Fatalf("expected session.created and turn.processed events, got %+v", events)
	}
}

func TestSessionNotFound(t *testing.T) {
	resp, err := http.Get(testServer.URL + "/api/v1/sessions/never-seen")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

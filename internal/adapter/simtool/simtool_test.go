package simtool

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/port/toolrunner"
)

func TestSimulatedCapability(t *testing.T) {
	cap, err := toolrunner.NewCapability("simulated", map[string]string{
		"response": `{"status":"active"}`,
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := cap(context.Background(), map[string]string{"account_id": "123456"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"status":"active"}` {
		t.Errorf("response: got %s", out)
	}
}

func TestSimulatedCapabilityDefaults(t *testing.T) {
	cap, err := toolrunner.NewCapability("simulated", nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := cap(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"ok":true}` {
		t.Errorf("response: got %s", out)
	}
}

func TestSimulatedCapabilityRejectsBadConfig(t *testing.T) {
	if _, err := toolrunner.NewCapability("simulated", map[string]string{"response": "not json"}); err == nil {
		t.Error("expected error for invalid response JSON")
	}
	if _, err := toolrunner.NewCapability("simulated", map[string]string{"delay": "soon"}); err == nil {
		t.Error("expected error for invalid delay")
	}
}

func TestSimulatedCapabilityDelayHonorsContext(t *testing.T) {
	cap, err := toolrunner.NewCapability("simulated", map[string]string{"delay": "1s"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := cap(ctx, nil); err == nil {
		t.Error("expected context error before the delay elapses")
	}
}

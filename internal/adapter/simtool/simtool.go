// Package simtool implements a capability that returns a canned JSON
// response. It stands in for real downstream systems in development and
// single-node deployments.
package simtool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/port/toolrunner"
)

const adapterName = "simulated"

func init() {
	toolrunner.RegisterFactory(adapterName, func(config map[string]string) (toolrunner.Capability, error) {
		response := config["response"]
		if response == "" {
			response = `{"ok":true}`
		}
		if !json.Valid([]byte(response)) {
			return nil, fmt.Errorf("simtool: response is not valid JSON")
		}

		var delay time.Duration
		if raw := config["delay"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("simtool: bad delay %q: %w", raw, err)
			}
			delay = d
		}

		payload := json.RawMessage(response)
		return func(ctx context.Context, _ map[string]string) (json.RawMessage, error) {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return payload, nil
		}, nil
	})
}

// Package toolrunner defines the port for external capability invocation.
// Every capability (account lookup, payment processing, notification
// dispatch) is consumed uniformly through this interface; the concrete
// integrations live outside the core.
package toolrunner

import (
	"context"
	"encoding/json"
)

// Runner invokes one named capability. The caller owns the deadline; a
// Runner should return ctx.Err() when the context expires mid-call.
type Runner interface {
	// Invoke executes the named capability and returns its raw result.
	Invoke(ctx context.Context, name string, args map[string]string) (json.RawMessage, error)

	// Has reports whether the capability is available.
	Has(name string) bool
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain/tool"
	"github.com/parleyhq/parley/internal/port/cache"
	"github.com/parleyhq/parley/internal/port/toolrunner"
	"github.com/parleyhq/parley/internal/resilience"
)

// ToolInvoker executes capability requests with a per-call timeout, a
// single backoff retry for timeouts, a circuit breaker per capability, and
// bounded parallelism when a stage requests several tools in one turn.
type ToolInvoker struct {
	runner    toolrunner.Runner
	breakers  *resilience.Set
	cache     cache.Cache // nil disables tool-result caching
	cacheable map[string]bool
	cfg       *config.Tools
}

// NewToolInvoker creates a ToolInvoker. c may be nil when no cache backend
// is configured.
func NewToolInvoker(runner toolrunner.Runner, breakers *resilience.Set, c cache.Cache, cfg *config.Tools) *ToolInvoker {
	cacheable := make(map[string]bool, len(cfg.Cacheable))
	for _, name := range cfg.Cacheable {
		cacheable[name] = true
	}
	return &ToolInvoker{
		runner:    runner,
		breakers:  breakers,
		cache:     c,
		cacheable: cacheable,
		cfg:       cfg,
	}
}

// InvokeAll runs every request concurrently, bounded by tools.max_parallel,
// and returns results in request order. It returns only after every call
// resolves; there are no fire-and-forget calls.
func (inv *ToolInvoker) InvokeAll(ctx context.Context, reqs []tool.CallRequest) []tool.CallResult {
	results := make([]tool.CallResult, len(reqs))
	sem := semaphore.NewWeighted(int64(inv.cfg.MaxParallel))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req tool.CallRequest) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = tool.CallResult{
					Tool:    req.Tool,
					Args:    req.Args,
					Outcome: tool.OutcomeTimeout,
					Reason:  "turn deadline exceeded while queued",
				}
				return
			}
			defer sem.Release(1)
			results[i] = inv.Invoke(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results
}

// Invoke executes one request. Timeouts produce OutcomeTimeout and are
// retried once after a backoff; downstream rejections produce
// OutcomeFailure and are not retried.
func (inv *ToolInvoker) Invoke(ctx context.Context, req tool.CallRequest) tool.CallResult {
	start := time.Now()

	if inv.cache != nil && inv.cacheable[req.Tool] {
		if value, ok := inv.cacheGet(ctx, req); ok {
			return tool.CallResult{
				Tool:       req.Tool,
				Args:       req.Args,
				Outcome:    tool.OutcomeSuccess,
				Value:      value,
				DurationMS: time.Since(start).Milliseconds(),
			}
		}
	}

	result := inv.attempt(ctx, req)

	if result.Outcome == tool.OutcomeTimeout && inv.backoff(ctx) {
		result = inv.attempt(ctx, req)
		result.Retried = true
	}

	result.DurationMS = time.Since(start).Milliseconds()

	if result.Outcome == tool.OutcomeSuccess && inv.cache != nil && inv.cacheable[req.Tool] {
		inv.cacheSet(ctx, req, result.Value)
	}

	return result
}

func (inv *ToolInvoker) attempt(ctx context.Context, req tool.CallRequest) tool.CallResult {
	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.Timeout)
	defer cancel()

	var value json.RawMessage
	err := inv.breakers.For(req.Tool).Execute(func() error {
		var callErr error
		value, callErr = inv.runner.Invoke(callCtx, req.Tool, req.Args)
		return callErr
	})

	result := tool.CallResult{Tool: req.Tool, Args: req.Args}
	switch {
	case err == nil:
		result.Outcome = tool.OutcomeSuccess
		result.Value = value
	case errors.Is(err, context.DeadlineExceeded):
		result.Outcome = tool.OutcomeTimeout
		result.Reason = "call exceeded " + inv.cfg.Timeout.String()
	case errors.Is(err, context.Canceled):
		result.Outcome = tool.OutcomeTimeout
		result.Reason = "turn aborted"
	default:
		result.Outcome = tool.OutcomeFailure
		result.Reason = err.Error()
	}
	return result
}

// backoff waits before the single timeout retry. Returns false when the
// turn's deadline expires first, in which case retrying is pointless.
func (inv *ToolInvoker) backoff(ctx context.Context) bool {
	timer := time.NewTimer(inv.cfg.RetryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (inv *ToolInvoker) cacheGet(ctx context.Context, req tool.CallRequest) (json.RawMessage, bool) {
	data, ok, err := inv.cache.Get(ctx, cacheKey(req))
	if err != nil {
		slog.Debug("tool cache get failed", "tool", req.Tool, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data, true
}

func (inv *ToolInvoker) cacheSet(ctx context.Context, req tool.CallRequest, value json.RawMessage) {
	if err := inv.cache.Set(ctx, cacheKey(req), value, inv.cfg.CacheTTL); err != nil {
		slog.Debug("tool cache set failed", "tool", req.Tool, "error", err)
	}
}

// cacheKey builds a stable key from the tool name and sorted arguments.
func cacheKey(req tool.CallRequest) string {
	keys := make([]string, 0, len(req.Args))
	for k := range req.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("tool:")
	b.WriteString(req.Tool)
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%s", k, req.Args[k])
	}
	return b.String()
}

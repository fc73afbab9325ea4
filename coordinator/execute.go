package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/socialmesh/core"
)

// ExecuteAction fans the action out to every target platform concurrently.
// Each call gets its own timeout; a platform failure becomes an Err entry
// in the result map and never cancels siblings. Cancelling ctx propagates
// to calls still in flight; calls already returned keep their results.
//
// A second concurrent call with the same action ID is rejected with
// ErrDuplicateInFlight. Idempotent actions (like, follow) are retried once
// on failure; content writes never are.
func (c *Coordinator) ExecuteAction(ctx context.Context, action core.CoordinatedAction) (map[string]Result, error) {
	if action.ID == "" {
		return nil, &core.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if !action.Type.Valid() {
		return nil, &core.ValidationError{Field: "type", Reason: "unknown action type"}
	}
	if len(action.TargetPlatforms) == 0 {
		return nil, &core.ValidationError{Field: "target_platforms", Reason: "must name at least one platform"}
	}

	c.inFlightMu.Lock()
	if _, dup := c.inFlight[action.ID]; dup {
		c.inFlightMu.Unlock()
		return nil, core.ErrDuplicateInFlight
	}
	c.inFlight[action.ID] = struct{}{}
	c.inFlightMu.Unlock()

	defer func() {
		c.inFlightMu.Lock()
		delete(c.inFlight, action.ID)
		c.inFlightMu.Unlock()
	}()

	reg := *c.registry.Load()

	type indexed struct {
		platform string
		result   Result
	}
	resultCh := make(chan indexed, len(action.TargetPlatforms))

	for _, platform := range action.TargetPlatforms {
		go func(platform string) {
			resultCh <- indexed{platform: platform, result: c.executeOne(ctx, reg, action, platform)}
		}(platform)
	}

	results := make(map[string]Result, len(action.TargetPlatforms))
	for range action.TargetPlatforms {
		r := <-resultCh
		results[r.platform] = r.result
	}

	c.logger.Info("coordinated action executed",
		"action_id", action.ID, "type", string(action.Type), "platforms", len(results))
	return results, nil
}

func (c *Coordinator) executeOne(ctx context.Context, reg map[string]adapterEntry, action core.CoordinatedAction, platform string) Result {
	start := time.Now()
	result := Result{Platform: platform, Attempts: 1}

	entry, ok := reg[platform]
	if !ok {
		result.Err = &core.ExternalServiceError{Platform: platform, Op: action.Type, Err: errors.New("no adapter registered")}
		result.Duration = time.Since(start)
		c.recordOutcome(platform, action.Type, result)
		return result
	}
	if !entry.adapter.Connected() {
		result.Err = &core.ExternalServiceError{Platform: platform, Op: action.Type, Err: errors.New("adapter not connected")}
		result.Duration = time.Since(start)
		c.recordOutcome(platform, action.Type, result)
		return result
	}
	if !entry.adapter.Capabilities().Has(action.Type) {
		result.Err = &core.CapabilityError{Platform: platform, Op: action.Type}
		result.Duration = time.Since(start)
		c.recordOutcome(platform, action.Type, result)
		return result
	}

	content := c.adaptContent(entry.adapter, action.ContentFor(platform))

	targetID, err := c.call(ctx, entry.adapter, action, content)
	if err != nil && action.Type.Idempotent() && ctx.Err() == nil {
		result.Attempts = 2
		targetID, err = c.call(ctx, entry.adapter, action, content)
	}

	if err != nil {
		result.Err = &core.ExternalServiceError{Platform: platform, Op: action.Type, Err: err}
	} else {
		result.TargetID = targetID
	}
	result.Duration = time.Since(start)
	c.recordOutcome(platform, action.Type, result)
	return result
}

func (c *Coordinator) call(ctx context.Context, adapter core.PlatformAdapter, action core.CoordinatedAction, content string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	switch action.Type {
	case core.ActionPost:
		return adapter.Post(callCtx, content)
	case core.ActionReply:
		return adapter.Reply(callCtx, action.TargetID, content)
	case core.ActionDM:
		return adapter.DM(callCtx, action.TargetID, content)
	case core.ActionLike:
		return "", adapter.Like(callCtx, action.TargetID)
	case core.ActionFollow:
		return "", adapter.Follow(callCtx, action.TargetID)
	default:
		return "", &core.CapabilityError{Platform: adapter.Platform(), Op: action.Type}
	}
}

// adaptContent truncates content to the adapter's declared limit, when it
// declares one, keeping room for an ellipsis. Truncation never splits a
// multi-byte rune.
func (c *Coordinator) adaptContent(adapter core.PlatformAdapter, content string) string {
	limiter, ok := adapter.(ContentLimiter)
	if !ok {
		return content
	}
	limit := limiter.ContentLimit()
	if limit <= 0 || len(content) <= limit {
		return content
	}
	if limit <= 3 {
		return truncateAtRune(content, limit)
	}
	return strings.TrimRight(truncateAtRune(content, limit-3), " ") + "..."
}

// truncateAtRune cuts s to at most n bytes, backing up to the nearest rune
// boundary.
func truncateAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *Coordinator) recordOutcome(platform string, op core.ActionType, result Result) {
	c.stateMu.Lock()
	s, ok := c.state[platform]
	if !ok {
		s = &platformState{}
		c.state[platform] = s
	}
	c.stateMu.Unlock()

	s.executed.Add(1)
	success := result.Err == nil
	if success {
		s.succeeded.Add(1)
		s.consecutiveFailures.Store(0)
	} else {
		s.failed.Add(1)
		s.consecutiveFailures.Add(1)
		c.logger.Error("platform call failed",
			"platform", platform, "op", string(op), "attempts", result.Attempts, "error", result.Err)
	}
	c.metrics.PlatformCall(platform, result.Duration.Seconds(), success)
}

// PlatformStats is a point-in-time execution summary for one platform.
type PlatformStats struct {
	Executed            uint64 `json:"executed"`
	Succeeded           uint64 `json:"succeeded"`
	Failed              uint64 `json:"failed"`
	ConsecutiveFailures int64  `json:"consecutive_failures"`
}

// Stats returns per-platform execution counters.
func (c *Coordinator) Stats() map[string]PlatformStats {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	out := make(map[string]PlatformStats, len(c.state))
	for p, s := range c.state {
		out[p] = PlatformStats{
			Executed:            s.executed.Load(),
			Succeeded:           s.succeeded.Load(),
			Failed:              s.failed.Load(),
			ConsecutiveFailures: s.consecutiveFailures.Load(),
		}
	}
	return out
}

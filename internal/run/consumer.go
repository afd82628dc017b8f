// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package run

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// CoalesceDelay is how long a non-terminal progress update is held before
	// it is applied, so bursty event delivery does not thrash the UI.
	CoalesceDelay = 120 * time.Millisecond

	// pollInterval is the minimum spacing between authoritative status polls
	// when the event feed has degraded while a run is still in flight.
	pollInterval = 2 * time.Second

	// completionNotice is shown when a succeeded run produced no usable text.
	completionNotice = "Run completed."
)

// Phase is the lifecycle phase of the consumer.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStreaming
	PhaseTerminal
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// StatusFetcher is the authoritative run API the consumer falls back to.
type StatusFetcher interface {
	GetRun(ctx context.Context, runID string) (api.Run, error)
	ListArtifacts(ctx context.Context, runID string) ([]api.Artifact, error)
}

// Hooks are the consumer's outputs. All hooks are optional; nil hooks are
// skipped. Unsubscribe tears down the event feed and is invoked exactly once
// per run, on the first terminal transition.
type Hooks struct {
	// OnUpdate delivers the current RunState after a (possibly coalesced)
	// progress change or a terminal transition.
	OnUpdate func(model.RunState)

	// OnReport delivers parsed report sections from a succeeded run.
	OnReport func([]report.Section)

	// OnClear signals that the run is over and the status line should go away.
	OnClear func()

	// Unsubscribe tears down the event feed for the current run.
	Unsubscribe func()
}

// =============================================================================
// CONSUMER
// =============================================================================

// Consumer is the run event state machine: Idle -> Streaming -> Terminal.
// The de-duplication counter, pending timer, and current status live here as
// explicit fields so the machine is testable without a rendering harness.
type Consumer struct {
	fetcher StatusFetcher
	hooks   Hooks
	log     zerolog.Logger

	// afterFunc schedules the coalescing timer; replaced in tests.
	afterFunc func(time.Duration, func()) *time.Timer

	mu           sync.Mutex
	phase        Phase
	runID        string
	lastSeenID   int64
	state        model.RunState
	pendingTimer *time.Timer
	unsubscribed bool
	pollLimiter  *rate.Limiter
}

// NewConsumer creates an idle consumer.
func NewConsumer(fetcher StatusFetcher, hooks Hooks, log zerolog.Logger) *Consumer {
	return &Consumer{
		fetcher:     fetcher,
		hooks:       hooks,
		log:         log,
		afterFunc:   time.AfterFunc,
		pollLimiter: rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

// Begin starts consuming events for a run. Any state left over from a prior
// run is discarded and the de-duplication counter resets to zero.
func (c *Consumer) Begin(runID string) model.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPendingLocked()
	c.phase = PhaseStreaming
	c.runID = runID
	c.lastSeenID = 0
	c.unsubscribed = false
	c.state = *model.NewRunState(runID)
	c.log.Debug().Str("run_id", runID).Msg("run consumer streaming")
	return c.state
}

// Phase returns the current lifecycle phase.
func (c *Consumer) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns a copy of the current RunState.
func (c *Consumer) State() model.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSeenID returns the de-duplication high-water mark.
func (c *Consumer) LastSeenID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeenID
}

// MarkStopping flips the status line to the intermediate stopping state after
// a cancel request. The run stays in Streaming until a terminal status is
// actually observed; cancellation is not assumed to be ordered with the
// terminal event.
func (c *Consumer) MarkStopping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseStreaming {
		return
	}
	c.state.Status = model.RunStopping
	c.state.PrimaryText = "Stopping..."
	c.notifyLocked()
}

// HandleBatch processes one delivered batch of events. Events at or below the
// high-water mark are dropped. A terminal event ends streaming immediately;
// non-terminal progress is coalesced behind a single-slot timer.
func (c *Consumer) HandleBatch(ctx context.Context, events []model.RunEvent) {
	c.mu.Lock()
	if c.phase != PhaseStreaming {
		c.mu.Unlock()
		return
	}

	// Drop against the mark as it stood when the batch arrived, then advance
	// to the batch max. Events within one batch may arrive out of id order;
	// comparing against a moving mark would drop them.
	floor := c.lastSeenID
	fresh := make([]model.RunEvent, 0, len(events))
	for _, ev := range events {
		if ev.ID <= floor {
			continue
		}
		if ev.ID > c.lastSeenID {
			c.lastSeenID = ev.ID
		}
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		c.mu.Unlock()
		return
	}

	// Scan for a terminal status; the first one wins and bypasses coalescing.
	for _, ev := range fresh {
		if status, ok := terminalStatus(ev); ok {
			c.mu.Unlock()
			c.finishTerminal(ctx, status, ev)
			return
		}
	}

	// Non-terminal: derive progress text from the newest event and schedule a
	// coalesced update. A new batch replaces any pending one.
	last := fresh[len(fresh)-1]
	c.state.PrimaryText = derivePrimary(last)
	if secondary := deriveSecondary(last); secondary != "" {
		c.state.SecondaryText = secondary
	}
	c.scheduleUpdateLocked()
	c.mu.Unlock()
}

// HandleChannelError recovers terminal states the feed failed to deliver.
// Polls are throttled; calls inside the minimum interval are no-ops so a
// tight reconnect loop cannot hammer the API.
func (c *Consumer) HandleChannelError(ctx context.Context, cause error) {
	c.mu.Lock()
	if c.phase != PhaseStreaming || c.state.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	if !c.pollLimiter.Allow() {
		c.mu.Unlock()
		return
	}
	runID := c.runID
	c.mu.Unlock()

	c.log.Debug().Str("run_id", runID).Err(cause).Msg("event feed degraded, polling run status")

	rec, err := c.fetcher.GetRun(ctx, runID)
	if err != nil {
		c.log.Warn().Str("run_id", runID).Err(err).Msg("fallback status poll failed")
		return
	}

	status := model.RunStatus(rec.Status)
	if !status.Terminal() {
		return
	}
	c.finishTerminal(ctx, status, model.RunEvent{Message: rec.ErrorMessage})
}

// =============================================================================
// TERMINAL HANDLING
// =============================================================================

// finishTerminal resolves the run. Exactly one terminal transition is honored
// per run; later events and polls for the same run are ignored.
func (c *Consumer) finishTerminal(ctx context.Context, status model.RunStatus, ev model.RunEvent) {
	c.mu.Lock()
	if c.phase != PhaseStreaming {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseTerminal
	c.cancelPendingLocked()
	c.state.Status = status
	runID := c.runID
	c.unsubscribeLocked()
	c.mu.Unlock()

	c.log.Info().Str("run_id", runID).Str("status", string(status)).Msg("run finished")

	switch status {
	case model.RunFailed:
		c.resolveFailed(ctx, runID, ev)
	case model.RunSucceeded:
		c.resolveSucceeded(ctx, runID)
	case model.RunCanceled:
		c.clear()
	}
}

// resolveFailed surfaces the most authoritative error message available: the
// run record's, else the triggering event's text, else a generic notice.
func (c *Consumer) resolveFailed(ctx context.Context, runID string, ev model.RunEvent) {
	message := strings.TrimSpace(ev.Message)

	rec, err := c.fetcher.GetRun(ctx, runID)
	if err == nil && strings.TrimSpace(rec.ErrorMessage) != "" {
		message = strings.TrimSpace(rec.ErrorMessage)
	} else if err != nil {
		c.log.Warn().Str("run_id", runID).Err(err).Msg("failed to fetch run record for error detail")
	}
	if message == "" {
		message = "Run failed."
	}

	c.mu.Lock()
	c.state.Err = message
	c.state.PrimaryText = "Failed"
	c.notifyLocked()
	c.mu.Unlock()
}

// resolveSucceeded pulls the run's artifacts, extracts the primary textual
// output, and hands anything non-trivial to the report parser.
func (c *Consumer) resolveSucceeded(ctx context.Context, runID string) {
	artifacts, err := c.fetcher.ListArtifacts(ctx, runID)
	if err != nil {
		c.log.Warn().Str("run_id", runID).Err(err).Msg("failed to fetch run artifacts")
		c.clear()
		return
	}

	text := primaryArtifactText(artifacts)
	if strings.TrimSpace(text) != "" && text != completionNotice {
		sections := report.Parse(text)
		if len(sections) > 0 && c.hooks.OnReport != nil {
			c.hooks.OnReport(sections)
		}
	}
	c.clear()
}

// primaryArtifactText returns the first artifact body, preferring structured
// markdown over a plain message, with a generic notice when nothing usable
// exists.
func primaryArtifactText(artifacts []api.Artifact) string {
	for _, a := range artifacts {
		if text := a.Text(); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return completionNotice
}

// clear ends the run's status line.
func (c *Consumer) clear() {
	c.mu.Lock()
	c.state = model.RunState{}
	c.mu.Unlock()
	if c.hooks.OnClear != nil {
		c.hooks.OnClear()
	}
}

// =============================================================================
// COALESCING
// =============================================================================

// scheduleUpdateLocked arms the single-slot coalescing timer. A pending timer
// is replaced, so only the newest progress text reaches the UI. Caller holds
// the mutex.
func (c *Consumer) scheduleUpdateLocked() {
	c.cancelPendingLocked()
	c.pendingTimer = c.afterFunc(CoalesceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.phase != PhaseStreaming {
			return
		}
		c.pendingTimer = nil
		c.notifyLocked()
	})
}

// cancelPendingLocked drops any scheduled update. Caller holds the mutex.
func (c *Consumer) cancelPendingLocked() {
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
		c.pendingTimer = nil
	}
}

// notifyLocked delivers the current state. Caller holds the mutex.
func (c *Consumer) notifyLocked() {
	if c.hooks.OnUpdate != nil {
		c.hooks.OnUpdate(c.state)
	}
}

// unsubscribeLocked tears down the event feed exactly once. Caller holds the
// mutex.
func (c *Consumer) unsubscribeLocked() {
	if c.unsubscribed {
		return
	}
	c.unsubscribed = true
	if c.hooks.Unsubscribe != nil {
		c.hooks.Unsubscribe()
	}
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

const (
	startingStagePrefix = "Starting stage: "
	finishedStagePrefix = "Finished stage: "
)

// terminalStatus reports whether the event carries a terminal run status.
func terminalStatus(ev model.RunEvent) (model.RunStatus, bool) {
	status := model.RunStatus(ev.PayloadString("status"))
	if status.Terminal() {
		return status, true
	}
	return "", false
}

// derivePrimary synthesizes the human-readable status line for an event.
func derivePrimary(ev model.RunEvent) string {
	switch {
	case strings.HasPrefix(ev.Message, startingStagePrefix):
		return "Working on " + strings.TrimPrefix(ev.Message, startingStagePrefix)
	case strings.HasPrefix(ev.Message, finishedStagePrefix):
		return "Finished " + strings.TrimPrefix(ev.Message, finishedStagePrefix)
	case ev.Stage != "":
		return ev.Stage
	default:
		return ev.Message
	}
}

// deriveSecondary returns the optional detail line.
func deriveSecondary(ev model.RunEvent) string {
	if step := ev.PayloadString("current_step"); step != "" {
		return step
	}
	return ev.PayloadString("artifact_type")
}

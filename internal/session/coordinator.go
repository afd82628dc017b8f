// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/model"
)

// =============================================================================
// SEND STATES
// =============================================================================

// SendState is the lifecycle of one send attempt.
type SendState int

const (
	SendIdle SendState = iota
	SendPending
	SendCommitted
	SendRolledBack
)

// String returns the state name.
func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "idle"
	case SendPending:
		return "pending"
	case SendCommitted:
		return "committed"
	case SendRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// SendResult is the outcome of a completed send attempt.
type SendResult struct {
	State    SendState
	RunID    string // non-empty when the send started a run
	Replayed bool   // server deduplicated an earlier identical send
	Err      error
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// MessageAPI is the slice of the backend the coordinator talks to.
type MessageAPI interface {
	SendMessage(ctx context.Context, req api.SendRequest) (*api.SendResponse, error)
	ListMessages(ctx context.Context, conversationID, cursor string) (model.Page, error)
}

// Hooks are the coordinator's outputs. Nil hooks are skipped.
type Hooks struct {
	// OnCacheChanged fires after every cache mutation with the new snapshot.
	OnCacheChanged func(model.Snapshot)

	// OnConversationsChanged fires after a committed send, since server-side
	// conversation metadata (preview, updated time) may have moved.
	OnConversationsChanged func()

	// OnRunStarted hands a freshly started run to the event consumer.
	OnRunStarted func(runID string)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns one conversation's message cache and runs the optimistic
// send protocol against it: insert a provisional message, issue the request
// with an idempotency token, then reconcile with the server copy or roll the
// cache back to its pre-submit snapshot.
type Coordinator struct {
	client MessageAPI
	hooks  Hooks
	log    zerolog.Logger

	mu             sync.Mutex
	conversationID string
	cache          model.Snapshot
	draft          string
	pending        int
}

// NewCoordinator creates a coordinator for a conversation.
func NewCoordinator(client MessageAPI, conversationID string, hooks Hooks, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		client:         client,
		hooks:          hooks,
		log:            log,
		conversationID: conversationID,
	}
}

// ConversationID returns the conversation this coordinator serves.
func (c *Coordinator) ConversationID() string {
	return c.conversationID
}

// Cache returns the current snapshot.
func (c *Coordinator) Cache() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}

// Messages returns the cache flattened oldest-first for display.
func (c *Coordinator) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Flatten(c.cache)
}

// PendingSends returns the number of in-flight send attempts.
func (c *Coordinator) PendingSends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// =============================================================================
// DRAFT
// =============================================================================

// Draft returns the preserved input text. A failed send leaves the draft
// intact so the user can retry without retyping.
func (c *Coordinator) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft stores the current input text.
func (c *Coordinator) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// =============================================================================
// HISTORY LOADING
// =============================================================================

// LoadNewest fetches the newest page of history, replacing the cache.
func (c *Coordinator) LoadNewest(ctx context.Context) error {
	page, err := c.client.ListMessages(ctx, c.conversationID, "")
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cache = model.Snapshot{page}
	c.notifyCacheLocked()
	c.mu.Unlock()
	return nil
}

// LoadOlder fetches the next older page, if any. Returns false when there is
// no more history.
func (c *Coordinator) LoadOlder(ctx context.Context) (bool, error) {
	c.mu.Lock()
	cursor := model.NextCursor(c.cache)
	c.mu.Unlock()
	if cursor == nil {
		return false, nil
	}

	page, err := c.client.ListMessages(ctx, c.conversationID, *cursor)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.cache = model.AppendOlderPage(c.cache, page)
	c.notifyCacheLocked()
	c.mu.Unlock()
	return true, nil
}

// =============================================================================
// OPTIMISTIC SEND
// =============================================================================

// SendOptions carry optional routing hints for a send.
type SendOptions struct {
	Provider      string
	Model         string
	ForcePipeline bool
}

// Send runs one optimistic send attempt to completion:
//
//	Idle -> Pending(placeholder) -> Committed | RolledBack
//
// A provisional message appears in the cache immediately; on success it is
// swapped for the server's copy under the server id, on failure the cache is
// restored in full to its pre-submit snapshot. Redelivery of the same server
// message cannot duplicate: reconciliation is id-based.
func (c *Coordinator) Send(ctx context.Context, text string, opts SendOptions) SendResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{State: SendIdle}
	}

	token := uuid.NewString()
	placeholderID := model.LocalIDPrefix + uuid.NewString()

	// Capture the rollback snapshot immediately before insertion. The pure
	// ops never mutate their input, so holding the old value is a full copy
	// for rollback purposes.
	c.mu.Lock()
	preSubmit := c.cache
	provisional := model.NewOptimisticMessage(placeholderID, token, text)
	c.cache = model.Upsert(c.cache, provisional, true)
	c.pending++
	c.notifyCacheLocked()
	c.mu.Unlock()

	c.log.Debug().
		Str("conversation_id", c.conversationID).
		Str("placeholder_id", placeholderID).
		Msg("optimistic send pending")

	resp, err := c.client.SendMessage(ctx, api.SendRequest{
		ConversationID:         c.conversationID,
		MessageText:            text,
		ClientIdempotencyToken: token,
		Provider:               opts.Provider,
		Model:                  opts.Model,
		ForcePipeline:          opts.ForcePipeline,
	})
	if err != nil {
		c.rollback(preSubmit, placeholderID)
		c.log.Warn().
			Str("conversation_id", c.conversationID).
			Err(err).
			Msg("send failed, cache rolled back")
		return SendResult{State: SendRolledBack, Err: err}
	}

	runID := resp.StartedRunID()

	c.mu.Lock()
	c.cache = model.ReplaceID(c.cache, placeholderID, resp.UserMessage)
	if resp.AssistantMessage != nil {
		c.cache = model.Upsert(c.cache, *resp.AssistantMessage, true)
	}
	c.pending--
	c.draft = ""
	c.notifyCacheLocked()
	c.mu.Unlock()

	if c.hooks.OnConversationsChanged != nil {
		c.hooks.OnConversationsChanged()
	}
	if runID != "" && c.hooks.OnRunStarted != nil {
		c.hooks.OnRunStarted(runID)
	}

	return SendResult{State: SendCommitted, RunID: runID, Replayed: resp.IdempotentReplay}
}

// rollback restores the pre-submit snapshot. Restoring in full is the safe
// choice when concurrent completions may have written in between; removal of
// just the placeholder is the fallback when no snapshot exists.
func (c *Coordinator) rollback(preSubmit model.Snapshot, placeholderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if preSubmit != nil {
		c.cache = preSubmit
	} else {
		c.cache = model.Remove(c.cache, placeholderID)
	}
	c.pending--
	c.notifyCacheLocked()
}

// UpsertMessage applies an externally delivered message (for example an
// assistant reply pushed after a run) to the cache.
func (c *Coordinator) UpsertMessage(m model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = model.Upsert(c.cache, m, true)
	c.notifyCacheLocked()
}

// notifyCacheLocked fires the cache hook. Caller holds the mutex.
func (c *Coordinator) notifyCacheLocked() {
	if c.hooks.OnCacheChanged != nil {
		c.hooks.OnCacheChanged(c.cache)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/model"
)

// fakeAPI scripts SendMessage and ListMessages responses.
type fakeAPI struct {
	sendResp  *api.SendResponse
	sendErr   error
	sendCalls []api.SendRequest
	onSend    func(req api.SendRequest)

	pages map[string]model.Page // keyed by cursor, "" = newest
}

func (f *fakeAPI) SendMessage(ctx context.Context, req api.SendRequest) (*api.SendResponse, error) {
	f.sendCalls = append(f.sendCalls, req)
	if f.onSend != nil {
		f.onSend(req)
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResp, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, conversationID, cursor string) (model.Page, error) {
	page, ok := f.pages[cursor]
	if !ok {
		return model.Page{}, errors.New("no such page")
	}
	return page, nil
}

func serverMessage(id, text string, offset int) model.Message {
	return model.Message{
		ID:        id,
		Role:      model.RoleUser,
		Kind:      model.KindChat,
		Text:      text,
		CreatedAt: time.Date(2025, 6, 1, 10, 0, offset, 0, time.UTC),
	}
}

func newTestCoordinator(client MessageAPI, hooks Hooks) *Coordinator {
	return NewCoordinator(client, "conv-1", hooks, zerolog.Nop())
}

// =============================================================================
// SEND COMMIT PATH
// =============================================================================

func TestSend_CommitSwapsPlaceholderForServerCopy(t *testing.T) {
	user := serverMessage("srv-user", "hello", 1)
	assistant := serverMessage("srv-assistant", "hi there", 2)
	assistant.Role = model.RoleAssistant

	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID:   "conv-1",
		UserMessage:      user,
		AssistantMessage: &assistant,
	}}
	c := newTestCoordinator(client, Hooks{})

	res := c.Send(context.Background(), "hello", SendOptions{})
	if res.State != SendCommitted {
		t.Fatalf("expected committed, got %v (%v)", res.State, res.Err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant, got %d messages", len(msgs))
	}
	for _, m := range msgs {
		if m.IsLocal() {
			t.Errorf("placeholder id survived reconciliation: %s", m.ID)
		}
		if m.Optimistic {
			t.Errorf("optimistic flag survived reconciliation: %s", m.ID)
		}
	}
	if msgs[0].ID != "srv-user" || msgs[1].ID != "srv-assistant" {
		t.Errorf("unexpected message order: %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestSend_PlaceholderVisibleWhileInFlight(t *testing.T) {
	var c *Coordinator
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID: "conv-1",
		UserMessage:    serverMessage("srv-1", "hello", 1),
	}}
	client.onSend = func(req api.SendRequest) {
		// Mid-flight: the provisional message must already be in the cache.
		msgs := c.Messages()
		if len(msgs) != 1 {
			t.Fatalf("expected provisional message in cache, got %d", len(msgs))
		}
		if !msgs[0].IsLocal() || !msgs[0].Optimistic {
			t.Errorf("expected optimistic local placeholder, got %+v", msgs[0])
		}
		if req.ClientIdempotencyToken == "" {
			t.Error("expected idempotency token on the wire")
		}
		if msgs[0].ClientToken != req.ClientIdempotencyToken {
			t.Error("placeholder and request must share the idempotency token")
		}
	}
	c = newTestCoordinator(client, Hooks{})

	if res := c.Send(context.Background(), "hello", SendOptions{}); res.State != SendCommitted {
		t.Fatalf("expected committed, got %v", res.State)
	}
}

func TestSend_RunHandoff(t *testing.T) {
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID: "conv-1",
		UserMessage:    serverMessage("srv-1", "write a report", 1),
		PendingAction:  &api.PendingAction{Type: "run_started", RunID: "run-7"},
	}}
	var started []string
	var convInvalidations int
	c := newTestCoordinator(client, Hooks{
		OnRunStarted:           func(runID string) { started = append(started, runID) },
		OnConversationsChanged: func() { convInvalidations += 1 },
	})

	res := c.Send(context.Background(), "write a report", SendOptions{})
	if res.RunID != "run-7" {
		t.Errorf("expected run id in result, got %q", res.RunID)
	}
	if !reflect.DeepEqual(started, []string{"run-7"}) {
		t.Errorf("expected run handoff, got %v", started)
	}
	if convInvalidations != 1 {
		t.Errorf("expected conversation list invalidation, got %d", convInvalidations)
	}
}

func TestSend_IdempotentReplayFlag(t *testing.T) {
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID:   "conv-1",
		UserMessage:      serverMessage("srv-1", "hello", 1),
		IdempotentReplay: true,
	}}
	c := newTestCoordinator(client, Hooks{})

	res := c.Send(context.Background(), "hello", SendOptions{})
	if !res.Replayed {
		t.Error("expected replay flag to propagate")
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("replayed send must not duplicate, got %d messages", got)
	}
}

func TestSend_RedeliveredServerMessageDoesNotDuplicate(t *testing.T) {
	user := serverMessage("srv-1", "hello", 1)
	client := &fakeAPI{sendResp: &api.SendResponse{ConversationID: "conv-1", UserMessage: user}}
	c := newTestCoordinator(client, Hooks{})

	c.Send(context.Background(), "hello", SendOptions{})
	// The same server copy arriving again (retried delivery) replaces by id.
	c.UpsertMessage(user)

	if got := len(c.Messages()); got != 1 {
		t.Errorf("expected 1 message after redelivery, got %d", got)
	}
}

// =============================================================================
// SEND ROLLBACK PATH
// =============================================================================

func TestSend_FailureRestoresPreSubmitSnapshot(t *testing.T) {
	seed := model.Snapshot{{Items: []model.Message{
		serverMessage("m1", "earlier", 1),
		serverMessage("m2", "later", 2),
	}}}

	client := &fakeAPI{sendErr: errors.New("connection reset")}
	c := newTestCoordinator(client, Hooks{})
	c.mu.Lock()
	c.cache = seed
	c.mu.Unlock()

	res := c.Send(context.Background(), "doomed", SendOptions{})
	if res.State != SendRolledBack {
		t.Fatalf("expected rollback, got %v", res.State)
	}
	if res.Err == nil {
		t.Error("expected error in rollback result")
	}
	if !reflect.DeepEqual(c.Cache(), seed) {
		t.Errorf("cache not restored to pre-submit snapshot:\n got %+v\nwant %+v", c.Cache(), seed)
	}
	if c.PendingSends() != 0 {
		t.Errorf("expected no pending sends after rollback, got %d", c.PendingSends())
	}
}

func TestSend_FailurePreservesDraft(t *testing.T) {
	client := &fakeAPI{sendErr: errors.New("timeout")}
	c := newTestCoordinator(client, Hooks{})
	c.SetDraft("my careful prompt")

	c.Send(context.Background(), "my careful prompt", SendOptions{})
	if got := c.Draft(); got != "my careful prompt" {
		t.Errorf("failed send must keep the draft, got %q", got)
	}
}

func TestSend_SuccessClearsDraft(t *testing.T) {
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID: "conv-1",
		UserMessage:    serverMessage("srv-1", "hello", 1),
	}}
	c := newTestCoordinator(client, Hooks{})
	c.SetDraft("hello")

	c.Send(context.Background(), "hello", SendOptions{})
	if got := c.Draft(); got != "" {
		t.Errorf("committed send must clear the draft, got %q", got)
	}
}

func TestSend_EmptyTextIsNoOp(t *testing.T) {
	client := &fakeAPI{}
	c := newTestCoordinator(client, Hooks{})

	res := c.Send(context.Background(), "   \n  ", SendOptions{})
	if res.State != SendIdle {
		t.Errorf("expected idle for blank text, got %v", res.State)
	}
	if len(client.sendCalls) != 0 {
		t.Error("blank text must not reach the API")
	}
}

// =============================================================================
// HISTORY PAGING
// =============================================================================

func TestLoadNewestAndOlder(t *testing.T) {
	olderCursor := "older"
	newest := model.Page{
		Items:      []model.Message{serverMessage("m3", "third", 3), serverMessage("m4", "fourth", 4)},
		NextCursor: &olderCursor,
	}
	older := model.Page{
		Items: []model.Message{serverMessage("m1", "first", 1), serverMessage("m2", "second", 2)},
	}

	client := &fakeAPI{pages: map[string]model.Page{"": newest, "older": older}}
	c := newTestCoordinator(client, Hooks{})

	if err := c.LoadNewest(context.Background()); err != nil {
		t.Fatalf("LoadNewest failed: %v", err)
	}
	more, err := c.LoadOlder(context.Background())
	if err != nil || !more {
		t.Fatalf("LoadOlder failed: more=%v err=%v", more, err)
	}

	msgs := c.Messages()
	want := []string{"m1", "m2", "m3", "m4"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, msgs[i].ID)
		}
	}

	// Oldest page had no cursor: no more history.
	more, err = c.LoadOlder(context.Background())
	if err != nil {
		t.Fatalf("LoadOlder failed: %v", err)
	}
	if more {
		t.Error("expected end of history")
	}
}

func TestSend_CacheHookFires(t *testing.T) {
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID: "conv-1",
		UserMessage:    serverMessage("srv-1", "hello", 1),
	}}
	var notifications int
	c := newTestCoordinator(client, Hooks{
		OnCacheChanged: func(model.Snapshot) { notifications += 1 },
	})

	c.Send(context.Background(), "hello", SendOptions{})
	// Once for the provisional insert, once for reconciliation.
	if notifications != 2 {
		t.Errorf("expected 2 cache notifications, got %d", notifications)
	}
}

func TestSend_SendsTrimmedText(t *testing.T) {
	client := &fakeAPI{sendResp: &api.SendResponse{
		ConversationID: "conv-1",
		UserMessage:    serverMessage("srv-1", "hello", 1),
	}}
	c := newTestCoordinator(client, Hooks{})

	c.Send(context.Background(), "  hello  ", SendOptions{})
	if len(client.sendCalls) != 1 {
		t.Fatal("expected one send")
	}
	if got := client.sendCalls[0].MessageText; got != "hello" || strings.TrimSpace(got) != got {
		t.Errorf("expected trimmed text, got %q", got)
	}
}

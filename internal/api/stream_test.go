// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/scribe-tui/internal/model"
)

func sseHandler(t *testing.T, events []string, done bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprint(w, ev)
			flusher.Flush()
		}
		if done {
			fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
			flusher.Flush()
		}
	})
}

func collectEvents(t *testing.T, events <-chan model.RunEvent, errCh <-chan error) ([]model.RunEvent, error) {
	t.Helper()
	var got []model.RunEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got, <-errCh
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream")
		}
	}
}

func TestStreamRunEvents_DeliversParsedEvents(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t, []string{
		"data: {\"id\": 1, \"stage\": \"plan\", \"message\": \"Starting stage: plan\"}\n\n",
		"data: {\"id\": 2, \"stage\": \"plan\", \"level\": \"warn\", \"message\": \"retrying source\"}\n\n",
		"data: {\"id\": 3, \"stage\": \"plan\", \"message\": \"terminal\", \"payload\": {\"to_status\": \"succeeded\"}}\n\n",
	}, true))

	events, errCh := client.StreamRunEvents(context.Background(), "run-1", 0)
	got, err := collectEvents(t, events, errCh)
	if err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Level != model.LevelInfo {
		t.Errorf("expected default info level, got %s", got[0].Level)
	}
	if got[1].Level != model.LevelWarn {
		t.Errorf("expected warn level, got %s", got[1].Level)
	}
	// to_status collapses to the canonical payload key.
	if got[2].PayloadString("status") != "succeeded" {
		t.Errorf("expected normalized status payload, got %v", got[2].Payload)
	}
}

func TestStreamRunEvents_UsesSSEIDField(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t, []string{
		"id: 7\ndata: {\"stage\": \"fetch\", \"message\": \"working\"}\n\n",
	}, true))

	events, errCh := client.StreamRunEvents(context.Background(), "run-1", 0)
	got, err := collectEvents(t, events, errCh)
	if err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("expected event id 7 from SSE id field, got %+v", got)
	}
}

func TestStreamRunEvents_ResumeSendsLastEventID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Last-Event-ID"); got != "42" {
			t.Errorf("expected Last-Event-ID 42, got %q", got)
		}
		fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
	}))

	events, errCh := client.StreamRunEvents(context.Background(), "run-1", 42)
	if _, err := collectEvents(t, events, errCh); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestStreamRunEvents_ServerCloseWithoutDone(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t, []string{
		"data: {\"id\": 5, \"stage\": \"plan\", \"message\": \"working\"}\n\n",
	}, false))

	events, errCh := client.StreamRunEvents(context.Background(), "run-1", 0)
	got, err := collectEvents(t, events, errCh)
	if len(got) != 1 {
		t.Fatalf("expected 1 event before close, got %d", len(got))
	}
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed, got %v", err)
	}
	var streamErr *StreamError
	if !errors.As(err, &streamErr) || streamErr.LastEventID != 5 {
		t.Errorf("expected last event id 5 preserved for resume, got %v", err)
	}
}

func TestStreamRunEvents_SkipsMalformedEvents(t *testing.T) {
	client, _ := newTestClient(t, sseHandler(t, []string{
		"data: this is not json\n\n",
		"data: {\"id\": 2, \"stage\": \"plan\", \"message\": \"ok\"}\n\n",
	}, true))

	events, errCh := client.StreamRunEvents(context.Background(), "run-1", 0)
	got, err := collectEvents(t, events, errCh)
	if err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only the valid event, got %+v", got)
	}
}

func TestStreamRunEvents_ContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\": 1, \"stage\": \"plan\", \"message\": \"working\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	events, errCh := client.StreamRunEvents(ctx, "run-1", 0)

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first event")
	}
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				err := <-errCh
				if err != nil && !errors.Is(err, context.Canceled) {
					// A cancelled read can also surface as a transport error.
					var streamErr *StreamError
					if !errors.As(err, &streamErr) {
						t.Errorf("unexpected error after cancel: %v", err)
					}
				}
				return
			}
		case <-timeout:
			t.Fatal("stream did not stop after cancel")
		}
	}
}

func TestSSEReader_MultiLineData(t *testing.T) {
	input := "event: log\ndata: line one\ndata: line two\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	eventType, _, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if eventType != "log" {
		t.Errorf("expected event type log, got %q", eventType)
	}
	if string(data) != "line one\nline two" {
		t.Errorf("expected joined data lines, got %q", data)
	}

	if _, _, _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestSSEReader_IgnoresCommentsAndRetry(t *testing.T) {
	input := ": keepalive\nretry: 1000\ndata: {\"id\": 1}\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, _, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != `{"id": 1}` {
		t.Errorf("expected data payload only, got %q", data)
	}
}

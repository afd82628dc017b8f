// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/scribe-tui/internal/model"
)

// Boundary normalization. Identifying fields may arrive either as "id" or as
// a resource-prefixed variant (conversation_id, run_id, message_id), and run
// status has historically shipped under both "status" and "to_status" — an
// unresolved upstream schema drift, tolerated here and nowhere else. The core
// only ever sees the canonical shape.

// actionSentinel is the legacy encoding for structured actions: a plain text
// string carrying a JSON body behind a magic prefix. The boundary decodes it
// into the action message kind so nothing downstream parses prefixes.
const actionSentinel = "@@action:"

// =============================================================================
// WIRE TYPES
// =============================================================================

type wireMessage struct {
	ID          string         `json:"id"`
	MessageID   string         `json:"message_id"`
	Role        string         `json:"role"`
	Kind        string         `json:"kind"`
	Text        string         `json:"text"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	ClientToken string         `json:"client_token"`
}

type wirePage struct {
	Items      []wireMessage `json:"items"`
	Messages   []wireMessage `json:"messages"`
	NextCursor *string       `json:"next_cursor"`
}

type wireConversation struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type wireRun struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	ToStatus     string `json:"to_status"`
	ErrorMessage string `json:"error_message"`
}

type wireArtifact struct {
	ID         string         `json:"id"`
	ArtifactID string         `json:"artifact_id"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata"`
}

type wirePendingAction struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	RunID   string         `json:"run_id"`
	Payload map[string]any `json:"payload"`
}

type wireSendResponse struct {
	ID               string             `json:"id"`
	ConversationID   string             `json:"conversation_id"`
	UserMessage      *wireMessage       `json:"user_message"`
	AssistantMessage *wireMessage       `json:"assistant_message"`
	PendingAction    *wirePendingAction `json:"pending_action"`
	IdempotentReplay bool               `json:"idempotent_replay"`
}

type wireEvent struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
}

// =============================================================================
// NORMALIZERS
// =============================================================================

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (w wireMessage) normalize() model.Message {
	m := model.Message{
		ID:          firstNonEmpty(w.ID, w.MessageID),
		Role:        model.Role(w.Role),
		Kind:        model.Kind(w.Kind),
		Text:        w.Text,
		Payload:     w.Payload,
		CreatedAt:   w.CreatedAt,
		ClientToken: w.ClientToken,
	}
	if m.Kind == "" {
		m.Kind = model.KindChat
	}

	// Legacy action encoding: decode the sentinel-prefixed body into a proper
	// tagged kind. Undecodable bodies stay visible as chat text.
	if m.Kind == model.KindChat && strings.HasPrefix(m.Text, actionSentinel) {
		body := strings.TrimPrefix(m.Text, actionSentinel)
		var payload map[string]any
		if err := json.Unmarshal([]byte(body), &payload); err == nil {
			m.Kind = model.KindAction
			m.Payload = payload
			m.Text = ""
		}
	}
	return m
}

func (w wirePage) normalize() model.Page {
	raw := w.Items
	if len(raw) == 0 {
		raw = w.Messages
	}
	items := make([]model.Message, 0, len(raw))
	for _, wm := range raw {
		items = append(items, wm.normalize())
	}
	// One canonical order regardless of what the server sent.
	items = model.Merge(nil, items)
	return model.Page{Items: items, NextCursor: w.NextCursor}
}

func (w wireConversation) normalize() model.Conversation {
	return model.Conversation{
		ID:        firstNonEmpty(w.ID, w.ConversationID),
		Title:     w.Title,
		Preview:   w.Preview,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func (w wireRun) normalize() Run {
	return Run{
		ID:           firstNonEmpty(w.ID, w.RunID),
		Status:       firstNonEmpty(w.Status, w.ToStatus),
		ErrorMessage: w.ErrorMessage,
	}
}

func (w wireArtifact) normalize() Artifact {
	return Artifact{
		ID:       firstNonEmpty(w.ID, w.ArtifactID),
		Type:     w.Type,
		Metadata: w.Metadata,
	}
}

func (w wireSendResponse) normalize() *SendResponse {
	out := &SendResponse{
		ConversationID:   firstNonEmpty(w.ConversationID, w.ID),
		IdempotentReplay: w.IdempotentReplay,
	}
	if w.UserMessage != nil {
		out.UserMessage = w.UserMessage.normalize()
	}
	if w.AssistantMessage != nil {
		m := w.AssistantMessage.normalize()
		out.AssistantMessage = &m
	}
	if w.PendingAction != nil {
		out.PendingAction = &PendingAction{
			Type:    w.PendingAction.Type,
			RunID:   firstNonEmpty(w.PendingAction.RunID, w.PendingAction.ID),
			Payload: w.PendingAction.Payload,
		}
	}
	return out
}

func (w wireEvent) normalize() model.RunEvent {
	payload := w.Payload
	if payload != nil {
		// Dual-key status drift: collapse to_status into the canonical key.
		if _, ok := payload["status"]; !ok {
			if v, ok := payload["to_status"]; ok {
				payload["status"] = v
			}
		}
	}
	level := model.Level(w.Level)
	if level == "" {
		level = model.LevelInfo
	}
	return model.RunEvent{
		ID:        w.ID,
		Timestamp: w.Timestamp,
		Level:     level,
		Stage:     w.Stage,
		Message:   w.Message,
		Payload:   payload,
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"github.com/jeranaias/scribe-tui/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SendRequest is the outgoing message payload. The idempotency token lets the
// server recognize a retried request and replay the original outcome instead
// of creating a duplicate message.
type SendRequest struct {
	ConversationID         string `json:"conversation_id"`
	MessageText            string `json:"message_text"`
	ClientIdempotencyToken string `json:"client_idempotency_token"`
	Provider               string `json:"provider,omitempty"`
	Model                  string `json:"model,omitempty"`
	ForcePipeline          bool   `json:"force_pipeline,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PendingAction is a structured action attached to a send response, already
// decoded from the wire encoding.
type PendingAction struct {
	Type    string         `json:"type"`
	RunID   string         `json:"run_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SendResponse is the normalized result of sending a message.
type SendResponse struct {
	ConversationID   string
	UserMessage      model.Message
	AssistantMessage *model.Message
	PendingAction    *PendingAction
	IdempotentReplay bool
}

// actionTypeRunStarted marks a pending action that launched a generation run.
const actionTypeRunStarted = "run_started"

// StartedRunID returns the id of the run this response started, or "" when no
// run was started. Both signal shapes are honored: a pending action of type
// run_started, and an assistant message of kind run_started carrying a run_id
// payload field.
func (r *SendResponse) StartedRunID() string {
	if r == nil {
		return ""
	}
	if r.PendingAction != nil && r.PendingAction.Type == actionTypeRunStarted && r.PendingAction.RunID != "" {
		return r.PendingAction.RunID
	}
	if r.AssistantMessage != nil && r.AssistantMessage.Kind == model.KindRunStarted {
		if id, ok := r.AssistantMessage.Payload["run_id"].(string); ok {
			return id
		}
	}
	return ""
}

// Run is the authoritative run record.
type Run struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Artifact is a named output object attached to a completed run. Metadata may
// carry the primary text under "markdown" or "message".
type Artifact struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the artifact's primary textual output: the metadata "markdown"
// field when present, then "message", else "".
func (a Artifact) Text() string {
	if a.Metadata == nil {
		return ""
	}
	if s, ok := a.Metadata["markdown"].(string); ok && s != "" {
		return s
	}
	if s, ok := a.Metadata["message"].(string); ok && s != "" {
		return s
	}
	return ""
}

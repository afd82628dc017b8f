// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// KIND TYPE
// =============================================================================

// Kind classifies what a message carries. Structured actions are a first-class
// kind with a decoded payload, not a sentinel-prefixed text string.
type Kind string

const (
	KindChat       Kind = "chat"
	KindOffer      Kind = "offer"
	KindAction     Kind = "action"
	KindRunStarted Kind = "run_started"
	KindError      Kind = "error"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// LocalIDPrefix namespaces client-generated placeholder ids so they can never
// collide with server-assigned ids.
const LocalIDPrefix = "local_"

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Text    string         `json:"text"`
	Payload map[string]any `json:"payload,omitempty"`

	// Reconciliation state
	ClientToken string `json:"client_token,omitempty"`
	Optimistic  bool   `json:"optimistic,omitempty"`
}

// NewMessage creates a committed message with the given id.
func NewMessage(id string, role Role, kind Kind, text string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewOptimisticMessage creates a provisional user message awaiting server
// confirmation. The id must be in the local namespace.
func NewOptimisticMessage(localID, clientToken, text string) Message {
	return Message{
		ID:          localID,
		Role:        RoleUser,
		Kind:        KindChat,
		Text:        text,
		CreatedAt:   time.Now(),
		ClientToken: clientToken,
		Optimistic:  true,
	}
}

// IsLocal reports whether the message id belongs to the client-generated
// placeholder namespace.
func (m Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

// Preview returns a single-line preview of the message text, truncated to
// maxLen runes.
func (m Message) Preview(maxLen int) string {
	text := strings.ReplaceAll(m.Text, "\n", " ")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Before reports whether m sorts before other in the canonical
// (CreatedAt, ID) cache order, with the id breaking ties lexicographically.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

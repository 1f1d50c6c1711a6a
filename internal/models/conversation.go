// internal/models/conversation.go
package models

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
}

// SavedConversation is a snapshot of the running conversation kept in the archive.
type SavedConversation struct {
	ID      string              `json:"id"`
	Summary string              `json:"summary"`
	SavedAt time.Time           `json:"saved_at"`
	Entries []ConversationEntry `json:"entries"`
}

// RecordVersion is the newest persisted record layout this build understands.
const RecordVersion = 1

// Record is the persisted document: one profile and its history.
// UpdatedAt moves only when the profile content changes.
type Record struct {
	Version   int                 `json:"version"`
	UpdatedAt time.Time           `json:"updated_at,omitempty"`
	Profile   *HealthProfile      `json:"profile"`
	History   []ConversationEntry `json:"history"`
}

// ExportBundle is a Record plus export metadata. It loads back as a Record.
type ExportBundle struct {
	Version            int                 `json:"version"`
	UpdatedAt          time.Time           `json:"updated_at,omitempty"`
	Profile            *HealthProfile      `json:"profile"`
	History            []ConversationEntry `json:"history"`
	ExportedAt         time.Time           `json:"exported_at"`
	SavedConversations []SavedConversation `json:"saved_conversations,omitempty"`
}

// Package domain defines the persistence models for chats, messages, and
// rolling conversation summaries. These types are mapped with GORM and form
// the core data layer of the tutoring backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Chat represents a tutoring conversation owned by a learner. Each chat has
// a generated title and contains the messages exchanged between the learner
// and the tutor.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the chat owner; indexed for efficient retrieval.
//   - Title: human-readable chat title (auto-generated if not provided).
//   - ThreadID: optional provider-managed thread id, set only when the active
//     provider keeps its own server-side history.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Chat struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_chats"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	ThreadID  string         `json:"thread_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message represents a single turn within a chat, authored either by the
// "user" (the learner) or the "assistant" (the tutor). The log is append-only
// and ordered by (CreatedAt, ID).
//
// A user message is immutable once created, with one exception: after an
// audio-grounded assessment completes, its Content is rewritten with the
// grounded transcription and Analysis is filled with the structured
// assessment the model produced for that utterance.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID: foreign key to the owning chat (indexed).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: full text content of the turn.
//   - Analysis: optional JSON blob holding the structured assessment
//     (only on user turns).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Chat: FK association, ensures cascade delete/update.
type Message struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string         `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"   gorm:"type:text;not null"`
	Analysis  *string        `json:"analysis,omitempty" gorm:"type:text"` // only for user messages
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ChatSummary is the rolling summary of the older segment of a chat: every
// turn older than the sliding window that has already been folded into
// Content. One row per chat.
//
// LastMessageIndex is a watermark: the count of older-segment messages the
// current Content covers. It is monotonically non-decreasing; persistence
// enforces this with a conditional update so a stale writer cannot move the
// watermark backwards (see repo.PutSummary).
//
// Fields:
//   - ChatID: unique foreign key to the summarized chat.
//   - Content: the current rolling summary text.
//   - LastMessageIndex: number of older-segment messages folded into Content.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type ChatSummary struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	ChatID           string    `json:"chat_id"            gorm:"type:char(36);not null;uniqueIndex:ux_summary_chat"`
	Content          string    `json:"content"            gorm:"type:text;not null"`
	LastMessageIndex int       `json:"last_message_index" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Chat is the summarized conversation. The summary is cascade-deleted
	// if the chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatSummary.
func (ChatSummary) TableName() string { return "chat_summaries" }

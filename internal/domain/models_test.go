package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (Chat{}).TableName() != "chats" {
		t.Fatalf("Chat.TableName() = %q; want %q", (Chat{}).TableName(), "chats")
	}
	if (Message{}).TableName() != "messages" {
		t.Fatalf("Message.TableName() = %q; want %q", (Message{}).TableName(), "messages")
	}
	if (ChatSummary{}).TableName() != "chat_summaries" {
		t.Fatalf("ChatSummary.TableName() = %q; want %q", (ChatSummary{}).TableName(), "chat_summaries")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Chat{}, &Message{}, &ChatSummary{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	// Tables exist
	for _, tbl := range []any{&Chat{}, &Message{}, &ChatSummary{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&Chat{}, "idx_user_chats") {
		t.Fatalf("expected index idx_user_chats on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected index idx_chat_msgs on messages")
	}
	if !m.HasIndex(&ChatSummary{}, "ux_summary_chat") {
		t.Fatalf("expected unique index ux_summary_chat on chat_summaries")
	}

	// Seed a chat, two messages, and a summary
	now := time.Now().UTC()

	ch := &Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}

	m1 := &Message{ID: "m1", ChatID: "c1", Role: "user", Content: "hello", CreatedAt: now, UpdatedAt: now}
	m2 := &Message{ID: "m2", ChatID: "c1", Role: "assistant", Content: "world", CreatedAt: now.Add(time.Second), UpdatedAt: now.Add(time.Second)}
	if err := db.Create(m1).Error; err != nil {
		t.Fatalf("insert m1: %v", err)
	}
	if err := db.Create(m2).Error; err != nil {
		t.Fatalf("insert m2: %v", err)
	}

	sum := &ChatSummary{ID: "s1", ChatID: "c1", Content: "summary", LastMessageIndex: 2, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(sum).Error; err != nil {
		t.Fatalf("insert summary: %v", err)
	}

	// Unique watermark row per chat
	dup := &ChatSummary{ID: "s2", ChatID: "c1", Content: "other", LastMessageIndex: 3, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique index violation for second summary on same chat")
	}

	// CASCADE: deleting the chat should delete messages and the summary
	if err := db.Unscoped().Delete(&Chat{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages after chat delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete when chat deleted, got count=%d", cnt)
	}
	if err := db.Model(&ChatSummary{}).Where("chat_id = ?", "c1").Count(&cnt).Error; err != nil {
		t.Fatalf("count summaries after chat delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected summary to cascade-delete when chat deleted, got count=%d", cnt)
	}
}

func TestMessageAnalysis_NullableBlob(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Chat{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	now := time.Now().UTC()
	if err := db.Create(&Chat{ID: "c1", UserID: "u1", Title: "T", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	if err := db.Create(&Message{ID: "m1", ChatID: "c1", Role: "user", Content: "hola", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	var got Message
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if got.Analysis != nil {
		t.Fatalf("expected nil Analysis on fresh message, got %q", *got.Analysis)
	}

	blob := `{"grammarScore":90}`
	if err := db.Model(&Message{}).Where("id = ?", "m1").Update("analysis", blob).Error; err != nil {
		t.Fatalf("update analysis: %v", err)
	}
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("reload message: %v", err)
	}
	if got.Analysis == nil || *got.Analysis != blob {
		t.Fatalf("expected analysis blob to round-trip, got %v", got.Analysis)
	}
}

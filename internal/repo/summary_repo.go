// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the rolling
// ChatSummary model.
//
// Error semantics:
//   - GetSummary returns (nil, nil) when no summary exists yet; callers treat
//     that as watermark 0 with empty content.
//   - PutSummary never moves the watermark backwards: the update is
//     conditional on last_message_index < newIndex, so a writer holding a
//     stale watermark loses the race instead of clobbering fresher work.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// GetSummary fetches the rolling summary for a chat, or (nil, nil) if the
// chat has never been summarized.
func GetSummary(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatSummary, error) {
	var s domain.ChatSummary
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSummary upserts the rolling summary for a chat with an optimistic
// compare-and-swap on the watermark. It reports whether the write was
// applied: false means a concurrent writer already persisted an equal or
// higher watermark, which the caller treats as a benign lost race.
func PutSummary(ctx context.Context, db *gorm.DB, chatID, content string, lastMessageIndex int) (bool, error) {
	now := time.Now().UTC()

	res := db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("chat_id = ? AND last_message_index < ?", chatID, lastMessageIndex).
		Updates(map[string]any{
			"content":            content,
			"last_message_index": lastMessageIndex,
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// No row updated: either no summary exists yet, or the stored watermark
	// is already >= lastMessageIndex.
	var count int64
	if err := db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil // lost the race to a fresher writer
	}

	s := &domain.ChatSummary{
		ID:               uuid.NewString(),
		ChatID:           chatID,
		Content:          content,
		LastMessageIndex: lastMessageIndex,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return true, db.WithContext(ctx).Create(s).Error
}

// Package services – ContextService
//
// This file implements conversation context compaction: the full message log
// of a chat is reduced to a sliding window of recent turns plus a rolling
// summary of everything older. The summary advances behind a persisted
// watermark (last summarized message index), so repeated context builds are
// idempotent and concurrent builders cannot move the watermark backwards.
//
// Summarization is strictly best effort. A failed model call never fails the
// context build: the service falls back to the stale summary when one exists,
// or to a bracketed placeholder when none does, and naive concatenation
// stands in for a failed merge.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/domain"
)

// Compaction defaults. A chat shorter than DefaultRecentWindowSize is sent
// verbatim; the summary advances only when at least
// DefaultSummarizeAfterMessages turns have accumulated past the watermark.
const (
	DefaultRecentWindowSize       = 20
	DefaultSummarizeAfterMessages = 10
)

// ContextMessageRepo is the message persistence contract required by
// ContextService.
type ContextMessageRepo interface {
	// ListMessages returns the chat's messages in stable order; limit <= 0
	// returns the whole log.
	ListMessages(db *gorm.DB, chatID string, limit int) ([]domain.Message, error)
}

// SummaryRepo is the rolling-summary persistence contract required by
// ContextService.
type SummaryRepo interface {
	// GetSummary returns the chat's summary, or (nil, nil) when none exists.
	GetSummary(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatSummary, error)

	// PutSummary upserts the summary behind a monotonic watermark and reports
	// whether the write was applied.
	PutSummary(ctx context.Context, db *gorm.DB, chatID, content string, lastMessageIndex int) (bool, error)
}

// TextGenerator is the slice of the AI session the compactor needs: a plain
// text completion for summarize and merge calls.
type TextGenerator interface {
	GenerateText(ctx context.Context, conv *ai.ConversationContext, message string, opts ai.Options) (*ai.GenerateResult, error)
}

// ContextSettings are the runtime-tunable compaction knobs.
type ContextSettings struct {
	// RecentWindowSize is the number of most recent turns kept verbatim.
	RecentWindowSize int `json:"recentWindowSize"`

	// SummarizeAfterMessages is the minimum number of unsummarized older
	// turns before the summary is advanced.
	SummarizeAfterMessages int `json:"summarizeAfterMessages"`

	// DisableSummarization turns compaction off entirely; the context then
	// carries the full log verbatim.
	DisableSummarization bool `json:"disableSummarization"`

	// SummaryModel optionally pins a (cheap) model for summarize/merge calls.
	SummaryModel string `json:"summaryModel,omitempty"`
}

// ContextSettingsPatch is a partial update; nil fields keep their value.
type ContextSettingsPatch struct {
	RecentWindowSize       *int    `json:"recentWindowSize"`
	SummarizeAfterMessages *int    `json:"summarizeAfterMessages"`
	DisableSummarization   *bool   `json:"disableSummarization"`
	SummaryModel           *string `json:"summaryModel"`
}

// ContextService builds bounded conversation contexts for a chat.
type ContextService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Messages is the message repository.
	Messages ContextMessageRepo
	// Summaries is the rolling-summary repository.
	Summaries SummaryRepo
	// Generator performs the summarize and merge model calls.
	Generator TextGenerator

	mu       sync.RWMutex
	settings ContextSettings
}

// NewContextService constructs a ContextService with default settings.
func NewContextService(db *gorm.DB, messages ContextMessageRepo, summaries SummaryRepo, gen TextGenerator) *ContextService {
	return &ContextService{
		DB:        db,
		Messages:  messages,
		Summaries: summaries,
		Generator: gen,
		settings: ContextSettings{
			RecentWindowSize:       DefaultRecentWindowSize,
			SummarizeAfterMessages: DefaultSummarizeAfterMessages,
		},
	}
}

// Settings returns a copy of the current compaction settings.
func (s *ContextService) Settings() ContextSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies a partial settings update. Window and threshold
// must stay positive.
func (s *ContextService) UpdateSettings(patch ContextSettingsPatch) (ContextSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if patch.RecentWindowSize != nil {
		if *patch.RecentWindowSize <= 0 {
			return s.settings, fmt.Errorf("%w: recentWindowSize must be positive", ErrInvalidSettings)
		}
		next.RecentWindowSize = *patch.RecentWindowSize
	}
	if patch.SummarizeAfterMessages != nil {
		if *patch.SummarizeAfterMessages <= 0 {
			return s.settings, fmt.Errorf("%w: summarizeAfterMessages must be positive", ErrInvalidSettings)
		}
		next.SummarizeAfterMessages = *patch.SummarizeAfterMessages
	}
	if patch.DisableSummarization != nil {
		next.DisableSummarization = *patch.DisableSummarization
	}
	if patch.SummaryModel != nil {
		next.SummaryModel = *patch.SummaryModel
	}

	s.settings = next
	return next, nil
}

// BuildContext reduces the chat's full log to a bounded ConversationContext.
// Short chats, and all chats while summarization is disabled, pass through
// verbatim; longer chats carry the last RecentWindowSize turns plus the
// rolling summary of everything older.
func (s *ContextService) BuildContext(ctx context.Context, chatID string) (*ai.ConversationContext, error) {
	cfg := s.Settings()

	msgs, err := s.Messages.ListMessages(s.DB, chatID, 0)
	if err != nil {
		return nil, err
	}
	total := len(msgs)

	// Disabled summarization means no compaction at all: the whole log goes
	// through verbatim rather than being truncated to the window.
	if cfg.DisableSummarization || total <= cfg.RecentWindowSize {
		return &ai.ConversationContext{
			ChatID:   chatID,
			Messages: toChatMessages(msgs),
		}, nil
	}

	boundary := total - cfg.RecentWindowSize
	recent := msgs[boundary:]

	out := &ai.ConversationContext{
		ChatID:   chatID,
		Messages: toChatMessages(recent),
	}
	out.Summary = s.rollingSummary(ctx, chatID, msgs[:boundary], cfg)

	log.Debug().
		Str("chat_id", chatID).
		Int("total", total).
		Int("window", cfg.RecentWindowSize).
		Int("summary_tokens_est", EstimateTokens(out.Summary)).
		Msg("built conversation context")
	return out, nil
}

// rollingSummary returns the summary text covering older (the messages
// before the window boundary), advancing the persisted watermark when
// enough new turns have accumulated. It never fails: every error path
// degrades to usable text.
func (s *ContextService) rollingSummary(ctx context.Context, chatID string, older []domain.Message, cfg ContextSettings) string {
	boundary := len(older)

	existing, err := s.Summaries.GetSummary(ctx, s.DB, chatID)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("summary lookup failed")
		existing = nil
	}

	covered := 0
	existingContent := ""
	if existing != nil {
		existingContent = existing.Content
		covered = existing.LastMessageIndex
		// A shrunk window can leave the watermark past the boundary; the
		// stored summary then already covers everything older.
		if covered > boundary {
			covered = boundary
		}
	}

	// Below the threshold the summary is simply whatever is stored: empty
	// when nothing has been summarized yet. The placeholder is reserved for
	// an actual summarization failure.
	pending := boundary - covered
	if pending < cfg.SummarizeAfterMessages {
		return existingContent
	}

	batch := older[covered:boundary]
	fresh, err := s.summarize(ctx, batch, cfg)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Int("batch", len(batch)).
			Msg("summarization failed, using fallback")
		if existing != nil {
			return existingContent
		}
		return placeholderSummary(boundary)
	}

	merged := fresh
	if existingContent != "" {
		merged = s.mergeSummaries(ctx, existingContent, fresh, cfg)
	}

	applied, err := s.Summaries.PutSummary(ctx, s.DB, chatID, merged, boundary)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("summary persist failed")
	} else if !applied {
		log.Debug().Str("chat_id", chatID).Int("watermark", boundary).
			Msg("summary write lost race to a fresher writer")
	}
	return merged
}

func (s *ContextService) summarize(ctx context.Context, batch []domain.Message, cfg ContextSettings) (string, error) {
	prompt := ai.SummarizePrompt(ai.TranscriptText(toChatMessages(batch)))
	res, err := s.Generator.GenerateText(ctx, summarizerContext(), prompt, ai.Options{Model: cfg.SummaryModel})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Content)
	if text == "" {
		return "", fmt.Errorf("empty summary")
	}
	return text, nil
}

// mergeSummaries folds a fresh batch summary into the existing one. A failed
// merge degrades to naive concatenation so no covered content is lost.
func (s *ContextService) mergeSummaries(ctx context.Context, existing, fresh string, cfg ContextSettings) string {
	prompt := ai.MergeSummariesPrompt(existing, fresh)
	res, err := s.Generator.GenerateText(ctx, summarizerContext(), prompt, ai.Options{Model: cfg.SummaryModel})
	if err != nil || strings.TrimSpace(res.Content) == "" {
		log.Warn().Err(err).Msg("summary merge failed, concatenating")
		return existing + "\n\n" + fresh
	}
	return strings.TrimSpace(res.Content)
}

func summarizerContext() *ai.ConversationContext {
	return &ai.ConversationContext{SystemPrompt: "You are a precise conversation summarizer."}
}

func placeholderSummary(n int) string {
	return fmt.Sprintf("[Previous conversation with %d messages]", n)
}

// EstimateTokens is the rough chars/4 heuristic used for logging only; no
// routing or truncation decision is based on it.
func EstimateTokens(text string) int {
	return len(text) / 4
}

func toChatMessages(msgs []domain.Message) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

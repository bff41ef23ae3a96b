// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of tutoring exchanges. It validates inputs, checks chat
// ownership, builds the bounded conversation context, performs the unified
// reply+assessment round trip against the active AI provider, and persists
// the user/assistant message pair atomically. Audio-grounded exchanges
// rewrite the stored user turn with the model's transcription so the log
// reflects what was actually said.
//
// Optional enhancement: it also auto-generates a chat title from the first
// user utterance when the chat still has a default/empty title.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include chat/user identifiers and pagination parameters where applicable.

package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// default titles we consider placeholders and eligible for auto-generation
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// Responder is the slice of the AI session the message service needs.
type Responder interface {
	Respond(ctx context.Context, conv *ai.ConversationContext, message string, opts ai.Options) (*ai.UnifiedResponse, error)
}

// ContextBuilder produces the bounded conversation context for a chat.
type ContextBuilder interface {
	BuildContext(ctx context.Context, chatID string) (*ai.ConversationContext, error)
}

// RespondInput carries one learner exchange. Either Text or AudioBase64
// must be set; both may be.
type RespondInput struct {
	UserID string
	ChatID string

	Text string

	AudioBase64        string
	AudioFormat        string
	DraftTranscription string

	MotherLanguage   string
	LearningLanguage string
	Proficiency      string

	// Voice requests a spoken tutor reply when the provider supports it.
	Voice string
}

// RespondResult is the persisted outcome of one exchange.
type RespondResult struct {
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
	Response         *ai.UnifiedResponse
}

// MessageService coordinates tutoring exchanges and message persistence.
type MessageService struct {
	DB        *gorm.DB
	Responder Responder
	Contexts  ContextBuilder

	// Optional guards
	MaxPromptRunes int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int
}

// Respond validates the exchange, verifies chat ownership, performs the
// unified AI round trip, and persists both turns atomically. The model call
// runs outside the transaction so a slow provider never holds a write lock.
func (s *MessageService) Respond(ctx context.Context, in RespondInput) (*RespondResult, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.String("chat.id", in.ChatID),
			attribute.String("user.id", in.UserID),
			attribute.Bool("audio", in.AudioBase64 != ""),
		),
	)
	defer span.End()

	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" && in.AudioBase64 == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(in.Text) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}
	level, err := ai.ParseProficiencyLevel(in.Proficiency)
	if err != nil {
		return nil, ErrInvalidProficiency
	}

	chat, err := repo.GetChat(ctx, s.DB, in.ChatID, in.UserID)
	if err != nil {
		return nil, ErrChatNotFound
	}

	conv, err := s.Contexts.BuildContext(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	conv.ThreadID = chat.ThreadID

	unified, err := s.Responder.Respond(ctx, conv, in.Text, ai.Options{
		MotherLanguage:     in.MotherLanguage,
		LearningLanguage:   in.LearningLanguage,
		Proficiency:        level,
		AudioBase64:        in.AudioBase64,
		AudioFormat:        in.AudioFormat,
		DraftTranscription: in.DraftTranscription,
		Voice:              in.Voice,
	})
	if err != nil {
		return nil, err
	}

	groundedText := s.groundedUtterance(in, unified)
	analysisJSON := marshalAnalysis(&unified.Analysis)

	var userMsg, assistantMsg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		um, err := repo.CreateMessage(tx, in.ChatID, roleUser, groundedText)
		if err != nil {
			return err
		}
		if analysisJSON != nil {
			if err := repo.UpdateMessageAnalysis(tx, um.ID, groundedText, analysisJSON); err != nil {
				return err
			}
			um.Analysis = analysisJSON
		}
		userMsg = um

		am, err := repo.CreateMessage(tx, in.ChatID, roleAssistant, unified.Reply)
		if err != nil {
			return err
		}
		assistantMsg = am

		if s.shouldAutoTitle(chat.Title) {
			if gen := s.generateTitleFromPrompt(groundedText); gen != "" {
				gen = s.clipTitle(gen)
				if uerr := tx.Model(&domain.Chat{}).Where("id = ?", in.ChatID).Update("title", gen).Error; uerr == nil {
					chat.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RespondResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Response:         unified,
	}, nil
}

// groundedUtterance resolves the text stored as the user turn: the model's
// transcription when the exchange was spoken, then the client draft, then
// the typed text.
func (s *MessageService) groundedUtterance(in RespondInput, unified *ai.UnifiedResponse) string {
	if in.AudioBase64 != "" {
		if p := unified.Analysis.Pronunciation; p != nil && p.TranscribedText != "" {
			return p.TranscribedText
		}
		if in.DraftTranscription != "" {
			return in.DraftTranscription
		}
	}
	return in.Text
}

func marshalAnalysis(a *ai.Analysis) *string {
	b, err := json.Marshal(a)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// ListPage returns paginated messages for a chat.
func (s *MessageService) ListPage(ctx context.Context, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Ensure chat exists
	var chatCount int64
	if err := s.DB.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", chatID).Count(&chatCount).Error; err != nil {
		return nil, 0, err
	}
	if chatCount == 0 {
		return nil, 0, ErrChatNotFound
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), chatID, offset, pageSize)
	return items, total, err
}

// shouldAutoTitle reports whether the current title is a placeholder.
func (s *MessageService) shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitleFromPrompt derives a concise title from the first utterance.
func (s *MessageService) generateTitleFromPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.TitleLocaleOrDefault())
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *MessageService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// TitleLocaleOrDefault returns the configured locale for casing or English if unset.
func (s *MessageService) TitleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers (e.g., "a2" in CEFR codes).
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

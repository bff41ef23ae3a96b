// Message HTTP handlers.
//
// This file exposes REST endpoints for tutoring exchanges:
//   - POST /chats/{id}/messages   (one learner turn: reply + assessment)
//   - GET  /chats/{id}/messages   (list paginated messages for a chat)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//   - map service and provider failures onto the error taxonomy in errors.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/services"
	"github.com/tbourn/go-tutor-backend/internal/utils"
)

//
// DTOs
//

// RespondRequest is the JSON payload for one learner exchange. At least one
// of Content or AudioBase64 must be present.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// a maximum rune count, which can be configured in MessageService.
type RespondRequest struct {
	// Content is the typed learner utterance.
	Content string `json:"content" example:"Ayer yo ir al mercado"`

	// AudioBase64 carries a spoken utterance as base64-encoded audio.
	AudioBase64 string `json:"audio_base64,omitempty"`
	// AudioFormat names the audio encoding ("wav", "mp3"). Defaults to "wav".
	AudioFormat string `json:"audio_format,omitempty" example:"wav"`
	// DraftTranscription is an optional client-side transcription of the audio.
	DraftTranscription string `json:"draft_transcription,omitempty"`

	// MotherLanguage is the learner's native language (BCP 47 or name).
	MotherLanguage string `json:"mother_language" example:"en"`
	// LearningLanguage is the language being practiced.
	LearningLanguage string `json:"learning_language" example:"es"`
	// Proficiency is one of novice, beginner, intermediate, advanced.
	Proficiency string `json:"proficiency" example:"intermediate"`

	// Voice requests a spoken tutor reply when the provider supports it.
	Voice string `json:"voice,omitempty" example:"alloy"`
}

// RespondResponse is the JSON envelope for a completed exchange.
type RespondResponse struct {
	// UserMessage is the persisted learner turn (audio exchanges store the
	// model's transcription).
	UserMessage *domain.Message `json:"user_message"`
	// Message is the persisted assistant reply.
	Message *domain.Message `json:"message"`
	// Reply is the tutor's conversational reply text.
	Reply string `json:"reply"`
	// Analysis is the structured assessment of the learner turn.
	Analysis ai.Analysis `json:"analysis"`
}

// ListMessagesResponse contains a page of chat messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampMsgPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampMsgPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxPromptRunes inspects the concrete MessageService for a configured
// prompt-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxPromptRunes(msgSvc MessageService) int {
	const fallback = 4000
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxPromptRunes > 0 {
			return ms.MaxPromptRunes
		}
	}
	return fallback
}

//
// Handlers
//

// Respond godoc
// @ID          respond
// @Summary     Send a learner turn and get reply + assessment
// @Description Appends a learner turn (text and/or audio) to the chat and returns the
// @Description tutor's reply together with a structured language assessment.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID that owns the chat"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"              format(uuid)
// @Param       body       body    handlers.RespondRequest  true  "Learner turn payload"
//
// @Success     200  {object}  handlers.RespondResponse  "Reply and assessment"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse    "Chat not found"
// @Failure     502  {object}  handlers.ErrorResponse    "Provider failure"
// @Failure     503  {object}  handlers.ErrorResponse    "No active provider"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) Respond(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxPromptRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" && req.AudioBase64 == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content or audio required")
		return
	}

	res, err := h.msgSvc.Respond(ctx, services.RespondInput{
		UserID:             userID(c),
		ChatID:             chatID,
		Text:               content,
		AudioBase64:        req.AudioBase64,
		AudioFormat:        req.AudioFormat,
		DraftTranscription: strings.TrimSpace(req.DraftTranscription),
		MotherLanguage:     req.MotherLanguage,
		LearningLanguage:   req.LearningLanguage,
		Proficiency:        req.Proficiency,
		Voice:              req.Voice,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content or audio required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case errors.Is(err, services.ErrInvalidProficiency):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "proficiency must be one of: novice, beginner, intermediate, advanced")
		case errors.Is(err, ai.ErrAudioUnsupported):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "active provider does not accept audio; include a draft transcription or switch provider")
		case errors.Is(err, ai.ErrNotInitialized):
			fail(c, http.StatusServiceUnavailable, ErrCodeNotInitialized, "no active AI provider")
		default:
			fail(c, http.StatusBadGateway, ErrCodeRespondFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, RespondResponse{
		UserMessage: res.UserMessage,
		Message:     res.AssistantMessage,
		Reply:       res.Response.Reply,
		Analysis:    res.Response.Analysis,
	})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a paginated list of messages for the given chat.
// @Tags        Messages
// @Produce     json
//
// @Param       id         path   string  true  "Chat ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")

	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	page, pageSize := clampMsgPagination(c)

	items, total, err := h.msgSvc.ListPage(ctx, chatID, page, pageSize)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

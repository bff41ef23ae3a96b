// AI provider and translation HTTP handlers.
//
// This file exposes REST endpoints for the provider session, rich
// translation, and conversation-context settings:
//   - GET   /ai/providers       (registered providers + active one)
//   - POST  /ai/provider        (switch the active provider)
//   - POST  /translate          (rich word/phrase translation)
//   - GET   /settings/context   (compaction settings)
//   - PATCH /settings/context   (update compaction settings)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

//
// DTOs
//

// ProviderInfo describes one registered AI provider.
type ProviderInfo struct {
	ID        string   `json:"id" example:"openai"`
	Type      string   `json:"type" example:"cloud"`
	Models    []string `json:"models"`
	Available bool     `json:"available"`
	Active    bool     `json:"active"`
}

// ListProvidersResponse wraps the registered providers and the session state.
type ListProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
	Active    string         `json:"active"`
	Model     string         `json:"model,omitempty"`
}

// SwitchProviderRequest selects a provider and optional session tunables.
type SwitchProviderRequest struct {
	Provider string `json:"provider" binding:"required" example:"ollama"`
}

// TranslateRequest is the JSON payload for rich translation.
type TranslateRequest struct {
	// Text is the word or short phrase to translate.
	Text string `json:"text" binding:"required,min=1" example:"empalagoso"`
	// SourceLanguage is the language of Text.
	SourceLanguage string `json:"source_language" example:"es"`
	// TargetLanguage is the language to translate into.
	TargetLanguage string `json:"target_language" example:"en"`
}

//
// Handlers
//

// ListProviders godoc
// @ID          listProviders
// @Summary     List AI providers
// @Description Returns the registered providers, their models and availability,
// @Description and the currently active provider.
// @Tags        AI
// @Produce     json
//
// @Success     200  {object}  handlers.ListProvidersResponse
// @Router      /ai/providers [get]
func (h *Handlers) ListProviders(c *gin.Context) {
	ctx := c.Request.Context()
	active := h.session.ActiveProviderID()

	infos := make([]ProviderInfo, 0, 4)
	for _, p := range h.registry.List() {
		infos = append(infos, ProviderInfo{
			ID:        p.ID(),
			Type:      string(p.Type()),
			Models:    p.Models(),
			Available: p.IsAvailable(ctx),
			Active:    p.ID() == active,
		})
	}

	ok(c, http.StatusOK, ListProvidersResponse{
		Providers: infos,
		Active:    active,
		Model:     h.session.Config().Model,
	})
}

// SwitchProvider godoc
// @ID          switchProvider
// @Summary     Switch the active AI provider
// @Description Activates a registered provider by id. On failure the previous
// @Description provider stays active.
// @Tags        AI
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SwitchProviderRequest  true  "Provider selection"
//
// @Success     200  {object}  handlers.ListProvidersResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown provider"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider initialization failed"
// @Router      /ai/provider [post]
func (h *Handlers) SwitchProvider(c *gin.Context) {
	var req SwitchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Provider) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "provider required")
		return
	}

	if err := h.session.SwitchProvider(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Provider))); err != nil {
		switch {
		case errors.Is(err, ai.ErrProviderNotFound):
			fail(c, http.StatusNotFound, ErrCodeProviderNotFound, err.Error())
		default:
			fail(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		}
		return
	}

	h.ListProviders(c)
}

// Translate godoc
// @ID          translate
// @Summary     Rich translation of a word or phrase
// @Description Translates text between the given languages and returns
// @Description dictionary detail: type, formality, alternatives, and usage examples.
// @Tags        AI
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.TranslateRequest  true  "Translation payload"
//
// @Success     200  {object}  ai.RichTranslation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider failure"
// @Failure     503  {object}  handlers.ErrorResponse  "No active provider"
// @Router      /translate [post]
func (h *Handlers) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	rt, err := h.session.RichTranslate(c.Request.Context(), strings.TrimSpace(req.Text), ai.Options{
		MotherLanguage:   req.TargetLanguage,
		LearningLanguage: req.SourceLanguage,
	})
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrNotInitialized):
			fail(c, http.StatusServiceUnavailable, ErrCodeNotInitialized, "no active AI provider")
		default:
			fail(c, http.StatusBadGateway, ErrCodeTranslateFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, rt)
}

// GetContextSettings godoc
// @ID          getContextSettings
// @Summary     Get conversation compaction settings
// @Tags        Settings
// @Produce     json
//
// @Success     200  {object}  services.ContextSettings
// @Router      /settings/context [get]
func (h *Handlers) GetContextSettings(c *gin.Context) {
	ok(c, http.StatusOK, h.ctxSvc.Settings())
}

// UpdateContextSettings godoc
// @ID          updateContextSettings
// @Summary     Update conversation compaction settings
// @Description Applies a partial update; omitted fields keep their current values.
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       body  body  services.ContextSettingsPatch  true  "Settings patch"
//
// @Success     200  {object}  services.ContextSettings
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid settings"
// @Router      /settings/context [patch]
func (h *Handlers) UpdateContextSettings(c *gin.Context) {
	var patch services.ContextSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	settings, err := h.ctxSvc.UpdateSettings(patch)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	ok(c, http.StatusOK, settings)
}

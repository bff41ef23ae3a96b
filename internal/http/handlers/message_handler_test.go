package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/domain"
	"github.com/tbourn/go-tutor-backend/internal/services"
)

// ---------- helpers ----------

func Test_sanitizeContent(t *testing.T) {
	in := "a\r\nb\rc\n\n\n\nd  "
	want := "a\nb\nc\n\nd"
	if got := sanitizeContent(in); got != want {
		t.Fatalf("sanitizeContent = %q, want %q", got, want)
	}
}

func Test_clampMsgPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-1&page_size=1000", nil)
	p, ps := clampMsgPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	p, ps = clampMsgPagination(c)
	if p != 1 || ps != 20 {
		t.Fatalf("defaults got p=%d ps=%d", p, ps)
	}
}

func Test_discoverMaxPromptRunes(t *testing.T) {
	if got := discoverMaxPromptRunes(stubMsgSvc{}); got != 4000 {
		t.Fatalf("fallback = %d", got)
	}
	ms := &services.MessageService{MaxPromptRunes: 123}
	if got := discoverMaxPromptRunes(ms); got != 123 {
		t.Fatalf("configured = %d", got)
	}
}

// ---------- Respond ----------

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	return w
}

func respondRouter(msgSvc MessageService) *gin.Engine {
	h := newTestHandlers(stubChatSvcChat{}, msgSvc)
	r := gin.New()
	r.POST("/chats/:id/messages", h.Respond)
	r.GET("/chats/:id/messages", h.ListMessages)
	return r
}

func TestRespond_BadChatID_And_BadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := respondRouter(stubMsgSvc{})

	if w := postJSON(t, r, "/chats/not-a-uuid/messages", `{"content":"hola"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}
	if w := postJSON(t, r, "/chats/"+uuid.NewString()+"/messages", "{bad"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}
}

func TestRespond_EmptyTurnRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := respondRouter(stubMsgSvc{})

	w := postJSON(t, r, "/chats/"+uuid.NewString()+"/messages", `{"content":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty turn -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestRespond_Success_MapsResultAndInput(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen services.RespondInput
	svc := stubMsgSvc{
		respond: func(_ context.Context, in services.RespondInput) (*services.RespondResult, error) {
			seen = in
			return &services.RespondResult{
				UserMessage:      &domain.Message{ID: "um", Role: "user", Content: in.Text},
				AssistantMessage: &domain.Message{ID: "am", Role: "assistant", Content: "¡Muy bien!"},
				Response: &ai.UnifiedResponse{
					Reply: "¡Muy bien!",
					Analysis: ai.Analysis{
						GrammarScore:          85,
						GrammarErrors:         []ai.GrammarError{},
						VocabularyScore:       70,
						VocabularySuggestions: []string{},
						RelevanceScore:        90,
						AlternativePhrasings:  []string{},
					},
				},
			}, nil
		},
	}
	r := respondRouter(svc)

	chatID := uuid.NewString()
	body := `{"content":"Ayer yo ir\r\n\n\n\nal mercado","mother_language":"en","learning_language":"es","proficiency":"intermediate","voice":"alloy"}`
	w := postJSON(t, r, "/chats/"+chatID+"/messages", body)
	if w.Code != http.StatusOK {
		t.Fatalf("respond -> %d body=%s", w.Code, w.Body.String())
	}

	// Handler sanitizes before delegating.
	if seen.Text != "Ayer yo ir\n\nal mercado" {
		t.Fatalf("sanitized text = %q", seen.Text)
	}
	if seen.UserID != "u1" || seen.ChatID != chatID {
		t.Fatalf("identity passthrough: %+v", seen)
	}
	if seen.MotherLanguage != "en" || seen.LearningLanguage != "es" || seen.Proficiency != "intermediate" || seen.Voice != "alloy" {
		t.Fatalf("options passthrough: %+v", seen)
	}

	var out RespondResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Reply != "¡Muy bien!" || out.Message == nil || out.Message.ID != "am" || out.UserMessage.ID != "um" {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if out.Analysis.GrammarScore != 85 || out.Analysis.RelevanceScore != 90 {
		t.Fatalf("analysis mapping: %+v", out.Analysis)
	}
}

func TestRespond_AudioOnlyTurnAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen services.RespondInput
	svc := stubMsgSvc{
		respond: func(_ context.Context, in services.RespondInput) (*services.RespondResult, error) {
			seen = in
			return &services.RespondResult{
				Response: &ai.UnifiedResponse{Reply: "ok", Analysis: ai.Analysis{}},
			}, nil
		},
	}
	r := respondRouter(svc)

	body := `{"audio_base64":"UklGRg==","audio_format":"wav","draft_transcription":" hola "}`
	w := postJSON(t, r, "/chats/"+uuid.NewString()+"/messages", body)
	if w.Code != http.StatusOK {
		t.Fatalf("audio-only -> %d body=%s", w.Code, w.Body.String())
	}
	if seen.AudioBase64 != "UklGRg==" || seen.AudioFormat != "wav" {
		t.Fatalf("audio passthrough: %+v", seen)
	}
	if seen.DraftTranscription != "hola" {
		t.Fatalf("draft must be trimmed, got %q", seen.DraftTranscription)
	}
}

func TestRespond_ErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"chat not found", services.ErrChatNotFound, http.StatusNotFound, "not_found"},
		{"too long", services.ErrTooLong, http.StatusBadRequest, "bad_request"},
		{"invalid proficiency", services.ErrInvalidProficiency, http.StatusBadRequest, "bad_request"},
		{"audio unsupported", ai.ErrAudioUnsupported, http.StatusBadRequest, "bad_request"},
		{"not initialized", ai.ErrNotInitialized, http.StatusServiceUnavailable, "not_initialized"},
		{"upstream", context.DeadlineExceeded, http.StatusBadGateway, "respond_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubMsgSvc{
				respond: func(context.Context, services.RespondInput) (*services.RespondResult, error) {
					return nil, tc.err
				},
			}
			r := respondRouter(svc)
			w := postJSON(t, r, "/chats/"+uuid.NewString()+"/messages", `{"content":"hola"}`)
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tc.code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tc.body) {
				t.Fatalf("body %q must carry code %q", w.Body.String(), tc.body)
			}
		})
	}
}

func TestRespond_InvalidProficiencyNamesAcceptedLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubMsgSvc{
		respond: func(context.Context, services.RespondInput) (*services.RespondResult, error) {
			return nil, services.ErrInvalidProficiency
		},
	}
	r := respondRouter(svc)

	w := postJSON(t, r, "/chats/"+uuid.NewString()+"/messages", `{"content":"hola","proficiency":"elementary"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	// The error message must advertise exactly the accepted set.
	if !strings.Contains(w.Body.String(), "novice, beginner, intermediate, advanced") {
		t.Fatalf("body %q must list the accepted levels", w.Body.String())
	}
}

// ---------- ListMessages ----------

func TestListMessages_BadID_NotFound_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// bad UUID
	{
		r := respondRouter(stubMsgSvc{})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chats/nope/messages", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad uuid -> %d", w.Code)
		}
	}

	// chat not found
	{
		svc := stubMsgSvc{
			listPage: func(context.Context, string, int, int) ([]domain.Message, int64, error) {
				return nil, 0, services.ErrChatNotFound
			},
		}
		r := respondRouter(svc)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chats/"+uuid.NewString()+"/messages", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// success with pagination envelope
	{
		svc := stubMsgSvc{
			listPage: func(_ context.Context, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
				return []domain.Message{{ID: "m1", ChatID: chatID, Role: "user", Content: "hola"}}, 3, nil
			},
		}
		r := respondRouter(svc)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chats/"+uuid.NewString()+"/messages?page=1&page_size=1", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
		}
		var out ListMessagesResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if len(out.Messages) != 1 || out.Pagination.Total != 3 || out.Pagination.TotalPages != 3 || !out.Pagination.HasNext {
			t.Fatalf("unexpected envelope: %+v", out)
		}
	}
}

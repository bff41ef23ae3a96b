// Ollama-backed local provider, reached through its OpenAI-compatible
// chat completions endpoint. Local models carry a small static model list
// the session treats as authoritative. No audio in either direction: audio
// exchanges need a draft transcription or fail with ErrAudioUnsupported.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// ollamaModels is the static list of locally supported models. The first
// entry is the reset target when a session carries a model id this list
// does not contain.
var ollamaModels = []string{"llama3.1:8b", "qwen2.5:7b", "mistral:7b"}

// OllamaProvider talks to a local Ollama daemon.
type OllamaProvider struct {
	endpoint string
	client   openai.Client
	httpc    *http.Client
}

func NewOllamaProvider(endpoint string) *OllamaProvider {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &OllamaProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpc:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (p *OllamaProvider) ID() string         { return "ollama" }
func (p *OllamaProvider) Type() ProviderType { return ProviderTypeLocal }

func (p *OllamaProvider) Models() []string {
	out := make([]string, len(ollamaModels))
	copy(out, ollamaModels)
	return out
}

func (p *OllamaProvider) Initialize(ctx context.Context) error {
	// Ollama ignores the key but the client requires one.
	p.client = openai.NewClient(
		option.WithBaseURL(p.endpoint+"/v1"),
		option.WithAPIKey("ollama"),
	)
	return nil
}

// IsAvailable probes the daemon's tags endpoint.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

func (p *OllamaProvider) Generate(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate", start, err, usageOf(res)) }()

	text, err := p.resolveUtterance(message, opts)
	if err != nil {
		return nil, err
	}
	return p.complete(ctx, conv, text, opts)
}

func (p *OllamaProvider) GenerateText(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate_text", start, err, usageOf(res)) }()

	return p.complete(ctx, conv, message, opts)
}

func (p *OllamaProvider) Respond(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *UnifiedResponse, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "respond", start, err, unifiedUsageOf(res)) }()

	audioGrounded := opts.AudioBase64 != ""
	if _, err := p.resolveUtterance(message, opts); err != nil {
		return nil, err
	}

	prompt := RespondPrompt(message, opts, audioGrounded)
	gen, err := p.complete(ctx, conv, prompt, opts)
	if err != nil {
		return nil, err
	}

	out := DecodeUnifiedResponse(gen.Content, audioGrounded, opts.DraftTranscription)
	out.Usage = gen.Usage
	return out, nil
}

func (p *OllamaProvider) RichTranslate(ctx context.Context, text string, opts Options) (res *RichTranslation, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "rich_translate", start, err, nil) }()

	prompt := RichTranslatePrompt(text, opts.LearningLanguage, opts.MotherLanguage)
	gen, err := p.complete(ctx, &ConversationContext{SystemPrompt: "You are a precise bilingual dictionary."}, prompt, opts)
	if err != nil {
		return nil, err
	}
	return DecodeRichTranslation(gen.Content, text), nil
}

func (p *OllamaProvider) resolveUtterance(message string, opts Options) (string, error) {
	if opts.AudioBase64 == "" {
		return message, nil
	}
	if opts.DraftTranscription != "" {
		return opts.DraftTranscription, nil
	}
	return "", fmt.Errorf("ollama: %w", ErrAudioUnsupported)
}

func (p *OllamaProvider) complete(ctx context.Context, conv *ConversationContext, userText string, opts Options) (*GenerateResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: pickModel(opts.Model, ollamaModels[0]),
	}
	applyTunables(&params, opts)

	sys := conv.SystemPrompt
	if sys == "" {
		sys = TutorSystemPrompt(opts.MotherLanguage, opts.LearningLanguage, opts.Proficiency, conv.Summary)
	}
	params.Messages = append(params.Messages, openai.SystemMessage(sys))

	for _, m := range conv.Messages {
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	params.Messages = append(params.Messages, openai.UserMessage(userText))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ollama: empty response")
	}
	return &GenerateResult{
		Content: resp.Choices[0].Message.Content,
		Usage:   usageFromOpenAI(resp),
	}, nil
}

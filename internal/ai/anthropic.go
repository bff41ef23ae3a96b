// Anthropic-backed provider. The Messages API has no audio input, so audio
// exchanges lean on the client's draft transcription: with a draft the
// assessment is grounded on the transcript, without one the call fails with
// ErrAudioUnsupported so the caller can route elsewhere.

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel     = "claude-sonnet-4-5"
	anthropicDefaultTextModel = "claude-haiku-4-5"

	anthropicDefaultMaxTokens = 2048
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey string
	client anthropic.Client
}

func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{apiKey: apiKey}
}

func (p *AnthropicProvider) ID() string         { return "anthropic" }
func (p *AnthropicProvider) Type() ProviderType { return ProviderTypeCloud }

func (p *AnthropicProvider) Models() []string {
	return []string{anthropicDefaultModel, anthropicDefaultTextModel}
}

func (p *AnthropicProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("anthropic: api key is empty")
	}
	p.client = anthropic.NewClient(option.WithAPIKey(p.apiKey))
	return nil
}

func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

func (p *AnthropicProvider) Generate(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate", start, err, usageOf(res)) }()

	text, err := p.resolveUtterance(message, opts)
	if err != nil {
		return nil, err
	}
	return p.complete(ctx, conv, text, opts, anthropicDefaultModel)
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate_text", start, err, usageOf(res)) }()

	return p.complete(ctx, conv, message, opts, anthropicDefaultTextModel)
}

func (p *AnthropicProvider) Respond(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *UnifiedResponse, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "respond", start, err, unifiedUsageOf(res)) }()

	audioGrounded := opts.AudioBase64 != ""
	if _, err := p.resolveUtterance(message, opts); err != nil {
		return nil, err
	}

	prompt := RespondPrompt(message, opts, audioGrounded)
	gen, err := p.complete(ctx, conv, prompt, opts, anthropicDefaultModel)
	if err != nil {
		return nil, err
	}

	out := DecodeUnifiedResponse(gen.Content, audioGrounded, opts.DraftTranscription)
	out.Usage = gen.Usage
	return out, nil
}

func (p *AnthropicProvider) RichTranslate(ctx context.Context, text string, opts Options) (res *RichTranslation, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "rich_translate", start, err, nil) }()

	prompt := RichTranslatePrompt(text, opts.LearningLanguage, opts.MotherLanguage)
	gen, err := p.complete(ctx, &ConversationContext{SystemPrompt: "You are a precise bilingual dictionary."}, prompt, opts, anthropicDefaultTextModel)
	if err != nil {
		return nil, err
	}
	return DecodeRichTranslation(gen.Content, text), nil
}

// resolveUtterance enforces the audio policy: text passes through, audio
// with a draft degrades to the draft, audio without a draft is rejected.
func (p *AnthropicProvider) resolveUtterance(message string, opts Options) (string, error) {
	if opts.AudioBase64 == "" {
		return message, nil
	}
	if opts.DraftTranscription != "" {
		return opts.DraftTranscription, nil
	}
	return "", fmt.Errorf("anthropic: %w", ErrAudioUnsupported)
}

// complete is the single Messages API round trip shared by all call shapes.
func (p *AnthropicProvider) complete(ctx context.Context, conv *ConversationContext, userText string, opts Options, defaultModel string) (*GenerateResult, error) {
	sys := conv.SystemPrompt
	if sys == "" {
		sys = TutorSystemPrompt(opts.MotherLanguage, opts.LearningLanguage, opts.Proficiency, conv.Summary)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(pickModel(opts.Model, defaultModel)),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: sys}},
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}

	for _, m := range conv.Messages {
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(userText)))

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return nil, errors.New("anthropic: empty response")
	}

	return &GenerateResult{
		Content: b.String(),
		Usage: &Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// OpenAI-backed provider. This is the only backend with native audio in
// both directions: learner recordings go up as input_audio content parts
// and spoken tutor replies come back via the audio modality.

package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const (
	openAIDefaultModel      = "gpt-4o"
	openAIDefaultTextModel  = "gpt-4o-mini"
	openAIDefaultAudioModel = "gpt-4o-audio-preview"
)

// OpenAIProvider talks to the OpenAI Chat Completions API.
type OpenAIProvider struct {
	apiKey string
	client openai.Client
}

// NewOpenAIProvider creates the provider; the key is validated by
// Initialize, not here, so registration never fails.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{apiKey: apiKey}
}

func (p *OpenAIProvider) ID() string         { return "openai" }
func (p *OpenAIProvider) Type() ProviderType { return ProviderTypeCloud }

func (p *OpenAIProvider) Models() []string {
	return []string{openAIDefaultModel, openAIDefaultTextModel, openAIDefaultAudioModel}
}

func (p *OpenAIProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return errors.New("openai: api key is empty")
	}
	p.client = openai.NewClient(option.WithAPIKey(p.apiKey))
	return nil
}

func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

// Generate produces a free-form reply, optionally spoken when opts.Voice is
// set.
func (p *OpenAIProvider) Generate(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate", start, err, usageOf(res)) }()

	params := p.baseParams(conv, opts, openAIDefaultModel)
	params.Messages = append(params.Messages, p.userMessage(message, opts))

	if opts.Voice != "" {
		params.Model = audioCapableModel(params.Model)
		params.Modalities = []string{"text", "audio"}
		params.Audio = openai.ChatCompletionAudioParam{
			Format: openai.ChatCompletionAudioParamFormatWAV,
			Voice:  openai.ChatCompletionAudioParamVoice(opts.Voice),
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}

	msg := resp.Choices[0].Message
	out := &GenerateResult{
		Content: msg.Content,
		Usage:   usageFromOpenAI(resp),
	}
	if msg.Audio.Data != "" {
		out.AudioBase64 = msg.Audio.Data
		if out.Content == "" {
			out.Content = msg.Audio.Transcript
		}
	}
	return out, nil
}

// GenerateText is the text-only path, routed to the cheaper model class
// when the call does not pin a model.
func (p *OpenAIProvider) GenerateText(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "generate_text", start, err, usageOf(res)) }()

	params := p.baseParams(conv, opts, openAIDefaultTextModel)
	params.Messages = append(params.Messages, openai.UserMessage(message))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}
	return &GenerateResult{
		Content: resp.Choices[0].Message.Content,
		Usage:   usageFromOpenAI(resp),
	}, nil
}

// Respond performs the unified reply+assessment round trip. The exchange is
// audio grounded when the learner supplied a recording; the recording rides
// along as an input_audio content part so the model can assess
// pronunciation from the actual speech.
func (p *OpenAIProvider) Respond(ctx context.Context, conv *ConversationContext, message string, opts Options) (res *UnifiedResponse, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "respond", start, err, unifiedUsageOf(res)) }()

	audioGrounded := opts.AudioBase64 != ""

	params := p.baseParams(conv, opts, openAIDefaultModel)
	if audioGrounded {
		params.Model = audioCapableModel(params.Model)
	} else {
		// Text-mode exchanges can constrain the output to JSON server-side;
		// the sanitizer still runs on the result. The audio-preview models do
		// not accept a response_format.
		forceJSONObject(&params)
	}
	prompt := RespondPrompt(message, opts, audioGrounded)
	params.Messages = append(params.Messages, p.userMessage(prompt, opts))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}

	out := DecodeUnifiedResponse(resp.Choices[0].Message.Content, audioGrounded, opts.DraftTranscription)
	out.Usage = usageFromOpenAI(resp)
	return out, nil
}

// RichTranslate translates from the learning language into the learner's
// native language.
func (p *OpenAIProvider) RichTranslate(ctx context.Context, text string, opts Options) (res *RichTranslation, err error) {
	start := time.Now()
	defer func() { observeCall(p.ID(), "rich_translate", start, err, nil) }()

	params := openai.ChatCompletionNewParams{
		Model: pickModel(opts.Model, openAIDefaultTextModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(RichTranslatePrompt(text, opts.LearningLanguage, opts.MotherLanguage)),
		},
	}
	applyTunables(&params, opts)
	forceJSONObject(&params)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty response")
	}
	return DecodeRichTranslation(resp.Choices[0].Message.Content, text), nil
}

// baseParams assembles the system prompt and prior turns shared by every
// call shape.
func (p *OpenAIProvider) baseParams(conv *ConversationContext, opts Options, defaultModel string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: pickModel(opts.Model, defaultModel),
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
	return params
}

// userMessage builds the final user turn, attaching the recording as an
// input_audio part when present.
func (p *OpenAIProvider) userMessage(text string, opts Options) openai.ChatCompletionMessageParamUnion {
	if opts.AudioBase64 == "" {
		return openai.UserMessage(text)
	}
	format := opts.AudioFormat
	if format == "" {
		format = "wav"
	}
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(text),
		openai.InputAudioContentPart(openai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   opts.AudioBase64,
			Format: format,
		}),
	}
	return openai.UserMessage(parts)
}

// forceJSONObject asks the API for a guaranteed-JSON completion.
func forceJSONObject(params *openai.ChatCompletionNewParams) {
	obj := shared.NewResponseFormatJSONObjectParam()
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}
}

func applyTunables(params *openai.ChatCompletionNewParams, opts Options) {
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
}

func pickModel(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// audioCapableModel swaps text-class models for the audio-preview model
// when the exchange needs the audio modality; an explicitly audio-capable
// choice is kept.
func audioCapableModel(model string) string {
	switch model {
	case "", openAIDefaultModel, openAIDefaultTextModel:
		return openAIDefaultAudioModel
	default:
		return model
	}
}

func usageFromOpenAI(resp *openai.ChatCompletion) *Usage {
	if resp.Usage.TotalTokens == 0 {
		return nil
	}
	return &Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
}

func usageOf(r *GenerateResult) *Usage {
	if r == nil {
		return nil
	}
	return r.Usage
}

func unifiedUsageOf(r *UnifiedResponse) *Usage {
	if r == nil {
		return nil
	}
	return r.Usage
}

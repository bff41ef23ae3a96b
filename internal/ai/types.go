// Package ai implements the provider-facing half of the tutoring backend:
// the capability contract all AI backends satisfy, the registry and session
// that route calls to the active backend, prompt templating, and the unified
// response protocol that turns one model call into a reply plus a structured
// assessment.
//
// This file defines the shared data model. The JSON field names of
// Analysis, PronunciationAnalysis, UnifiedResponse, and RichTranslation are
// a wire contract consumed by the UI layer and must not drift.
package ai

// Message roles as stored in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn of dialogue as sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationContext is the bounded view of a conversation handed to a
// provider: the most recent turns verbatim, plus an optional rolling summary
// of everything older. Messages and Summary never overlap; together they
// reconstruct the whole log's meaning (lossily for the summarized part).
type ConversationContext struct {
	ChatID       string
	ThreadID     string // set only for providers with server-side history
	Messages     []ChatMessage
	SystemPrompt string
	Summary      string // empty when the log fits inside the window
}

// Options are the per-call tunables. Zero values mean "inherit from the
// session config" (model, temperature, max tokens) or "absent" (audio,
// draft transcription, voice).
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int

	MotherLanguage   string // learner's native language (BCP 47 code)
	LearningLanguage string // language being practiced (BCP 47 code)
	Proficiency      ProficiencyLevel

	// Audio-grounded mode: the learner's utterance as recorded speech.
	AudioBase64 string
	AudioFormat string // e.g. "wav", "mp3"

	// DraftTranscription is a client-produced transcript of the audio,
	// treated as trust-weighted ground truth (see transcription grounding).
	DraftTranscription string

	// Voice requests spoken output from providers that support it.
	Voice string
}

// Usage reports upstream token consumption for observability.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResult is the outcome of a plain generate/generateText call.
type GenerateResult struct {
	Content     string `json:"content"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	Usage       *Usage `json:"usage,omitempty"`
}

// GrammarError describes one grammatical mistake in the learner's utterance.
type GrammarError struct {
	Original    string `json:"original"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

// Mispronunciation describes one word the learner pronounced incorrectly.
type Mispronunciation struct {
	Word                 string `json:"word"`
	HeardAs              string `json:"heardAs"`
	CorrectPronunciation string `json:"correctPronunciation"`
}

// PronunciationAnalysis is present only when the learner supplied audio.
type PronunciationAnalysis struct {
	PronunciationScore    int                `json:"pronunciationScore"`
	TranscribedText       string             `json:"transcribedText"`
	Mispronunciations     []Mispronunciation `json:"mispronunciations"`
	PronunciationFeedback string             `json:"pronunciationFeedback"`
}

// Analysis is the multi-axis structured assessment of one learner utterance.
// All scores are integers on 0-100. Array fields are always non-nil.
type Analysis struct {
	GrammarScore          int                    `json:"grammarScore"`
	GrammarErrors         []GrammarError         `json:"grammarErrors"`
	VocabularyScore       int                    `json:"vocabularyScore"`
	VocabularySuggestions []string               `json:"vocabularySuggestions"`
	RelevanceScore        int                    `json:"relevanceScore"`
	RelevanceFeedback     string                 `json:"relevanceFeedback,omitempty"`
	OverallFeedback       string                 `json:"overallFeedback"`
	AlternativePhrasings  []string               `json:"alternativePhrasings"`
	Pronunciation         *PronunciationAnalysis `json:"pronunciation,omitempty"`
}

// UnifiedResponse couples the tutor's conversational reply with the
// structured assessment of the utterance that prompted it. It is always
// structurally complete: decode failures yield a neutral default rather
// than an error (see DecodeUnifiedResponse).
type UnifiedResponse struct {
	Reply       string   `json:"reply"`
	Analysis    Analysis `json:"analysis"`
	AudioBase64 string   `json:"audioBase64,omitempty"`
	Usage       *Usage   `json:"usage,omitempty"`
}

// RichTranslation is a dictionary-style translation of a word or phrase.
// Like UnifiedResponse it is always structurally complete.
type RichTranslation struct {
	Translation   string   `json:"translation"`
	Type          string   `json:"type"` // word|phrase|idiom|collocation|expression
	Definition    string   `json:"definition"`
	UsageExamples []string `json:"usageExamples"`
	Notes         string   `json:"notes,omitempty"`
	Formality     string   `json:"formality,omitempty"`
}

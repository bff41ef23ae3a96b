// Decoding of the unified response protocol. The contract is never-throw:
// whatever the model returns, callers receive a structurally complete value.
// Missing fields get neutral defaults, scores are clamped, arrays are never
// nil, and irrecoverably broken JSON degrades to an empty reply with a
// default assessment.

package ai

import "encoding/json"

// Neutral score defaults applied when the model omits a field.
const (
	defaultGrammarScore       = 70
	defaultVocabularyScore    = 70
	defaultRelevanceScore     = 80
	defaultPronunciationScore = 70
)

// rawAnalysis mirrors Analysis with pointer scores so an absent field is
// distinguishable from an explicit zero.
type rawAnalysis struct {
	GrammarScore          *int               `json:"grammarScore"`
	GrammarErrors         []GrammarError     `json:"grammarErrors"`
	VocabularyScore       *int               `json:"vocabularyScore"`
	VocabularySuggestions []string           `json:"vocabularySuggestions"`
	RelevanceScore        *int               `json:"relevanceScore"`
	RelevanceFeedback     string             `json:"relevanceFeedback"`
	OverallFeedback       string             `json:"overallFeedback"`
	AlternativePhrasings  []string           `json:"alternativePhrasings"`
	Pronunciation         *rawPronunciation  `json:"pronunciation"`
}

type rawPronunciation struct {
	PronunciationScore    *int               `json:"pronunciationScore"`
	TranscribedText       string             `json:"transcribedText"`
	Mispronunciations     []Mispronunciation `json:"mispronunciations"`
	PronunciationFeedback string             `json:"pronunciationFeedback"`
}

type rawUnified struct {
	Reply    string       `json:"reply"`
	Analysis *rawAnalysis `json:"analysis"`
}

// DecodeUnifiedResponse turns raw model output into a complete
// UnifiedResponse. It never returns an error: when the sanitized payload
// still fails strict decoding, the reply is empty and the assessment falls
// back to neutral defaults. The pronunciation block is emitted only for
// audio-grounded exchanges; a block the model volunteers in text mode is
// dropped. draft is the client transcription used when the model omits
// transcribedText.
func DecodeUnifiedResponse(raw string, audioGrounded bool, draft string) *UnifiedResponse {
	var parsed rawUnified
	if err := json.Unmarshal([]byte(SanitizeModelJSON(raw)), &parsed); err != nil {
		out := &UnifiedResponse{
			Reply:    "",
			Analysis: neutralAnalysis(audioGrounded, draft),
		}
		out.Analysis.OverallFeedback = "Assessment unavailable for this message."
		return out
	}

	return &UnifiedResponse{
		Reply:    parsed.Reply,
		Analysis: normalizeAnalysis(parsed.Analysis, audioGrounded, draft),
	}
}

func normalizeAnalysis(in *rawAnalysis, audioGrounded bool, draft string) Analysis {
	if in == nil {
		return neutralAnalysis(audioGrounded, draft)
	}

	out := Analysis{
		GrammarScore:          clampScore(in.GrammarScore, defaultGrammarScore),
		GrammarErrors:         in.GrammarErrors,
		VocabularyScore:       clampScore(in.VocabularyScore, defaultVocabularyScore),
		VocabularySuggestions: in.VocabularySuggestions,
		RelevanceScore:        clampScore(in.RelevanceScore, defaultRelevanceScore),
		RelevanceFeedback:     in.RelevanceFeedback,
		OverallFeedback:       in.OverallFeedback,
		AlternativePhrasings:  in.AlternativePhrasings,
	}
	if out.GrammarErrors == nil {
		out.GrammarErrors = []GrammarError{}
	}
	if out.VocabularySuggestions == nil {
		out.VocabularySuggestions = []string{}
	}
	if out.AlternativePhrasings == nil {
		out.AlternativePhrasings = []string{}
	}

	if audioGrounded {
		out.Pronunciation = normalizePronunciation(in.Pronunciation, draft)
	}
	return out
}

func normalizePronunciation(in *rawPronunciation, draft string) *PronunciationAnalysis {
	out := &PronunciationAnalysis{
		PronunciationScore: defaultPronunciationScore,
		TranscribedText:    draft,
		Mispronunciations:  []Mispronunciation{},
	}
	if in == nil {
		return out
	}
	out.PronunciationScore = clampScore(in.PronunciationScore, defaultPronunciationScore)
	if in.TranscribedText != "" {
		out.TranscribedText = in.TranscribedText
	}
	if in.Mispronunciations != nil {
		out.Mispronunciations = in.Mispronunciations
	}
	out.PronunciationFeedback = in.PronunciationFeedback
	return out
}

func neutralAnalysis(audioGrounded bool, draft string) Analysis {
	a := Analysis{
		GrammarScore:          defaultGrammarScore,
		GrammarErrors:         []GrammarError{},
		VocabularyScore:       defaultVocabularyScore,
		VocabularySuggestions: []string{},
		RelevanceScore:        defaultRelevanceScore,
		AlternativePhrasings:  []string{},
	}
	if audioGrounded {
		a.Pronunciation = &PronunciationAnalysis{
			PronunciationScore: defaultPronunciationScore,
			TranscribedText:    draft,
			Mispronunciations:  []Mispronunciation{},
		}
	}
	return a
}

func clampScore(v *int, def int) int {
	if v == nil {
		return def
	}
	if *v < 0 {
		return 0
	}
	if *v > 100 {
		return 100
	}
	return *v
}

// DecodeRichTranslation turns raw model output into a complete
// RichTranslation. Never returns an error: irrecoverable JSON degrades to
// echoing the input as its own translation, which the UI renders as an
// honest "no translation available" rather than failing the request.
func DecodeRichTranslation(raw, input string) *RichTranslation {
	var parsed RichTranslation
	if err := json.Unmarshal([]byte(SanitizeModelJSON(raw)), &parsed); err != nil || parsed.Translation == "" {
		return &RichTranslation{
			Translation:   input,
			Type:          "word",
			UsageExamples: []string{},
			Formality:     "neutral",
		}
	}
	if parsed.Type == "" {
		parsed.Type = "word"
	}
	if parsed.Formality == "" {
		parsed.Formality = "neutral"
	}
	if parsed.UsageExamples == nil {
		parsed.UsageExamples = []string{}
	}
	return &parsed
}

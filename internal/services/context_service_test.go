package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/domain"
)

type fakeMsgLog struct {
	msgs []domain.Message
	err  error
}

func (f *fakeMsgLog) ListMessages(db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.msgs, nil
}

type fakeSummaryStore struct {
	summary *domain.ChatSummary

	putContent string
	putIndex   int
	putCalls   int
	applied    bool
	putErr     error
}

func (f *fakeSummaryStore) GetSummary(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatSummary, error) {
	return f.summary, nil
}

func (f *fakeSummaryStore) PutSummary(ctx context.Context, db *gorm.DB, chatID, content string, idx int) (bool, error) {
	f.putCalls++
	f.putContent = content
	f.putIndex = idx
	if f.putErr != nil {
		return false, f.putErr
	}
	return f.applied, nil
}

// fakeGen answers summarize and merge prompts; set failAll to simulate an
// upstream outage and failMerge to fail only the merge call.
type fakeGen struct {
	calls      []string
	failAll    bool
	failMerge  bool
	summarized string
	merged     string
}

func (f *fakeGen) GenerateText(ctx context.Context, conv *ai.ConversationContext, prompt string, opts ai.Options) (*ai.GenerateResult, error) {
	f.calls = append(f.calls, prompt)
	if f.failAll {
		return nil, errors.New("upstream down")
	}
	if strings.Contains(prompt, "Merge the two conversation summaries") {
		if f.failMerge {
			return nil, errors.New("merge failed")
		}
		return &ai.GenerateResult{Content: f.merged}, nil
	}
	return &ai.GenerateResult{Content: f.summarized}, nil
}

func nMessages(n int) []domain.Message {
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		out = append(out, domain.Message{ID: fmt.Sprintf("m%02d", i), ChatID: "c1", Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return out
}

func newTestContextService(msgs []domain.Message, store *fakeSummaryStore, gen *fakeGen) *ContextService {
	return NewContextService(nil, &fakeMsgLog{msgs: msgs}, store, gen)
}

func TestBuildContext_ShortLogPassesThrough(t *testing.T) {
	gen := &fakeGen{}
	svc := newTestContextService(nMessages(12), &fakeSummaryStore{applied: true}, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(got.Messages) != 12 {
		t.Fatalf("messages = %d, want all 12", len(got.Messages))
	}
	if got.Summary != "" {
		t.Fatalf("summary = %q, want empty", got.Summary)
	}
	if len(gen.calls) != 0 {
		t.Fatal("short log must not trigger the summarizer")
	}
}

func TestBuildContext_LongLogSummarizesOlderTurns(t *testing.T) {
	gen := &fakeGen{summarized: "they discussed travel plans"}
	store := &fakeSummaryStore{applied: true}
	svc := newTestContextService(nMessages(35), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	if len(got.Messages) != 20 {
		t.Fatalf("window = %d, want 20", len(got.Messages))
	}
	if got.Messages[0].Content != "turn 15" {
		t.Fatalf("window starts at %q, want turn 15", got.Messages[0].Content)
	}
	if got.Summary != "they discussed travel plans" {
		t.Fatalf("summary = %q", got.Summary)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("generator calls = %d, want 1", len(gen.calls))
	}
	if !strings.Contains(gen.calls[0], "turn 0") || !strings.Contains(gen.calls[0], "turn 14") {
		t.Fatal("summarize batch must cover the 15 older turns")
	}
	if strings.Contains(gen.calls[0], "turn 15") {
		t.Fatal("summarize batch must not include windowed turns")
	}

	if store.putCalls != 1 || store.putIndex != 15 {
		t.Fatalf("watermark write = %d calls, index %d; want 1 call at 15", store.putCalls, store.putIndex)
	}
}

func TestBuildContext_SecondBuildDoesNotResummarize(t *testing.T) {
	gen := &fakeGen{summarized: "should not be called"}
	store := &fakeSummaryStore{
		summary: &domain.ChatSummary{ChatID: "c1", Content: "existing summary", LastMessageIndex: 15},
		applied: true,
	}
	svc := newTestContextService(nMessages(35), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "existing summary" {
		t.Fatalf("summary = %q, want the stored one", got.Summary)
	}
	if len(gen.calls) != 0 {
		t.Fatal("no new turns past the watermark, summarizer must stay idle")
	}
	if store.putCalls != 0 {
		t.Fatal("watermark must not move")
	}
}

func TestBuildContext_MergesIntoExistingSummary(t *testing.T) {
	gen := &fakeGen{summarized: "fresh batch", merged: "combined summary"}
	store := &fakeSummaryStore{
		summary: &domain.ChatSummary{ChatID: "c1", Content: "old summary", LastMessageIndex: 10},
		applied: true,
	}
	svc := newTestContextService(nMessages(40), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "combined summary" {
		t.Fatalf("summary = %q", got.Summary)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("generator calls = %d, want summarize+merge", len(gen.calls))
	}
	if !strings.Contains(gen.calls[0], "turn 10") || strings.Contains(gen.calls[0], "turn 9") {
		t.Fatal("batch must start after the watermark")
	}
	if store.putIndex != 20 {
		t.Fatalf("watermark = %d, want 20", store.putIndex)
	}
}

func TestBuildContext_SummarizeFailureFallsBackToPlaceholder(t *testing.T) {
	gen := &fakeGen{failAll: true}
	store := &fakeSummaryStore{applied: true}
	svc := newTestContextService(nMessages(35), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext must not fail on summarizer outage: %v", err)
	}
	if got.Summary != "[Previous conversation with 15 messages]" {
		t.Fatalf("summary = %q", got.Summary)
	}
	if store.putCalls != 0 {
		t.Fatal("placeholder must not be persisted")
	}
}

func TestBuildContext_SummarizeFailureKeepsStaleSummary(t *testing.T) {
	gen := &fakeGen{failAll: true}
	store := &fakeSummaryStore{
		summary: &domain.ChatSummary{ChatID: "c1", Content: "stale but real", LastMessageIndex: 10},
		applied: true,
	}
	svc := newTestContextService(nMessages(40), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "stale but real" {
		t.Fatalf("summary = %q, want the stale summary", got.Summary)
	}
}

func TestBuildContext_MergeFailureConcatenates(t *testing.T) {
	gen := &fakeGen{summarized: "fresh batch", failMerge: true}
	store := &fakeSummaryStore{
		summary: &domain.ChatSummary{ChatID: "c1", Content: "old summary", LastMessageIndex: 10},
		applied: true,
	}
	svc := newTestContextService(nMessages(40), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "old summary\n\nfresh batch" {
		t.Fatalf("summary = %q, want naive concatenation", got.Summary)
	}
}

func TestBuildContext_DisabledSummarization(t *testing.T) {
	gen := &fakeGen{summarized: "nope"}
	svc := newTestContextService(nMessages(35), &fakeSummaryStore{applied: true}, gen)

	disabled := true
	if _, err := svc.UpdateSettings(ContextSettingsPatch{DisableSummarization: &disabled}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "" {
		t.Fatalf("summary = %q, want empty when disabled", got.Summary)
	}
	if len(got.Messages) != 35 {
		t.Fatalf("messages = %d, want the whole log when disabled", len(got.Messages))
	}
	if len(gen.calls) != 0 {
		t.Fatal("summarizer must stay idle when disabled")
	}
}

func TestBuildContext_DeferredBelowThresholdWithoutStoredSummary(t *testing.T) {
	// 25 turns, window 20: only 5 older turns, below the threshold of 10.
	// Nothing has been summarized yet, so the context carries no summary at
	// all; the placeholder is reserved for summarization failures.
	gen := &fakeGen{summarized: "should not run"}
	store := &fakeSummaryStore{applied: true}
	svc := newTestContextService(nMessages(25), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(got.Messages) != 20 {
		t.Fatalf("window = %d, want 20", len(got.Messages))
	}
	if got.Summary != "" {
		t.Fatalf("summary = %q, want empty below the threshold", got.Summary)
	}
	if len(gen.calls) != 0 || store.putCalls != 0 {
		t.Fatal("deferred compaction must not call the model or move the watermark")
	}
}

func TestBuildContext_WatermarkClampAfterWindowShrink(t *testing.T) {
	// Stored watermark 30 from an earlier, larger window; with 35 messages
	// and window 20 the boundary is 15, so the summary already covers it.
	gen := &fakeGen{summarized: "should not run"}
	store := &fakeSummaryStore{
		summary: &domain.ChatSummary{ChatID: "c1", Content: "covers everything", LastMessageIndex: 30},
		applied: true,
	}
	svc := newTestContextService(nMessages(35), store, gen)

	got, err := svc.BuildContext(context.Background(), "c1")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if got.Summary != "covers everything" {
		t.Fatalf("summary = %q", got.Summary)
	}
	if len(gen.calls) != 0 {
		t.Fatal("clamped watermark means nothing pending")
	}
}

func TestUpdateSettings(t *testing.T) {
	svc := newTestContextService(nil, &fakeSummaryStore{}, &fakeGen{})

	window := 30
	model := "gpt-4o-mini"
	got, err := svc.UpdateSettings(ContextSettingsPatch{RecentWindowSize: &window, SummaryModel: &model})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if got.RecentWindowSize != 30 || got.SummaryModel != "gpt-4o-mini" {
		t.Fatalf("settings = %+v", got)
	}
	if got.SummarizeAfterMessages != DefaultSummarizeAfterMessages {
		t.Fatal("untouched fields must keep defaults")
	}

	bad := 0
	if _, err := svc.UpdateSettings(ContextSettingsPatch{RecentWindowSize: &bad}); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err = %v, want ErrInvalidSettings", err)
	}
	if svc.Settings().RecentWindowSize != 30 {
		t.Fatal("failed update must not change settings")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("a", 40)); got != 10 {
		t.Fatalf("EstimateTokens = %d, want 10", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d", got)
	}
}

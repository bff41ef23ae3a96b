package ai

import (
	"encoding/json"
	"testing"
)

func TestSanitizeModelJSON_StripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"reply\": \"hi\"}\n```"
	got := SanitizeModelJSON(raw)
	if got != `{"reply": "hi"}` {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeModelJSON_ExtractsObjectFromProse(t *testing.T) {
	raw := "Here is the assessment you asked for:\n{\"reply\": \"hello\"}\nHope that helps!"
	got := SanitizeModelJSON(raw)
	if got != `{"reply": "hello"}` {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeModelJSON_RemovesParentheticalAfterString(t *testing.T) {
	raw := `{"word": "dig", "heardAs": "ig" (a soft g sound), "correctPronunciation": "dihg"}`
	got := SanitizeModelJSON(raw)

	var parsed Mispronunciation
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("repaired output still invalid: %v\n%s", err, got)
	}
	if parsed.HeardAs != "ig" {
		t.Fatalf("heardAs = %q, want %q", parsed.HeardAs, "ig")
	}
}

func TestSanitizeModelJSON_RemovesDanglingConnector(t *testing.T) {
	raw := `{"correction": "went" and, "explanation": "past tense"}`
	got := SanitizeModelJSON(raw)

	var parsed map[string]string
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("repaired output still invalid: %v\n%s", err, got)
	}
	if parsed["correction"] != "went" {
		t.Fatalf("correction = %q", parsed["correction"])
	}
}

func TestSanitizeModelJSON_ValidInputUnchanged(t *testing.T) {
	raw := `{"reply": "all good", "analysis": {"grammarScore": 90}}`
	if got := SanitizeModelJSON(raw); got != raw {
		t.Fatalf("valid JSON was altered: %q", got)
	}
}

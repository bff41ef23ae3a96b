// Best-effort sanitation of model-produced JSON. Models wrap JSON in
// markdown fences, prepend prose, and leak commentary after string values
// ("ig (a soft g sound),"). The repairs here are a pre-filter only: the
// output is always handed to the strict decoder, which has the final say,
// and irrecoverable input falls through to the protocol layer's neutral
// default.

package ai

import (
	"regexp"
	"strings"
)

var (
	// fenceRe strips a leading markdown code fence with an optional
	// language tag and the matching trailing fence.
	fenceRe = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

	// parentheticalRe removes commentary in parentheses that models append
	// after a closing string quote, before the next delimiter:
	//   "heardAs": "ig" (a soft g sound),  ->  "heardAs": "ig",
	parentheticalRe = regexp.MustCompile(`"\s*\([^)]*\)\s*([,}\]])`)

	// danglingWordRe removes a stray connector word left between a closing
	// quote and the next delimiter after other repairs:
	//   "correction": "went" and,  ->  "correction": "went",
	danglingWordRe = regexp.MustCompile(`"\s*(?:and|but|or|the|a|slight|slightly)\s*([,}\]])`)
)

// SanitizeModelJSON extracts the JSON object from raw model output and
// applies the textual repairs. It never fails; callers must still strict-
// decode the result and fall back when that decode fails.
func SanitizeModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	// Models sometimes lead with prose ("Here is the assessment:") or trail
	// with a sign-off. Keep only the outermost object.
	if start := strings.IndexByte(s, '{'); start >= 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			s = s[start : end+1]
		}
	}

	s = parentheticalRe.ReplaceAllString(s, `"$1`)
	s = danglingWordRe.ReplaceAllString(s, `"$1`)
	return s
}

package ai

import "fmt"

// ProficiencyLevel is the closed set of learner levels. Grading leniency is
// selected by level at prompt-build time; the numeric scale and the output
// schema are identical across levels.
type ProficiencyLevel string

const (
	ProficiencyNovice       ProficiencyLevel = "novice"
	ProficiencyBeginner     ProficiencyLevel = "beginner"
	ProficiencyIntermediate ProficiencyLevel = "intermediate"
	ProficiencyAdvanced     ProficiencyLevel = "advanced"
)

// ProficiencyLevels lists every valid level, in ascending order.
var ProficiencyLevels = []ProficiencyLevel{
	ProficiencyNovice,
	ProficiencyBeginner,
	ProficiencyIntermediate,
	ProficiencyAdvanced,
}

// ParseProficiencyLevel validates a raw level string. Empty input defaults
// to intermediate.
func ParseProficiencyLevel(raw string) (ProficiencyLevel, error) {
	switch ProficiencyLevel(raw) {
	case ProficiencyNovice, ProficiencyBeginner, ProficiencyIntermediate, ProficiencyAdvanced:
		return ProficiencyLevel(raw), nil
	case "":
		return ProficiencyIntermediate, nil
	default:
		return "", fmt.Errorf("unknown proficiency level: %q", raw)
	}
}

// Calibration returns the leniency instructions injected into the grading
// prompt for this level. The switch is exhaustive over the closed set; an
// unknown value falls back to the intermediate block rather than emitting
// nothing.
func (p ProficiencyLevel) Calibration() string {
	switch p {
	case ProficiencyNovice:
		return "GRADING CALIBRATION: The learner is a complete novice. Be very lenient and encouraging. " +
			"Score generously: reward any successful communication, ignore minor errors entirely, and " +
			"only flag mistakes that block understanding."
	case ProficiencyBeginner:
		return "GRADING CALIBRATION: The learner is a beginner. Be lenient. Reward effort and partial " +
			"correctness; flag recurring basic errors gently and keep feedback simple."
	case ProficiencyAdvanced:
		return "GRADING CALIBRATION: The learner is advanced. Grade strictly against near-native usage. " +
			"Flag subtle errors in register, collocation, and idiom; do not inflate scores for merely " +
			"correct output."
	default: // intermediate
		return "GRADING CALIBRATION: The learner is intermediate. Grade moderately and accurately. " +
			"Flag clear errors and awkward phrasing; reward natural, varied language."
	}
}

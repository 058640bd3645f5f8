package quiz

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/knowcheck/policyquiz/internal/model"
)

// DefaultThreshold is the fuzzy-match cutoff used when none is configured.
const DefaultThreshold = 85

// GraderConfig tunes the answer-grading policy.
type GraderConfig struct {
	// Threshold is the minimum similarity score (0..100) a submission
	// must reach against any accepted answer.
	Threshold int
	// StrictYesNo requires exactly "yes"/"y" or "no"/"n" on yes/no
	// questions instead of a prefix match.
	StrictYesNo bool
}

// DefaultGraderConfig returns the loose-prefix, threshold-85 policy.
func DefaultGraderConfig() GraderConfig {
	return GraderConfig{Threshold: DefaultThreshold}
}

// Grader decides whether a free-text answer is correct. Grading never
// fails; malformed records degrade to Incorrect.
type Grader struct {
	cfg GraderConfig
}

// NewGrader creates a grader, substituting the default threshold for
// out-of-range values.
func NewGrader(cfg GraderConfig) *Grader {
	if cfg.Threshold <= 0 || cfg.Threshold > 100 {
		cfg.Threshold = DefaultThreshold
	}
	return &Grader{cfg: cfg}
}

// Grade compares a submitted answer against a question record.
//
// Yes/no questions (canonical answer starting with "yes" or "no") are
// decided by the yes/no rule alone; fuzzy matching never applies to
// them. Everything else is scored against the canonical answer plus
// any accepted alternatives, taking the better of a token-set and a
// partial similarity per candidate.
func (g *Grader) Grade(submitted string, rec model.QuestionRecord) model.Result {
	sub := normalize(submitted)
	answer := normalize(rec.Answer)

	if sub == "" {
		if answer == "" {
			return model.ResultCorrect
		}
		return model.ResultIncorrect
	}

	if want, ok := yesNoExpectation(answer); ok {
		return g.gradeYesNo(sub, want)
	}

	best := 0
	for _, candidate := range acceptedSet(answer, rec.AcceptedAnswers) {
		score := max(fuzzy.TokenSetRatio(sub, candidate), fuzzy.PartialRatio(sub, candidate))
		if score > best {
			best = score
		}
	}
	if best >= g.cfg.Threshold {
		return model.ResultCorrect
	}
	return model.ResultIncorrect
}

func (g *Grader) gradeYesNo(sub, want string) model.Result {
	if g.cfg.StrictYesNo {
		if sub == want || sub == want[:1] {
			return model.ResultCorrect
		}
		return model.ResultIncorrect
	}
	if strings.HasPrefix(sub, want) {
		return model.ResultCorrect
	}
	return model.ResultIncorrect
}

// yesNoExpectation reports whether the canonical answer is yes/no-prefixed
// and which of the two is expected.
func yesNoExpectation(answer string) (string, bool) {
	switch {
	case strings.HasPrefix(answer, "yes"):
		return "yes", true
	case strings.HasPrefix(answer, "no"):
		return "no", true
	}
	return "", false
}

// acceptedSet builds the normalized list of answers that grade as correct.
func acceptedSet(answer string, alternatives []string) []string {
	accepted := []string{answer}
	for _, a := range alternatives {
		if n := normalize(a); n != "" {
			accepted = append(accepted, n)
		}
	}
	return accepted
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

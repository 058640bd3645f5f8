package quiz

import (
	"strings"

	"github.com/knowcheck/policyquiz/internal/model"
)

// SupervisorWeight is the sampling boost applied to supervisor-tagged
// questions when the user is a supervisor. All other records weigh 1.0.
const SupervisorWeight = 1.6

// supervisorFunction is the Function tag that marks supervisor questions.
const supervisorFunction = "supervisor"

// Weighted pairs a question record with its sampling weight.
type Weighted struct {
	Record model.QuestionRecord
	Weight float64
}

// Filter returns the records a user with the given profile may be asked.
// A record is eligible when its division list contains the profile's
// division or a wildcard token, and its role (if any) matches the
// profile's role. Records without any division token never match.
func Filter(records []model.QuestionRecord, profile model.UserProfile) []model.QuestionRecord {
	var eligible []model.QuestionRecord
	for _, rec := range records {
		if !divisionMatch(rec.Divisions, profile.Division) {
			continue
		}
		if profile.Role != "" && rec.Role != "" && !strings.EqualFold(rec.Role, profile.Role) {
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible
}

// Weigh computes the sampling weight for each record under the given
// profile. It never mutates the input records.
func Weigh(records []model.QuestionRecord, profile model.UserProfile) []Weighted {
	weighted := make([]Weighted, 0, len(records))
	for _, rec := range records {
		weighted = append(weighted, Weighted{Record: rec, Weight: Weight(rec, profile)})
	}
	return weighted
}

// Weight returns the sampling weight of a single record.
func Weight(rec model.QuestionRecord, profile model.UserProfile) float64 {
	if profile.SupervisorStatus == model.StatusSupervisor &&
		strings.EqualFold(strings.TrimSpace(rec.Function), supervisorFunction) {
		return SupervisorWeight
	}
	return 1.0
}

func divisionMatch(divisions []string, division string) bool {
	for _, d := range divisions {
		if strings.EqualFold(d, division) || isWildcard(d) {
			return true
		}
	}
	return false
}

// isWildcard reports whether a division token means "everyone".
// "AllUsers" and "All Users" both occur in the data, in mixed case.
func isWildcard(token string) bool {
	t := strings.ToLower(strings.ReplaceAll(token, " ", ""))
	return t == "allusers"
}

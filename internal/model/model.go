package model

import (
	"context"
	"time"
)

// SupervisorStatus marks whether a user supervises others.
type SupervisorStatus string

const (
	// StatusSupervisor is a supervisor user.
	StatusSupervisor SupervisorStatus = "supervisor"
	// StatusNonSupervisor is a non-supervisor user.
	StatusNonSupervisor SupervisorStatus = "non-supervisor"
)

// Result is the outcome of grading one answer.
type Result string

const (
	ResultCorrect   Result = "Correct"
	ResultIncorrect Result = "Incorrect"
)

// SessionState represents the lifecycle state of a quiz session.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateInProgress SessionState = "in_progress"
	StateComplete   SessionState = "complete"
)

// QuestionRecord is one row of the question bank.
// Question, Answer, and at least one Division token are guaranteed
// non-empty after loading; everything else is optional.
type QuestionRecord struct {
	PolicyNumber    string   `json:"policy_number"`
	PolicyName      string   `json:"policy_name"`
	Divisions       []string `json:"divisions"`
	Role            string   `json:"role"` // empty means any role
	Function        string   `json:"function"`
	Chapter         string   `json:"chapter"`
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	AcceptedAnswers []string `json:"accepted_answers,omitempty"`
}

// Clone returns a deep copy of the record so session snapshots cannot
// be altered by later changes to the bank.
func (q QuestionRecord) Clone() QuestionRecord {
	c := q
	c.Divisions = append([]string(nil), q.Divisions...)
	c.AcceptedAnswers = append([]string(nil), q.AcceptedAnswers...)
	return c
}

// UserProfile holds the answers to the profile form for one session.
type UserProfile struct {
	Division         string           `json:"division"`
	Role             string           `json:"role"` // only meaningful when the division requires one
	SupervisorStatus SupervisorStatus `json:"supervisor_status"`
	QuestionCount    int              `json:"question_count"`
}

// ResponseRecord is one graded answer. Immutable once appended.
type ResponseRecord struct {
	PolicyNumber    string `json:"policy_number"`
	PolicyName      string `json:"policy_name"`
	Question        string `json:"question"`
	SubmittedAnswer string `json:"submitted_answer"`
	CorrectAnswer   string `json:"correct_answer"`
	Result          Result `json:"result"`
}

// DivisionConfig describes one selectable division. A non-empty Roles
// list means the profile form must also collect a role.
type DivisionConfig struct {
	Name  string   `mapstructure:"name" json:"name"`
	Roles []string `mapstructure:"roles" json:"roles,omitempty"`
}

// DefaultDivisions returns the built-in division list.
func DefaultDivisions() []DivisionConfig {
	return []DivisionConfig{
		{Name: "Patrol", Roles: []string{"LEO", "CSO"}},
		{Name: "Emergency Management"},
		{Name: "Support Services"},
		{Name: "Dispatch"},
		{Name: "Business Office"},
	}
}

// QuizConfig holds runtime quiz parameters set via CLI flags.
type QuizConfig struct {
	MatchThreshold  int  // fuzzy-match cutoff, 0..100
	StrictYesNo     bool // require exact "yes"/"y" ("no"/"n") instead of a prefix match
	AllowRepeats    bool // sample with replacement instead of failing on a small pool
	BalanceChapters bool // spread the draw across chapters when chapter data exists
	DefaultCount    int  // preselected question count on the profile form
	MinCount        int
	MaxCount        int
	Seed            uint64 // 0 means a fresh random source per session
	BasePath        string // URL prefix for sub-path deployments (e.g. "/quiz")
	Divisions       []DivisionConfig
}

// DivisionByName returns the division config matching name, or nil.
func (c QuizConfig) DivisionByName(name string) *DivisionConfig {
	for i := range c.Divisions {
		if c.Divisions[i].Name == name {
			return &c.Divisions[i]
		}
	}
	return nil
}

// ClampCount bounds a requested question count to the configured range.
func (c QuizConfig) ClampCount(n int) int {
	if n < c.MinCount {
		return c.MinCount
	}
	if n > c.MaxCount {
		return c.MaxCount
	}
	return n
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

// BankInfo records where the current question bank came from.
type BankInfo struct {
	SourcePath  string    `json:"source_path"`
	ContentHash string    `json:"content_hash"`
	LoadedAt    time.Time `json:"loaded_at"`
	Records     int       `json:"records"`
}

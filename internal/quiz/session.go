package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/knowcheck/policyquiz/internal/model"
)

// ErrInvalidTransition is returned when a session operation is invoked
// outside its valid state. It signals a programming error, not user input.
var ErrInvalidTransition = errors.New("operation not valid in current session state")

// Summary is the final report for a completed session.
type Summary struct {
	Score      int
	Total      int
	Percentage float64
	Responses  []model.ResponseRecord
}

// Session is the quiz state machine: not started, in progress, complete.
// It owns its question snapshots and responses and never touches the
// bank it was drawn from. The caller persists it between interactions.
type Session struct {
	ID           string
	State        model.SessionState
	Profile      model.UserProfile
	Selected     []model.QuestionRecord
	CurrentIndex int
	Responses    []model.ResponseRecord
	Score        int
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NewSession creates an empty session for the given profile.
func NewSession(profile model.UserProfile) *Session {
	return &Session{
		ID:      uuid.NewString(),
		State:   model.StateNotStarted,
		Profile: profile,
	}
}

// Start samples count questions from the weighted pool and moves the
// session to in-progress. On ErrInsufficientPool the session is left
// untouched so the caller can adjust the profile and retry.
func (s *Session) Start(pool []Weighted, count int, sampler *Sampler, balanceByChapter bool) error {
	if s.State != model.StateNotStarted {
		return ErrInvalidTransition
	}
	selected, err := sampler.Sample(pool, count, balanceByChapter)
	if err != nil {
		return err
	}
	s.Selected = selected
	s.State = model.StateInProgress
	s.CurrentIndex = 0
	s.Responses = nil
	s.Score = 0
	s.StartedAt = time.Now()
	s.CompletedAt = nil
	return nil
}

// CurrentQuestion returns the question awaiting an answer.
func (s *Session) CurrentQuestion() (model.QuestionRecord, error) {
	if s.State != model.StateInProgress || s.CurrentIndex >= len(s.Selected) {
		return model.QuestionRecord{}, ErrInvalidTransition
	}
	return s.Selected[s.CurrentIndex], nil
}

// Submit grades the answer to the current question, appends the
// response, and advances. Answering the last question completes the
// session.
func (s *Session) Submit(answer string, grader *Grader) (model.ResponseRecord, error) {
	if s.State != model.StateInProgress || s.CurrentIndex >= len(s.Selected) {
		return model.ResponseRecord{}, ErrInvalidTransition
	}

	rec := s.Selected[s.CurrentIndex]
	resp := model.ResponseRecord{
		PolicyNumber:    rec.PolicyNumber,
		PolicyName:      rec.PolicyName,
		Question:        rec.Question,
		SubmittedAnswer: answer,
		CorrectAnswer:   rec.Answer,
		Result:          grader.Grade(answer, rec),
	}
	s.Responses = append(s.Responses, resp)
	if resp.Result == model.ResultCorrect {
		s.Score++
	}
	s.CurrentIndex++
	if s.CurrentIndex == len(s.Selected) {
		now := time.Now()
		s.State = model.StateComplete
		s.CompletedAt = &now
	}
	return resp, nil
}

// Summary reports the final score. Valid only once the session is complete.
func (s *Session) Summary() (Summary, error) {
	if s.State != model.StateComplete {
		return Summary{}, ErrInvalidTransition
	}
	return Summary{
		Score:      s.Score,
		Total:      len(s.Selected),
		Percentage: Percentage(s.Score, len(s.Selected)),
		Responses:  s.Responses,
	}, nil
}

// Restart clears all quiz state and returns the session to not-started.
// Permitted from any state.
func (s *Session) Restart() {
	s.State = model.StateNotStarted
	s.Selected = nil
	s.CurrentIndex = 0
	s.Responses = nil
	s.Score = 0
	s.StartedAt = time.Time{}
	s.CompletedAt = nil
}

// Total returns the number of selected questions.
func (s *Session) Total() int {
	return len(s.Selected)
}

// Percentage computes 100*score/total, with 0 for an empty session.
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(score) / float64(total)
}

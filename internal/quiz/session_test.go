package quiz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/knowcheck/policyquiz/internal/model"
)

func sessionPool(t *testing.T, size int) []Weighted {
	t.Helper()
	pool := make([]Weighted, 0, size)
	for i := 0; i < size; i++ {
		pool = append(pool, Weighted{
			Record: model.QuestionRecord{
				Divisions: []string{"AllUsers"},
				Question:  fmt.Sprintf("question %d", i),
				Answer:    "yes",
			},
			Weight: 1.0,
		})
	}
	return pool
}

func startedSession(t *testing.T, count int) *Session {
	t.Helper()
	s := NewSession(model.UserProfile{Division: "Dispatch", QuestionCount: count})
	err := s.Start(sessionPool(t, count+4), count, NewSampler(5, ModeNoRepeat), false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func TestSessionLifecycle(t *testing.T) {
	const count = 3
	s := startedSession(t, count)
	g := NewGrader(DefaultGraderConfig())

	if s.State != model.StateInProgress {
		t.Fatalf("expected in_progress, got %q", s.State)
	}
	if s.Total() != count {
		t.Fatalf("expected %d selected questions, got %d", count, s.Total())
	}

	for i := 0; i < count; i++ {
		q, err := s.CurrentQuestion()
		if err != nil {
			t.Fatalf("CurrentQuestion %d: %v", i, err)
		}
		if q.Question == "" {
			t.Fatalf("empty question at %d", i)
		}
		if _, err := s.Submit("yes", g); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		if len(s.Responses) != i+1 {
			t.Fatalf("expected %d responses, got %d", i+1, len(s.Responses))
		}
	}

	if s.State != model.StateComplete {
		t.Fatalf("expected complete, got %q", s.State)
	}
	if s.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Total != count {
		t.Errorf("summary total = %d, want %d", sum.Total, count)
	}
	if sum.Score != count {
		t.Errorf("summary score = %d, want %d (all answers were correct)", sum.Score, count)
	}
	if sum.Percentage != 100 {
		t.Errorf("summary percentage = %v, want 100", sum.Percentage)
	}
}

func TestSessionInvalidTransitions(t *testing.T) {
	g := NewGrader(DefaultGraderConfig())

	// Fresh session: no current question, no submit, no summary.
	s := NewSession(model.UserProfile{Division: "Dispatch"})
	if _, err := s.CurrentQuestion(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("CurrentQuestion before start: got %v", err)
	}
	if _, err := s.Submit("yes", g); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit before start: got %v", err)
	}
	if _, err := s.Summary(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Summary before start: got %v", err)
	}

	// In progress: starting again and summarizing are invalid.
	s = startedSession(t, 2)
	if err := s.Start(sessionPool(t, 5), 2, NewSampler(5, ModeNoRepeat), false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start while in progress: got %v", err)
	}
	if _, err := s.Summary(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Summary while in progress: got %v", err)
	}

	// Complete: submitting again is invalid.
	if _, err := s.Submit("yes", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit("yes", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit("yes", g); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit after complete: got %v", err)
	}
}

func TestSessionStartInsufficientPoolKeepsState(t *testing.T) {
	s := NewSession(model.UserProfile{Division: "Dispatch"})
	err := s.Start(sessionPool(t, 2), 10, NewSampler(5, ModeNoRepeat), false)
	if !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected ErrInsufficientPool, got %v", err)
	}
	if s.State != model.StateNotStarted {
		t.Errorf("state changed on failed start: %q", s.State)
	}
	if len(s.Selected) != 0 || len(s.Responses) != 0 {
		t.Error("failed start left partial selection or responses")
	}
}

func TestSessionRestart(t *testing.T) {
	s := startedSession(t, 2)
	g := NewGrader(DefaultGraderConfig())
	if _, err := s.Submit("yes", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit("no", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	s.Restart()

	fresh := NewSession(s.Profile)
	if s.State != fresh.State {
		t.Errorf("state = %q, want %q", s.State, fresh.State)
	}
	if len(s.Selected) != 0 || len(s.Responses) != 0 || s.Score != 0 || s.CurrentIndex != 0 {
		t.Error("restart did not clear session fields")
	}
	if s.CompletedAt != nil || !s.StartedAt.IsZero() {
		t.Error("restart did not clear timestamps")
	}

	// A restarted session can be started again.
	if err := s.Start(sessionPool(t, 5), 2, NewSampler(5, ModeNoRepeat), false); err != nil {
		t.Fatalf("Start after restart: %v", err)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total int
		want         float64
	}{
		{7, 20, 35.0},
		{0, 0, 0},
		{3, 3, 100},
		{1, 3, 100.0 / 3.0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestSessionScoreCountsOnlyCorrect(t *testing.T) {
	s := startedSession(t, 2)
	g := NewGrader(DefaultGraderConfig())

	if _, err := s.Submit("yes", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Submit("absolutely not", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Score != 1 {
		t.Errorf("score = %d, want 1", sum.Score)
	}
	if sum.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", sum.Percentage)
	}
	if sum.Responses[1].Result != model.ResultIncorrect {
		t.Errorf("second response = %q, want Incorrect", sum.Responses[1].Result)
	}
}

package store

import (
	"testing"
	"time"

	"github.com/knowcheck/policyquiz/internal/model"
	"github.com/knowcheck/policyquiz/internal/quiz"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(t *testing.T) *quiz.Session {
	t.Helper()
	sess := quiz.NewSession(model.UserProfile{
		Division:         "Patrol",
		Role:             "LEO",
		SupervisorStatus: model.StatusSupervisor,
		QuestionCount:    2,
	})
	pool := []quiz.Weighted{
		{Record: model.QuestionRecord{
			PolicyNumber:    "3.2",
			PolicyName:      "Use of Force",
			Divisions:       []string{"Patrol", "Dispatch"},
			Chapter:         "Ch1",
			Question:        "When must force be reported?",
			Answer:          "Immediately",
			AcceptedAnswers: []string{"right away"},
		}, Weight: 1.0},
		{Record: model.QuestionRecord{
			Divisions: []string{"AllUsers"},
			Question:  "Is courtesy required?",
			Answer:    "Yes",
		}, Weight: 1.0},
	}
	if err := sess.Start(pool, 2, quiz.NewSampler(1, quiz.ModeNoRepeat), false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return sess
}

func TestSaveAndGetSession(t *testing.T) {
	s := newTestStore(t)
	sess := testSession(t)

	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.State != model.StateInProgress {
		t.Errorf("state = %q, want in_progress", got.State)
	}
	if got.Profile.Division != "Patrol" || got.Profile.Role != "LEO" {
		t.Errorf("profile not round-tripped: %+v", got.Profile)
	}
	if got.Profile.SupervisorStatus != model.StatusSupervisor {
		t.Errorf("supervisor status = %q", got.Profile.SupervisorStatus)
	}
	if len(got.Selected) != 2 {
		t.Fatalf("expected 2 selected questions, got %d", len(got.Selected))
	}

	// Snapshot fields survive, including the parsed lists.
	for _, q := range got.Selected {
		if q.Question == "When must force be reported?" {
			if len(q.Divisions) != 2 || q.Divisions[1] != "Dispatch" {
				t.Errorf("divisions not round-tripped: %v", q.Divisions)
			}
			if len(q.AcceptedAnswers) != 1 || q.AcceptedAnswers[0] != "right away" {
				t.Errorf("accepted answers not round-tripped: %v", q.AcceptedAnswers)
			}
		}
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetSession("missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing session")
	}
}

func TestSaveSessionProgressUpdates(t *testing.T) {
	s := newTestStore(t)
	sess := testSession(t)
	g := quiz.NewGrader(quiz.DefaultGraderConfig())

	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// Answer both questions, saving after each like the handler does.
	for i := 0; i < 2; i++ {
		q, err := sess.CurrentQuestion()
		if err != nil {
			t.Fatalf("CurrentQuestion: %v", err)
		}
		if _, err := sess.Submit(q.Answer, g); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if err := s.SaveSession(sess); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State != model.StateComplete {
		t.Errorf("state = %q, want complete", got.State)
	}
	if got.Score != 2 {
		t.Errorf("score = %d, want 2", got.Score)
	}
	if got.CurrentIndex != 2 {
		t.Errorf("current index = %d, want 2", got.CurrentIndex)
	}
	if len(got.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(got.Responses))
	}
	if got.Responses[0].Result != model.ResultCorrect {
		t.Errorf("first response = %q, want Correct", got.Responses[0].Result)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	s := newTestStore(t)

	first := testSession(t)
	second := testSession(t)
	for _, sess := range []*quiz.Session{first, second} {
		if err := s.SaveSession(sess); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	ids, err := s.ListSessionIDs()
	if err != nil {
		t.Fatalf("ListSessionIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(ids))
	}

	count, err := s.SessionCount()
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	if err := s.DeleteSession(first.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	count, _ = s.SessionCount()
	if count != 1 {
		t.Fatalf("expected count 1 after delete, got %d", count)
	}
	got, err := s.GetSession(first.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Error("deleted session still present")
	}
}

func TestBankMetadata(t *testing.T) {
	s := newTestStore(t)

	// Missing keys read back as zero values.
	info, err := s.GetBankInfo()
	if err != nil {
		t.Fatalf("GetBankInfo: %v", err)
	}
	if info.SourcePath != "" || info.Records != 0 {
		t.Errorf("expected empty info, got %+v", info)
	}

	want := model.BankInfo{
		SourcePath:  "/data/policy_questions.xlsx",
		ContentHash: "abc123",
		LoadedAt:    time.Now().Truncate(time.Second),
		Records:     42,
	}
	if err := s.SetBankInfo(want); err != nil {
		t.Fatalf("SetBankInfo: %v", err)
	}

	info, err = s.GetBankInfo()
	if err != nil {
		t.Fatalf("GetBankInfo: %v", err)
	}
	if info.SourcePath != want.SourcePath || info.ContentHash != want.ContentHash || info.Records != want.Records {
		t.Errorf("info = %+v, want %+v", info, want)
	}
	if !info.LoadedAt.Equal(want.LoadedAt) {
		t.Errorf("loaded_at = %v, want %v", info.LoadedAt, want.LoadedAt)
	}

	// Upsert overwrites.
	if err := s.SetMetadata("content_hash", "def456"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	hash, _ := s.GetMetadata("content_hash")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)
	sess := testSession(t)
	g := quiz.NewGrader(quiz.DefaultGraderConfig())

	q, _ := sess.CurrentQuestion()
	if _, err := sess.Submit(q.Answer, g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := sess.Submit("wrong", g); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SetBankInfo(model.BankInfo{SourcePath: "bank.csv"}); err != nil {
		t.Fatalf("SetBankInfo: %v", err)
	}

	export, err := s.ExportAllSessions()
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if export.BankSource != "bank.csv" {
		t.Errorf("bank source = %q", export.BankSource)
	}
	if len(export.Sessions) != 1 {
		t.Fatalf("expected 1 exported session, got %d", len(export.Sessions))
	}
	se := export.Sessions[0]
	if se.Total != 2 {
		t.Errorf("total = %d, want 2", se.Total)
	}
	if se.Score != 1 {
		t.Errorf("score = %d, want 1", se.Score)
	}
	if se.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", se.Percentage)
	}
	if len(se.Responses) != 2 {
		t.Errorf("expected 2 responses, got %d", len(se.Responses))
	}
}

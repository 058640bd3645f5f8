package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/knowcheck/policyquiz/internal/model"
	"github.com/knowcheck/policyquiz/internal/quiz"

	_ "modernc.org/sqlite"
)

// Store persists quiz sessions between HTTP interactions. The quiz
// package itself never touches it; handlers save and load sessions
// around each state transition.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		division TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		supervisor_status TEXT NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'not_started',
		score INTEGER NOT NULL DEFAULT 0,
		current_index INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS session_questions (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		policy_number TEXT NOT NULL DEFAULT '',
		policy_name TEXT NOT NULL DEFAULT '',
		divisions TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		function TEXT NOT NULL DEFAULT '',
		chapter TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		accepted_answers TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS responses (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		policy_number TEXT NOT NULL DEFAULT '',
		policy_name TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL,
		submitted_answer TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		result TEXT NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE TABLE IF NOT EXISTS bank_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveSession upserts a session with its question snapshot and
// responses in one transaction.
func (s *Store) SaveSession(sess *quiz.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var startedAt any
	if !sess.StartedAt.IsZero() {
		startedAt = sess.StartedAt
	}
	_, err = tx.Exec(
		`INSERT INTO sessions (id, division, role, supervisor_status, question_count, state, score, current_index, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			score = excluded.score,
			current_index = excluded.current_index,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		sess.ID, sess.Profile.Division, sess.Profile.Role, sess.Profile.SupervisorStatus,
		sess.Profile.QuestionCount, sess.State, sess.Score, sess.CurrentIndex, startedAt, sess.CompletedAt,
	)
	if err != nil {
		return err
	}

	// Snapshot and responses are replaced wholesale; both are small and
	// append-only in practice.
	if _, err := tx.Exec(`DELETE FROM session_questions WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, q := range sess.Selected {
		_, err := tx.Exec(
			`INSERT INTO session_questions (session_id, position, policy_number, policy_name, divisions, role, function, chapter, question, answer, accepted_answers)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, q.PolicyNumber, q.PolicyName, strings.Join(q.Divisions, ", "),
			q.Role, q.Function, q.Chapter, q.Question, q.Answer, strings.Join(q.AcceptedAnswers, ", "),
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM responses WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, r := range sess.Responses {
		_, err := tx.Exec(
			`INSERT INTO responses (session_id, position, policy_number, policy_name, question, submitted_answer, correct_answer, result)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, r.PolicyNumber, r.PolicyName, r.Question, r.SubmittedAnswer, r.CorrectAnswer, r.Result,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSession rebuilds a session by ID. Returns nil when not found.
func (s *Store) GetSession(id string) (*quiz.Session, error) {
	sess := &quiz.Session{}
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT id, division, role, supervisor_status, question_count, state, score, current_index, started_at, completed_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.Profile.Division, &sess.Profile.Role, &sess.Profile.SupervisorStatus,
		&sess.Profile.QuestionCount, &sess.State, &sess.Score, &sess.CurrentIndex, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		sess.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}

	sess.Selected, err = s.sessionQuestions(id)
	if err != nil {
		return nil, err
	}
	sess.Responses, err = s.sessionResponses(id)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) sessionQuestions(sessionID string) ([]model.QuestionRecord, error) {
	rows, err := s.db.Query(
		`SELECT policy_number, policy_name, divisions, role, function, chapter, question, answer, accepted_answers
		 FROM session_questions WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.QuestionRecord
	for rows.Next() {
		var q model.QuestionRecord
		var divisions, accepted string
		if err := rows.Scan(&q.PolicyNumber, &q.PolicyName, &divisions, &q.Role, &q.Function,
			&q.Chapter, &q.Question, &q.Answer, &accepted); err != nil {
			return nil, err
		}
		q.Divisions = splitList(divisions)
		q.AcceptedAnswers = splitList(accepted)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Store) sessionResponses(sessionID string) ([]model.ResponseRecord, error) {
	rows, err := s.db.Query(
		`SELECT policy_number, policy_name, question, submitted_answer, correct_answer, result
		 FROM responses WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.ResponseRecord
	for rows.Next() {
		var r model.ResponseRecord
		if err := rows.Scan(&r.PolicyNumber, &r.PolicyName, &r.Question, &r.SubmittedAnswer, &r.CorrectAnswer, &r.Result); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// ListSessionIDs returns all session IDs, newest first.
func (s *Store) ListSessionIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes a session and its dependent rows.
func (s *Store) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM responses WHERE session_id = ?`,
		`DELETE FROM session_questions WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

package store

import (
	"fmt"
	"time"

	"github.com/knowcheck/policyquiz/internal/model"
	"github.com/knowcheck/policyquiz/internal/quiz"
)

// ExportAllSessions builds the export report from every stored session.
func (s *Store) ExportAllSessions() (*model.ResultExport, error) {
	ids, err := s.ListSessionIDs()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	info, err := s.GetBankInfo()
	if err != nil {
		return nil, fmt.Errorf("bank info: %w", err)
	}

	export := &model.ResultExport{
		GeneratedAt: time.Now(),
		BankSource:  info.SourcePath,
	}
	for _, id := range ids {
		sess, err := s.GetSession(id)
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", id, err)
		}
		if sess == nil {
			continue
		}
		export.Sessions = append(export.Sessions, model.SessionExport{
			ID:               sess.ID,
			Division:         sess.Profile.Division,
			Role:             sess.Profile.Role,
			SupervisorStatus: sess.Profile.SupervisorStatus,
			State:            sess.State,
			Score:            sess.Score,
			Total:            sess.Total(),
			Percentage:       quiz.Percentage(sess.Score, sess.Total()),
			StartedAt:        sess.StartedAt,
			CompletedAt:      sess.CompletedAt,
			Responses:        sess.Responses,
		})
	}
	return export, nil
}

package store

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/knowcheck/policyquiz/internal/model"
)

// SetMetadata upserts a key-value pair in the bank_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO bank_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM bank_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetBankInfo records where the current question bank came from.
func (s *Store) SetBankInfo(info model.BankInfo) error {
	pairs := []struct{ k, v string }{
		{"source_path", info.SourcePath},
		{"content_hash", info.ContentHash},
		{"loaded_at", info.LoadedAt.Format(time.RFC3339)},
		{"records", strconv.Itoa(info.Records)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetBankInfo reads the stored bank provenance.
func (s *Store) GetBankInfo() (model.BankInfo, error) {
	var info model.BankInfo
	var err error

	if info.SourcePath, err = s.GetMetadata("source_path"); err != nil {
		return info, err
	}
	if info.ContentHash, err = s.GetMetadata("content_hash"); err != nil {
		return info, err
	}
	loadedAt, err := s.GetMetadata("loaded_at")
	if err != nil {
		return info, err
	}
	if loadedAt != "" {
		if info.LoadedAt, err = time.Parse(time.RFC3339, loadedAt); err != nil {
			return info, err
		}
	}
	records, err := s.GetMetadata("records")
	if err != nil {
		return info, err
	}
	if records != "" {
		if info.Records, err = strconv.Atoi(records); err != nil {
			return info, err
		}
	}
	return info, nil
}

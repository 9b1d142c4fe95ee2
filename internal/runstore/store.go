// Package runstore persists run history and balance snapshots in SQLite.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists the run, its outcomes and the balance snapshots of the
// successful outcomes.
func (s *Store) SaveRun(summary *domain.RunSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, finished_at, succeeded, failed)
		VALUES (?, ?, ?, ?, ?)
	`, summary.RunID, summary.StartedAt, summary.FinishedAt, summary.SuccessCount(), summary.FailureCount())
	if err != nil {
		return err
	}

	for _, outcome := range summary.Outcomes {
		_, err = tx.Exec(`
			INSERT INTO outcomes (run_id, account, account_key, provider, method, status, detail, quota, used_quota, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			summary.RunID,
			outcome.Account,
			historyKey(outcome),
			outcome.Provider,
			string(outcome.Method),
			string(outcome.Status),
			outcome.Detail,
			outcome.Quota,
			outcome.UsedQuota,
			outcome.Timestamp,
		)
		if err != nil {
			return err
		}

		if outcome.Status.Succeeded() && outcome.Quota > 0 {
			_, err = tx.Exec(`
				INSERT INTO balances (account_key, provider, quota, used_quota, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(account_key, provider) DO UPDATE SET
					quota = excluded.quota,
					used_quota = excluded.used_quota,
					updated_at = excluded.updated_at
			`, historyKey(outcome), outcome.Provider, outcome.Quota, outcome.UsedQuota, outcome.Timestamp)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// historyKey returns the stable account key of an outcome, falling back to
// the display name when none was set.
func historyKey(outcome domain.Outcome) string {
	if outcome.AccountKey != "" {
		return outcome.AccountKey
	}
	return outcome.Account
}

// LastSuccess returns when the account last checked in successfully on the
// provider. A zero time with a nil error means it never has.
func (s *Store) LastSuccess(accountKey, providerName string) (time.Time, error) {
	row := s.db.QueryRow(`
		SELECT timestamp FROM outcomes
		WHERE account_key = ? AND provider = ? AND status IN (?, ?)
		ORDER BY timestamp DESC LIMIT 1
	`, accountKey, providerName, string(domain.StatusSuccess), string(domain.StatusAlreadyCheckedIn))

	var last time.Time
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return last, nil
}

// BalancesChanged reports whether any successful outcome carries a balance
// that differs from the stored snapshot. Accounts without a snapshot count
// as changed.
func (s *Store) BalancesChanged(outcomes []domain.Outcome) (bool, error) {
	for _, outcome := range outcomes {
		if !outcome.Status.Succeeded() || outcome.Quota == 0 {
			continue
		}

		row := s.db.QueryRow(`
			SELECT quota, used_quota FROM balances WHERE account_key = ? AND provider = ?
		`, historyKey(outcome), outcome.Provider)

		var quota, used int64
		if err := row.Scan(&quota, &used); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return true, nil
			}
			return false, err
		}
		if quota != outcome.Quota || used != outcome.UsedQuota {
			return true, nil
		}
	}
	return false, nil
}

// RunRecord is one row of the run history
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, succeeded, failed
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.StartedAt, &rec.FinishedAt, &rec.Succeeded, &rec.Failed); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// OutcomesForRun returns the outcomes recorded for a run, in insertion order
func (s *Store) OutcomesForRun(runID string) ([]domain.Outcome, error) {
	rows, err := s.db.Query(`
		SELECT account, account_key, provider, method, status, detail, quota, used_quota, timestamp
		FROM outcomes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var outcome domain.Outcome
		var method, status string
		err := rows.Scan(&outcome.Account, &outcome.AccountKey, &outcome.Provider, &method, &status, &outcome.Detail, &outcome.Quota, &outcome.UsedQuota, &outcome.Timestamp)
		if err != nil {
			return nil, err
		}
		outcome.Method = domain.AuthMethod(method)
		outcome.Status = domain.Status(status)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run result constants.
const (
	ResultMerged        = "merged"
	ResultAlreadyMerged = "already_merged"
	ResultRejected      = "rejected"
	ResultError         = "error"
)

// Fixed-width UTC timestamp format; lexicographic order matches time order.
const timeFormat = "2006-01-02T15:04:05.000Z"

// RunRecord is one ledger entry: the terminal result of a single gate run.
//
//nolint:govet // Logical field grouping preferred over alignment
type RunRecord struct {
	CreatedAt    time.Time `json:"created_at"`
	ID           string    `json:"id"`
	PRURL        string    `json:"pr_url"`
	RepoPath     string    `json:"repo_path"`
	PRNumber     int       `json:"pr_number"`
	Result       string    `json:"result"` // "merged", "already_merged", "rejected", "error"
	Detail       string    `json:"detail,omitempty"`
	TargetBranch string    `json:"target_branch,omitempty"`
	Approvals    int       `json:"approvals"`
	DurationMS   int64     `json:"duration_ms"`
}

// GenerateRunID generates a new UUID for a run.
func GenerateRunID() string {
	return uuid.New().String()
}

// ValidResults returns all valid run results.
func ValidResults() []string {
	return []string{ResultMerged, ResultAlreadyMerged, ResultRejected, ResultError}
}

// IsValidResult checks if a result string is valid.
func IsValidResult(result string) bool {
	for _, valid := range ValidResults() {
		if result == valid {
			return true
		}
	}
	return false
}

// RecordRun inserts one run record, filling ID and CreatedAt when unset.
func (s *Store) RecordRun(rec *RunRecord) error {
	if rec.ID == "" {
		rec.ID = GenerateRunID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if !IsValidResult(rec.Result) {
		return fmt.Errorf("invalid run result %q", rec.Result)
	}

	query := `
		INSERT INTO runs (
			id, pr_url, repo_path, pr_number, result, detail,
			target_branch, approvals, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.ID, rec.PRURL, rec.RepoPath, rec.PRNumber, rec.Result, rec.Detail,
		rec.TargetBranch, rec.Approvals, rec.DurationMS,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}

	s.logger.Debug("recorded run %s: %s #%d -> %s", rec.ID, rec.RepoPath, rec.PRNumber, rec.Result)
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, pr_url, repo_path, pr_number, result, detail,
		       target_branch, approvals, duration_ms, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// RunsForRepo returns the newest runs for one repository, most recent first.
func (s *Store) RunsForRepo(repoPath string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, pr_url, repo_path, pr_number, result, detail,
		       target_branch, approvals, duration_ms, created_at
		FROM runs
		WHERE repo_path = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, repoPath, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for %s: %w", repoPath, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRuns(rows)
}

// CountByResult returns run counts grouped by result.
func (s *Store) CountByResult() (map[string]int, error) {
	rows, err := s.db.Query("SELECT result, COUNT(*) FROM runs GROUP BY result")
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var result string
		var count int
		if err := rows.Scan(&result, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts[result] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run count iteration error: %w", err)
	}
	return counts, nil
}

func scanRuns(rows *sql.Rows) ([]*RunRecord, error) {
	var runs []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var createdAt string
		if err := rows.Scan(
			&rec.ID, &rec.PRURL, &rec.RepoPath, &rec.PRNumber, &rec.Result,
			&rec.Detail, &rec.TargetBranch, &rec.Approvals, &rec.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		ts, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = ts

		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run iteration error: %w", err)
	}
	return runs, nil
}

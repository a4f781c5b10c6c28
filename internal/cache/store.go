package cache

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// Origin says where a classified message came from
type Origin string

const (
	OriginInbox Origin = "inbox"
	OriginFile  Origin = "file"
	OriginMbox  Origin = "mbox"
)

// FetchRun summarises one inbox retrieval
type FetchRun struct {
	ID        int64
	Account   string
	Fetched   int
	Skipped   int
	Duration  time.Duration
	StartedAt time.Time
}

// Verdict is one stored classification. It carries no message content.
type Verdict struct {
	ID           int64
	MessageID    string
	Sender       string
	Origin       Origin
	Label        types.Label
	Source       types.Source
	ClassifiedAt time.Time
}

// Store provides methods for storing and retrieving history
type Store struct {
	cache  *Cache
	logger *logrus.Logger
}

// NewStore creates a new store instance
func NewStore(cache *Cache, logger *logrus.Logger) *Store {
	return &Store{
		cache:  cache,
		logger: logger,
	}
}

// RecordFetch stores a fetch run and returns its ID
func (s *Store) RecordFetch(run *FetchRun) (int64, error) {
	query := `
		INSERT INTO fetch_runs (account, fetched, skipped, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.cache.DB().Exec(query,
		run.Account,
		run.Fetched,
		run.Skipped,
		run.Duration.Milliseconds(),
		run.StartedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record fetch run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get fetch run ID: %w", err)
	}
	run.ID = id
	return id, nil
}

// RecordVerdict stores a classification for email. email may be nil.
func (s *Store) RecordVerdict(email *types.Email, origin Origin, result types.ClassificationResult) (int64, error) {
	v := &Verdict{
		Origin:       origin,
		Label:        result.Label,
		Source:       result.Source,
		ClassifiedAt: time.Now().UTC(),
	}
	if email != nil {
		v.MessageID = email.MessageID
		v.Sender = email.SenderAddress()
	}

	query := `
		INSERT INTO verdicts (message_id, sender, origin, label, source, classified_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.cache.DB().Exec(query,
		v.MessageID,
		v.Sender,
		string(v.Origin),
		string(v.Label),
		string(v.Source),
		v.ClassifiedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record verdict: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get verdict ID: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"id":     id,
		"label":  v.Label,
		"source": v.Source,
		"origin": v.Origin,
	}).Debug("Recorded verdict")
	return id, nil
}

// RecentFetches returns the latest fetch runs, newest first
func (s *Store) RecentFetches(limit int) ([]FetchRun, error) {
	rows, err := s.cache.DB().Query(`
		SELECT id, account, fetched, skipped, duration_ms, started_at
		FROM fetch_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		var (
			run        FetchRun
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.Account, &run.Fetched, &run.Skipped, &durationMS, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fetch run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list fetch runs: %w", err)
	}
	return runs, nil
}

// LabelCounts returns how many verdicts exist per label
func (s *Store) LabelCounts() (map[types.Label]int, error) {
	rows, err := s.cache.DB().Query("SELECT label, COUNT(*) FROM verdicts GROUP BY label")
	if err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Label]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan verdict count: %w", err)
		}
		counts[types.Label(label)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count verdicts: %w", err)
	}
	return counts, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// SearchOptions filters stored verdicts
type SearchOptions struct {
	Label  *types.Label
	Source *types.Source
	Origin *Origin
	Sender *string
	Since  *time.Time
	Limit  int
}

// Search returns matching verdicts, newest first
func (s *Store) Search(opts SearchOptions) ([]Verdict, error) {
	var conditions []string
	var args []interface{}

	// Build WHERE clause
	if opts.Label != nil {
		conditions = append(conditions, "label = ?")
		args = append(args, string(*opts.Label))
	}

	if opts.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, string(*opts.Source))
	}

	if opts.Origin != nil {
		conditions = append(conditions, "origin = ?")
		args = append(args, string(*opts.Origin))
	}

	if opts.Sender != nil {
		conditions = append(conditions, "sender LIKE ?")
		args = append(args, "%"+strings.ToLower(*opts.Sender)+"%")
	}

	if opts.Since != nil {
		conditions = append(conditions, "classified_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, message_id, sender, origin, label, source, classified_at
		FROM verdicts
		%s
		ORDER BY classified_at DESC, id DESC
		LIMIT ?
	`, whereClause)

	args = append(args, clampLimit(opts.Limit))

	rows, err := s.cache.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search verdicts: %w", err)
	}
	defer rows.Close()

	var results []Verdict
	for rows.Next() {
		var (
			v                     Verdict
			origin, label, source string
		)
		err := rows.Scan(
			&v.ID,
			&v.MessageID,
			&v.Sender,
			&origin,
			&label,
			&source,
			&v.ClassifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.Origin = Origin(origin)
		v.Label = types.Label(label)
		v.Source = types.Source(source)
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search verdicts: %w", err)
	}

	return results, nil
}

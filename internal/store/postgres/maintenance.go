package postgres

import (
	"context"
	"time"
)

// PruneArchives removes archived customers and audit events older than
// the retention cutoff.
func (s *Store) PruneArchives(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM customers_archive WHERE archived_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	pruned := int(tag.RowsAffected())

	if _, err := s.pool.Exec(ctx, `
		DELETE FROM queue_events WHERE occurred_at < $1
	`, olderThan); err != nil {
		return pruned, err
	}
	return pruned, nil
}

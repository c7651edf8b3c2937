// CLAUDE:SUMMARY Aggregate cache statistics: entry counts, analyzed count, byte totals, age range.
package mediacache

import (
	"context"
	"fmt"
	"time"
)

// Stats reports aggregate figures over the whole cache.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	var oldest, newest *int64
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN analysis_json IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(size_bytes), 0),
		       MIN(created_at), MAX(created_at)
		FROM media_entries`).Scan(&s.Entries, &s.Analyzed, &s.TotalBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("mediacache: stats: %w", err)
	}
	if oldest != nil {
		t := time.Unix(*oldest, 0).UTC()
		s.Oldest = &t
	}
	if newest != nil {
		t := time.Unix(*newest, 0).UTC()
		s.Newest = &t
	}

	s.ByMediaType = map[string]int{}
	rows, err := c.db.QueryContext(ctx,
		`SELECT media_type, COUNT(*) FROM media_entries GROUP BY media_type`)
	if err != nil {
		return nil, fmt.Errorf("mediacache: stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mt string
		var n int
		if err := rows.Scan(&mt, &n); err != nil {
			return nil, fmt.Errorf("mediacache: scan type count: %w", err)
		}
		s.ByMediaType[mt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mediacache: stats rows: %w", err)
	}
	return &s, nil
}

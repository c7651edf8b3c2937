// CLAUDE:SUMMARY Age-based cache eviction: removes expired rows and orphaned payload files.
package mediacache

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Cleanup deletes entries created before now minus maxAgeDays and removes
// payload files no remaining entry references. It is the only deletion path;
// shared payload files survive while any entry still points at them.
func (c *Cache) Cleanup(ctx context.Context, maxAgeDays int) (*CleanupResult, error) {
	cutoff := c.now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour).Unix()

	rows, err := c.db.QueryContext(ctx,
		`SELECT url, file_path, size_bytes FROM media_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mediacache: cleanup select: %w", err)
	}
	type victim struct {
		url  string
		path string
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.url, &v.path, &v.size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("mediacache: cleanup scan: %w", err)
		}
		victims = append(victims, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mediacache: cleanup rows: %w", err)
	}

	res := &CleanupResult{}
	for _, v := range victims {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM media_entries WHERE url = ?`, v.url); err != nil {
			return nil, fmt.Errorf("mediacache: cleanup delete: %w", err)
		}
		res.Removed++
		res.BytesReclaimed += v.size

		var refs int
		if err := c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media_entries WHERE file_path = ?`, v.path).Scan(&refs); err != nil {
			return nil, fmt.Errorf("mediacache: cleanup refcount: %w", err)
		}
		if refs == 0 {
			if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
				c.logger.Warn("cleanup: payload removal failed", "path", v.path, "error", err)
			}
		}
	}
	return res, nil
}

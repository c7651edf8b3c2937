// CLAUDE:SUMMARY Predicate search over cached entries: brand, media type, analysis fields.
package mediacache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Search scans entries matching every provided predicate. Absent predicates
// are wildcards. HasPeople and ColorContains look inside the attached
// analysis JSON; entries without analysis never match those two.
func (c *Cache) Search(ctx context.Context, q Query) ([]*Entry, error) {
	where := []string{"1=1"}
	args := []any{}
	if q.BrandName != "" {
		where = append(where, "brand_name LIKE ?")
		args = append(args, "%"+q.BrandName+"%")
	}
	if q.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, q.MediaType)
	}
	if q.HasPeople != nil || q.ColorContains != "" {
		where = append(where, "analysis_json IS NOT NULL")
	}

	query := `
		SELECT url, file_path, content_type, media_type, brand_name, ad_id,
		       size_bytes, analysis_json, created_at
		FROM media_entries WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mediacache: search: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if !matchAnalysis(e, q) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mediacache: search rows: %w", err)
	}
	return out, nil
}

// matchAnalysis applies the analysis-backed predicates against the entry's
// analysis JSON. Malformed analysis payloads simply fail to match.
func matchAnalysis(e *Entry, q Query) bool {
	if q.HasPeople == nil && q.ColorContains == "" {
		return true
	}
	if len(e.Analysis) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(e.Analysis, &fields); err != nil {
		return false
	}
	if q.HasPeople != nil {
		got, ok := fields["has_people"].(bool)
		if !ok || got != *q.HasPeople {
			return false
		}
	}
	if q.ColorContains != "" {
		// Color descriptions vary in shape across analysis versions, so
		// match against the serialized analysis text rather than one field.
		if !strings.Contains(strings.ToLower(string(e.Analysis)), strings.ToLower(q.ColorContains)) {
			return false
		}
	}
	return true
}

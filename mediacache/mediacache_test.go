package mediacache

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/adveille/adveille/dbopen"
	_ "modernc.org/sqlite"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	db := dbopen.OpenMemory(t)
	c, err := New(db, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// WHAT: Put twice under the same URL returns the original entry and writes
// one payload file.
// WHY: the pipeline retries downloads; duplicate storage would leak disk.
func TestPutIdempotent(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	first, err := c.Put(ctx, " https://cdn.example/a.jpg ", []byte("jpegbytes"), "image/jpeg", Meta{BrandName: "acme", AdID: "ad1"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	second, err := c.Put(ctx, "https://cdn.example/a.jpg", []byte("different"), "image/png", Meta{})
	if err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if second.FilePath != first.FilePath {
		t.Errorf("second Put wrote a new payload: %s vs %s", second.FilePath, first.FilePath)
	}
	if second.ContentType != "image/jpeg" {
		t.Errorf("second Put replaced metadata: content_type=%s", second.ContentType)
	}
	if got, err := os.ReadFile(first.FilePath); err != nil || string(got) != "jpegbytes" {
		t.Errorf("payload = %q, err %v", got, err)
	}
	if first.MediaType != MediaImage {
		t.Errorf("media type = %s, want %s", first.MediaType, MediaImage)
	}
}

// WHAT: identical bytes under two URLs share one payload file but keep
// separate entries.
func TestPutSharedPayload(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	a, _ := c.Put(ctx, "https://cdn.example/a", []byte("samebytes"), "image/jpeg", Meta{})
	b, _ := c.Put(ctx, "https://cdn.example/b", []byte("samebytes"), "image/jpeg", Meta{})
	if a.FilePath != b.FilePath {
		t.Errorf("payload not shared: %s vs %s", a.FilePath, b.FilePath)
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("entries = %d, want 2", stats.Entries)
	}
}

// WHAT: AttachAnalysis stores JSON retrievable via Get; attaching to an
// unknown URL is a silent no-op.
// WHY: analysis is best-effort, so a miss must not fail the pipeline.
func TestAttachAnalysis(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if _, err := c.Put(ctx, "https://cdn.example/img", []byte("x"), "image/png", Meta{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.AttachAnalysis(ctx, "https://cdn.example/img", map[string]any{"has_people": true, "colors": []string{"red"}}); err != nil {
		t.Fatalf("AttachAnalysis: %v", err)
	}
	e, err := c.Get(ctx, "https://cdn.example/img")
	if err != nil || e == nil {
		t.Fatalf("Get: entry=%v err=%v", e, err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(e.Analysis, &parsed); err != nil {
		t.Fatalf("analysis JSON: %v", err)
	}
	if parsed["has_people"] != true {
		t.Errorf("has_people = %v", parsed["has_people"])
	}

	if err := c.AttachAnalysis(ctx, "https://cdn.example/missing", map[string]any{"x": 1}); err != nil {
		t.Errorf("attach to missing entry should no-op, got %v", err)
	}
}

// WHAT: Search ANDs predicates; analysis predicates exclude un-analyzed
// entries.
func TestSearch(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	c.Put(ctx, "u1", []byte("1"), "image/jpeg", Meta{BrandName: "gymshark"})
	c.Put(ctx, "u2", []byte("2"), "video/mp4", Meta{BrandName: "gymshark"})
	c.Put(ctx, "u3", []byte("3"), "image/jpeg", Meta{BrandName: "acme"})
	c.AttachAnalysis(ctx, "u1", map[string]any{"has_people": true, "colors": []string{"deep red", "black"}})
	c.AttachAnalysis(ctx, "u3", map[string]any{"has_people": false, "colors": []string{"blue"}})

	byBrand, err := c.Search(ctx, Query{BrandName: "gym"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(byBrand) != 2 {
		t.Fatalf("brand search = %d entries, want 2", len(byBrand))
	}

	yes := true
	people, _ := c.Search(ctx, Query{HasPeople: &yes})
	if len(people) != 1 || people[0].URL != "u1" {
		t.Errorf("has_people search = %v", people)
	}

	// u2 has no analysis, so the people predicate must drop it even though
	// the brand matches.
	both, _ := c.Search(ctx, Query{BrandName: "gymshark", HasPeople: &yes})
	if len(both) != 1 || both[0].URL != "u1" {
		t.Errorf("combined search = %v", both)
	}

	red, _ := c.Search(ctx, Query{ColorContains: "RED"})
	if len(red) != 1 || red[0].URL != "u1" {
		t.Errorf("color search = %v", red)
	}

	vids, _ := c.Search(ctx, Query{MediaType: MediaVideo})
	if len(vids) != 1 || vids[0].URL != "u2" {
		t.Errorf("media type search = %v", vids)
	}
}

// WHAT: Cleanup removes entries older than the cutoff and their payload
// files; cleanup(0) expires a backdated entry while keeping fresh ones.
func TestCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t)
	now := time.Now()
	clock := now.Add(-10 * 24 * time.Hour)
	c, err := New(db, t.TempDir(), nil, WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	old, _ := c.Put(ctx, "old", []byte("oldbytes"), "image/jpeg", Meta{})
	clock = now
	fresh, _ := c.Put(ctx, "fresh", []byte("freshbytes"), "image/jpeg", Meta{})

	res, err := c.Cleanup(ctx, 0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if res.Removed != 1 || res.BytesReclaimed != int64(len("oldbytes")) {
		t.Errorf("cleanup = %+v", res)
	}
	if _, err := os.Stat(old.FilePath); !os.IsNotExist(err) {
		t.Errorf("old payload still present: %v", err)
	}
	if _, err := os.Stat(fresh.FilePath); err != nil {
		t.Errorf("fresh payload missing: %v", err)
	}
	if e, _ := c.Get(ctx, "old"); e != nil {
		t.Errorf("old entry survived cleanup")
	}
	if e, _ := c.Get(ctx, "fresh"); e == nil {
		t.Errorf("fresh entry evicted")
	}
}

// WHAT: a payload shared by a surviving entry is not deleted when another
// entry referencing it expires.
func TestCleanupSharedPayloadKept(t *testing.T) {
	db := dbopen.OpenMemory(t)
	now := time.Now()
	clock := now.Add(-10 * 24 * time.Hour)
	c, err := New(db, t.TempDir(), nil, WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	c.Put(ctx, "old-ref", []byte("shared"), "image/jpeg", Meta{})
	clock = now
	kept, _ := c.Put(ctx, "fresh-ref", []byte("shared"), "image/jpeg", Meta{})

	if _, err := c.Cleanup(ctx, 0); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(kept.FilePath); err != nil {
		t.Errorf("shared payload deleted while still referenced: %v", err)
	}
}

// WHAT: Stats covers analyzed counts, byte totals and timestamp range.
func TestStats(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if s, err := c.Stats(ctx); err != nil || s.Entries != 0 || s.Oldest != nil {
		t.Fatalf("empty stats = %+v err=%v", s, err)
	}

	c.Put(ctx, "a", []byte("12345"), "image/jpeg", Meta{})
	c.Put(ctx, "b", []byte("1234567890"), "video/mp4", Meta{})
	c.AttachAnalysis(ctx, "a", map[string]any{"ok": true})

	s, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Entries != 2 || s.Analyzed != 1 || s.TotalBytes != 15 {
		t.Errorf("stats = %+v", s)
	}
	if s.ByMediaType[MediaImage] != 1 || s.ByMediaType[MediaVideo] != 1 {
		t.Errorf("by media type = %v", s.ByMediaType)
	}
	if s.Oldest == nil || s.Newest == nil {
		t.Errorf("timestamps missing: %+v", s)
	}
}

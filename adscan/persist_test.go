package adscan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewResultStore: %v", err)
	}
	return store
}

func record(id, url string) *FileRecord {
	return &FileRecord{AdID: id, ExternalURLs: []string{url}, URLOccur: 1}
}

// WHAT: Save writes a well-formed indented JSON array, leaves no temp file
// behind and does not escape HTML in URLs.
func TestSave(t *testing.T) {
	store := testStore(t)

	recs := []*FileRecord{record("a1", "https://brandx.com/offer?a=1&b=2")}
	path, err := store.Save(recs, "out.json")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.Contains(string(data), `\u0026`) {
		t.Error("HTML escaping applied to URLs")
	}
	var got []*FileRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("parse saved file: %v", err)
	}
	if len(got) != 1 || got[0].AdID != "a1" {
		t.Errorf("round trip = %+v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

// WHAT: appending the same batch twice admits it once; the file's URL set
// never shrinks and never duplicates.
func TestAppendIdempotent(t *testing.T) {
	store := testStore(t)
	batch := []*FileRecord{
		record("a1", "https://brandx.com/one"),
		record("a2", "https://brandx.com/two"),
	}

	_, n1, err := store.Append(batch, "ads.json", 0)
	if err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if n1 != 2 {
		t.Errorf("first append admitted %d, want 2", n1)
	}

	_, n2, err := store.Append(batch, "ads.json", 0)
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if n2 != 0 {
		t.Errorf("second append admitted %d, want 0", n2)
	}

	recs, urls, err := store.LoadExisting("ads.json")
	if err != nil {
		t.Fatalf("LoadExisting: %v", err)
	}
	if len(recs) != 2 || len(urls) != 2 {
		t.Errorf("store = %d records, %d urls, want 2/2", len(recs), len(urls))
	}
}

// WHAT: append is first-seen-wins within a batch too, and maxAds caps the
// newly admitted records only (existing records are untouched).
func TestAppendFirstSeenAndCap(t *testing.T) {
	store := testStore(t)

	if _, _, err := store.Append([]*FileRecord{record("old", "https://brandx.com/old")}, "ads.json", 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	batch := []*FileRecord{
		record("dup", "https://brandx.com/old"), // already in file
		record("n1", "https://brandx.com/n1"),
		record("n1bis", "https://brandx.com/n1"), // dup within batch
		record("n2", "https://brandx.com/n2"),
		record("n3", "https://brandx.com/n3"),
	}
	_, n, err := store.Append(batch, "ads.json", 2)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 2 {
		t.Errorf("admitted %d, want 2 (cap)", n)
	}

	recs, _, err := store.LoadExisting("ads.json")
	if err != nil {
		t.Fatalf("LoadExisting: %v", err)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.AdID)
	}
	want := []string{"old", "n1", "n2"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

// WHAT: LoadExisting on a missing file yields an empty store, not an error.
func TestLoadExistingAbsent(t *testing.T) {
	store := testStore(t)
	recs, urls, err := store.LoadExisting("never-written.json")
	if err != nil {
		t.Fatalf("LoadExisting: %v", err)
	}
	if len(recs) != 0 || len(urls) != 0 {
		t.Errorf("absent file = %d records, %d urls", len(recs), len(urls))
	}
}

// WHAT: filenames are confined to the results directory.
func TestSaveRejectsTraversal(t *testing.T) {
	store := testStore(t)
	// Base is stripped before the path check, so a traversal attempt
	// degrades to a plain filename rather than escaping the directory.
	path, err := store.Save(nil, "../../etc/passwd.json")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "passwd.json" || strings.Contains(path, "..") {
		t.Errorf("path escaped results dir: %s", path)
	}
}

// WHAT: the default filename consolidates by country with ALL fallback.
func TestDefaultFilename(t *testing.T) {
	if got := DefaultFilename("DE"); got != "ads_found_DE.json" {
		t.Errorf("DefaultFilename(DE) = %s", got)
	}
	if got := DefaultFilename(""); got != "ads_found_ALL.json" {
		t.Errorf("DefaultFilename(\"\") = %s", got)
	}
}

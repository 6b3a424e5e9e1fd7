// Package store tests document the persistence contract:
// - one JSON document per calendar day, written by atomic replace
// - a missing document surfaces ErrNotFound (fatal-precondition seam)
// - LoadOrInit returns the empty skeleton for an unseen day
package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bilitrend/internal/dataset"
)

func int64p(v int64) *int64 { return &v }

func TestSaveLoadRoundtrip(t *testing.T) {
	s := New(t.TempDir())
	day := "2026-08-30"

	ds := dataset.New(day, 1700000000)
	ds.Upsert(dataset.Record{
		Bvid:        "BV1xx411c7mD",
		Aid:         170001,
		Label:       1,
		Title:       "example",
		Tid:         int64p(4),
		Tname:       "game",
		Pubdate:     1699990000,
		FirstSeenTs: 1700000000,
		Snapshots:   map[string]dataset.Snapshot{"0h": {Ts: 1700000000, View: 1000, Like: 100, Coin: 10}},
		Features:    map[string]dataset.Features{},
	})
	ds.Recompute()

	if err := s.Save(day, ds); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.Load(day)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Date != day || got.Count != 1 {
		t.Errorf("loaded date=%q count=%d, want %q/1", got.Date, got.Count, day)
	}
	if !got.Has("BV1xx411c7mD") {
		t.Error("index not rebuilt on load")
	}
	rec, _ := got.Get("BV1xx411c7mD")
	if rec.Snapshots["0h"].View != 1000 {
		t.Errorf("snapshot lost in roundtrip: %+v", rec.Snapshots)
	}
}

func TestLoad_Missing(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Load("2026-01-01")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound for missing day, got %v", err)
	}
}

func TestLoadOrInit_NewDay(t *testing.T) {
	s := New(t.TempDir())

	ds, err := s.LoadOrInit("2026-08-30", 1700000000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Date != "2026-08-30" || ds.CaptureTs != 1700000000 {
		t.Errorf("skeleton = date %q capture_ts %d", ds.Date, ds.CaptureTs)
	}
	if len(ds.Videos) != 0 {
		t.Errorf("skeleton should have no videos, got %d", len(ds.Videos))
	}
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	day := "2026-08-30"

	if err := s.Save(day, dataset.New(day, 1)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if _, err := os.Stat(s.DailyPath(day) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after rename")
	}
}

func TestSaveRaw(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ts := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)

	path, err := s.SaveRaw(ts, 3, []byte(`{"code":0}`))
	if err != nil {
		t.Fatalf("save raw failed: %v", err)
	}

	if !strings.HasSuffix(path, filepath.Join("raw", "popular", "2026-08-30T123456_pn3.json")) {
		t.Errorf("unexpected raw path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("raw file unreadable: %v", err)
	}
	if string(data) != `{"code":0}` {
		t.Errorf("raw payload altered: %s", data)
	}
}

package store

import (
	"testing"
	"time"
)

func mustOpen(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRecordAndGet(t *testing.T) {
	idx := mustOpen(t)
	in := Capture{
		Channel:   2,
		Points:    1000,
		DT:        1e-8,
		Path:      "/data/wave-0001.csv",
		CreatedAt: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	}
	id, err := idx.Record(in)
	if err != nil {
		t.Fatal(err)
	}
	got, err := idx.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Channel != 2 || got.Points != 1000 || got.DT != 1e-8 || got.Path != in.Path {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("created at %v, want %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestRecordDefaultsCreatedAt(t *testing.T) {
	idx := mustOpen(t)
	id, err := idx.Record(Capture{Channel: 1, Points: 10, DT: 1e-6, Path: "x.csv"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := idx.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created at not defaulted")
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	idx := mustOpen(t)
	for i := 0; i < 5; i++ {
		_, err := idx.Record(Capture{Channel: 1, Points: i + 1, DT: 1e-6, Path: "x.csv"})
		if err != nil {
			t.Fatal(err)
		}
	}
	got, err := idx.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d captures, want 3", len(got))
	}
	if got[0].Points != 5 || got[2].Points != 3 {
		t.Errorf("order wrong: %+v", got)
	}
}

func TestByChannelFilters(t *testing.T) {
	idx := mustOpen(t)
	for _, ch := range []int{1, 2, 1, 3} {
		_, err := idx.Record(Capture{Channel: ch, Points: 1, DT: 1e-6, Path: "x.csv"})
		if err != nil {
			t.Fatal(err)
		}
	}
	got, err := idx.ByChannel(1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d captures on channel 1, want 2", len(got))
	}
	for _, c := range got {
		if c.Channel != 1 {
			t.Errorf("capture %d on channel %d", c.ID, c.Channel)
		}
	}
}

func TestDeleteMissing(t *testing.T) {
	idx := mustOpen(t)
	if err := idx.Delete(42); err == nil {
		t.Error("delete of missing row succeeded")
	}
	id, err := idx.Record(Capture{Channel: 1, Points: 1, DT: 1, Path: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(id); err != nil {
		t.Errorf("delete of existing row failed: %v", err)
	}
	if _, err := idx.Get(id); err == nil {
		t.Error("row survived delete")
	}
}

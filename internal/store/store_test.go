package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	return s
}

func TestInit_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Append(EventIn, 1000, "img"); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("second Init error: %v", err)
	}

	last, err := s.LastAny()
	if err != nil {
		t.Fatalf("LastAny error: %v", err)
	}
	if last == nil {
		t.Fatal("Init destroyed existing data")
	}
}

func TestLastAny_EmptyLog(t *testing.T) {
	s := openTestStore(t)

	last, err := s.LastAny()
	if err != nil {
		t.Fatalf("LastAny error: %v", err)
	}
	if last != nil {
		t.Errorf("expected nil for empty log, got %+v", last)
	}
}

func TestAppend_AssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.Append(EventIn, 1000, "a")
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	id2, err := s.Append(EventOut, 2000, "b")
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids not monotonic: %d then %d", id1, id2)
	}
}

func TestLast_ByType(t *testing.T) {
	s := openTestStore(t)
	mustAppend(t, s, EventIn, 1000, "in1")
	mustAppend(t, s, EventOut, 2000, "out1")
	mustAppend(t, s, EventIn, 3000, "in2")

	last, err := s.Last(EventIn)
	if err != nil {
		t.Fatalf("Last error: %v", err)
	}
	if last.Time != 3000 || last.Img != "in2" {
		t.Errorf("Last(in) = %+v, want in2 at 3000", last)
	}

	lastAny, err := s.LastAny()
	if err != nil {
		t.Fatalf("LastAny error: %v", err)
	}
	if lastAny.Type != EventIn || lastAny.Time != 3000 {
		t.Errorf("LastAny = %+v, want in at 3000", lastAny)
	}
}

func TestPreviousOpposite(t *testing.T) {
	s := openTestStore(t)
	mustAppend(t, s, EventIn, 1000, "in1")
	mustAppend(t, s, EventOut, 2000, "out1")
	mustAppend(t, s, EventIn, 3000, "in2")

	// Nearest prior "in" before the out event at 2000 is the in at 1000.
	prev, err := s.PreviousOpposite(EventOut, 2000)
	if err != nil {
		t.Fatalf("PreviousOpposite error: %v", err)
	}
	if prev == nil || prev.Time != 1000 {
		t.Errorf("PreviousOpposite(out, 2000) = %+v, want in at 1000", prev)
	}

	// Strictly earlier: an opposite event at exactly the boundary is
	// excluded.
	prev, err = s.PreviousOpposite(EventIn, 2000)
	if err != nil {
		t.Fatalf("PreviousOpposite error: %v", err)
	}
	if prev != nil {
		t.Errorf("PreviousOpposite(in, 2000) = %+v, want nil", prev)
	}

	prev, err = s.PreviousOpposite(EventIn, 2001)
	if err != nil {
		t.Fatalf("PreviousOpposite error: %v", err)
	}
	if prev == nil || prev.Time != 2000 {
		t.Errorf("PreviousOpposite(in, 2001) = %+v, want out at 2000", prev)
	}
}

func TestPreviousOpposite_NoPriorSegment(t *testing.T) {
	s := openTestStore(t)
	mustAppend(t, s, EventIn, 1000, "in1")

	prev, err := s.PreviousOpposite(EventIn, 1000)
	if err != nil {
		t.Fatalf("PreviousOpposite error: %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil for first-ever event, got %+v", prev)
	}
}

func TestRecent_OrderAndContents(t *testing.T) {
	s := openTestStore(t)
	times := []int64{1000, 2000, 3000, 4000}
	for i, ts := range times {
		typ := EventIn
		if i%2 == 1 {
			typ = EventOut
		}
		mustAppend(t, s, typ, ts, "img")
	}

	events, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Recent returned %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Time > events[i-1].Time {
			t.Errorf("Recent not newest-first: %d before %d", events[i-1].Time, events[i].Time)
		}
	}
	if events[0].Time != 4000 {
		t.Errorf("newest event time = %d, want 4000", events[0].Time)
	}
}

func TestCountSince(t *testing.T) {
	s := openTestStore(t)
	mustAppend(t, s, EventIn, 1000, "a")
	mustAppend(t, s, EventIn, 2000, "b")
	mustAppend(t, s, EventOut, 2500, "c")

	n, err := s.CountSince(EventIn, 1500)
	if err != nil {
		t.Fatalf("CountSince error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountSince(in, 1500) = %d, want 1", n)
	}

	n, err = s.CountSince(EventOut, 0)
	if err != nil {
		t.Fatalf("CountSince error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountSince(out, 0) = %d, want 1", n)
	}
}

func TestOpposite(t *testing.T) {
	if EventIn.Opposite() != EventOut {
		t.Error("in.Opposite() != out")
	}
	if EventOut.Opposite() != EventIn {
		t.Error("out.Opposite() != in")
	}
}

func mustAppend(t *testing.T, s *Store, typ EventType, ts int64, img string) {
	t.Helper()
	if _, err := s.Append(typ, ts, img); err != nil {
		t.Fatalf("Append(%s, %d) error: %v", typ, ts, err)
	}
}

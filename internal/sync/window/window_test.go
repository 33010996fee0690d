package window

import (
	"testing"
	"time"
)

var now = time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFillWindowTrailingDaysEndingYesterday(t *testing.T) {
	w := FillWindow(now, 7)

	if w.Start != date(2026, 8, 21) {
		t.Fatalf("unexpected start %s", w.Start)
	}
	if w.End != date(2026, 8, 27) {
		t.Fatalf("unexpected end %s", w.End)
	}
	if len(w.Dates) != 7 {
		t.Fatalf("expected 7 dates, got %d", len(w.Dates))
	}
	for i := 1; i < len(w.Dates); i++ {
		if !w.Dates[i].After(w.Dates[i-1]) {
			t.Fatal("dates must ascend")
		}
	}
}

func TestFillWindowZeroDaysIsEmpty(t *testing.T) {
	if w := FillWindow(now, 0); !w.IsEmpty() {
		t.Fatalf("expected empty window, got %+v", w)
	}
}

func TestFreshWindowStartsAfterCursor(t *testing.T) {
	w := FreshWindow(now, "2026-08-24T18:45:00Z", 7, 0)

	if w.Start != date(2026, 8, 25) {
		t.Fatalf("unexpected start %s", w.Start)
	}
	if w.End != date(2026, 8, 27) {
		t.Fatalf("unexpected end %s", w.End)
	}
	if len(w.Dates) != 3 {
		t.Fatalf("expected 3 dates, got %d", len(w.Dates))
	}
}

func TestFreshWindowDefaultLookbackWithoutCursor(t *testing.T) {
	w := FreshWindow(now, "", 7, 0)

	if w.Start != date(2026, 8, 21) || w.End != date(2026, 8, 27) {
		t.Fatalf("unexpected window %s .. %s", w.Start, w.End)
	}
}

func TestFreshWindowAttributionLagShiftsEnd(t *testing.T) {
	w := FreshWindow(now, "", 30, 7)

	if w.End != date(2026, 8, 20) {
		t.Fatalf("unexpected end %s", w.End)
	}
	if w.Start != date(2026, 7, 22) {
		t.Fatalf("unexpected start %s", w.Start)
	}
}

func TestFreshWindowEmptyWhenCursorCaughtUp(t *testing.T) {
	w := FreshWindow(now, "2026-08-27T23:59:00Z", 7, 0)
	if !w.IsEmpty() {
		t.Fatalf("expected empty window, got %d dates", len(w.Dates))
	}

	w = FreshWindow(now, "2026-08-25", 30, 7)
	if !w.IsEmpty() {
		t.Fatalf("expected empty window under attribution lag, got %d dates", len(w.Dates))
	}
}

func TestParseCursorDate(t *testing.T) {
	if day, ok := ParseCursorDate("2026-08-24T18:45:00Z"); !ok || day != date(2026, 8, 24) {
		t.Fatalf("unexpected parse %v %v", day, ok)
	}
	if day, ok := ParseCursorDate("2026-08-24"); !ok || day != date(2026, 8, 24) {
		t.Fatalf("unexpected parse %v %v", day, ok)
	}
	if _, ok := ParseCursorDate("garbage"); ok {
		t.Fatal("expected parse failure")
	}
	if _, ok := ParseCursorDate(""); ok {
		t.Fatal("expected parse failure for empty value")
	}
}

func TestEndExclusive(t *testing.T) {
	w := FillWindow(now, 3)
	if w.EndExclusive() != date(2026, 8, 28) {
		t.Fatalf("unexpected exclusive end %s", w.EndExclusive())
	}
}

func TestContains(t *testing.T) {
	w := FillWindow(now, 3)
	if !w.Contains(time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC)) {
		t.Fatal("expected date inside window")
	}
	if w.Contains(date(2026, 8, 28)) {
		t.Fatal("today must be outside a yesterday-ending window")
	}
}

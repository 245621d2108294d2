package timeline

import (
	"errors"
	"testing"
	"time"
)

type version struct {
	name     string
	from, to *time.Time
}

func (v version) Window() (*time.Time, *time.Time) { return v.from, v.to }

func day(d int) *time.Time {
	t := time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAtFindsContainingVersion(t *testing.T) {
	tl := New([]version{
		{name: "march", from: day(20), to: nil},
		{name: "legacy", from: nil, to: day(10)},
		{name: "winter", from: day(10), to: day(20)},
	})

	cases := map[time.Time]string{
		*day(1):                       "legacy",
		day(10).Add(-time.Nanosecond): "legacy",
		*day(10):                      "winter",
		*day(19):                      "winter",
		*day(20):                      "march",
		*day(31):                      "march",
	}
	for at, want := range cases {
		got, ok := tl.At(at)
		if !ok || got.name != want {
			t.Fatalf("At(%s) = %q,%v want %q", at, got.name, ok, want)
		}
	}
}

func TestAtReportsGap(t *testing.T) {
	tl := New([]version{{name: "a", from: day(5), to: day(10)}})
	if _, ok := tl.At(*day(4)); ok {
		t.Fatalf("expected no version before first start")
	}
	if _, ok := tl.At(*day(10)); ok {
		t.Fatalf("expected effective_to to be exclusive")
	}
}

func TestInsertRejectsOverlapAndSecondOpenVersion(t *testing.T) {
	tl := New([]version{{name: "a", from: day(1), to: day(10)}})

	if err := tl.Insert(version{name: "b", from: day(9), to: day(12)}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
	if err := tl.Insert(version{name: "c", from: day(10), to: nil}); err != nil {
		t.Fatalf("adjacent insert failed: %v", err)
	}
	if err := tl.Insert(version{name: "d", from: day(20), to: nil}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected second open-ended version to be rejected, got %v", err)
	}
	if err := tl.Insert(version{name: "e", from: day(5), to: day(5)}); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected empty interval to be rejected, got %v", err)
	}
	if tl.Len() != 2 {
		t.Fatalf("expected 2 versions, got %d", tl.Len())
	}
	open, ok := tl.Open()
	if !ok || open.name != "c" {
		t.Fatalf("expected open version c, got %q", open.name)
	}
}

func TestInsertKeepsOrder(t *testing.T) {
	tl := New[version](nil)
	for _, v := range []version{
		{name: "late", from: day(20), to: day(25)},
		{name: "early", from: day(1), to: day(5)},
		{name: "middle", from: day(10), to: day(15)},
	} {
		if err := tl.Insert(v); err != nil {
			t.Fatalf("insert %s: %v", v.name, err)
		}
	}
	got := tl.Versions()
	if got[0].name != "early" || got[1].name != "middle" || got[2].name != "late" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if v, ok := tl.At(*day(12)); !ok || v.name != "middle" {
		t.Fatalf("expected middle at day 12, got %q", v.name)
	}
}

// Package timeline keeps versions of a record that are valid over
// half-open intervals [from, to). A nil from is unbounded in the past and a
// nil to is unbounded in the future.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrOverlap = errors.New("effective interval overlaps an existing version")

type Versioned interface {
	Window() (from *time.Time, to *time.Time)
}

type Timeline[T Versioned] struct {
	versions []T
}

// New builds a timeline from stored versions. Stored data is trusted to be
// consistent already, so versions are sorted but not re-validated.
func New[T Versioned](versions []T) *Timeline[T] {
	sorted := make([]T, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := sorted[i].Window()
		b, _ := sorted[j].Window()
		return startsBefore(a, b)
	})
	return &Timeline[T]{versions: sorted}
}

func (tl *Timeline[T]) Len() int { return len(tl.versions) }

func (tl *Timeline[T]) Versions() []T {
	out := make([]T, len(tl.versions))
	copy(out, tl.versions)
	return out
}

// Check reports whether v could be inserted without breaking the timeline.
func (tl *Timeline[T]) Check(v T) error {
	from, to := v.Window()
	if from != nil && to != nil && !from.Before(*to) {
		return fmt.Errorf("%w: effective_from must be before effective_to", ErrOverlap)
	}
	for _, existing := range tl.versions {
		exFrom, exTo := existing.Window()
		if to == nil && exTo == nil {
			return fmt.Errorf("%w: an open-ended version already exists", ErrOverlap)
		}
		if overlaps(from, to, exFrom, exTo) {
			return ErrOverlap
		}
	}
	return nil
}

func (tl *Timeline[T]) Insert(v T) error {
	if err := tl.Check(v); err != nil {
		return err
	}
	from, _ := v.Window()
	idx := sort.Search(len(tl.versions), func(i int) bool {
		f, _ := tl.versions[i].Window()
		return startsBefore(from, f)
	})
	tl.versions = append(tl.versions, v)
	copy(tl.versions[idx+1:], tl.versions[idx:])
	tl.versions[idx] = v
	return nil
}

// At returns the version whose interval contains t.
func (tl *Timeline[T]) At(t time.Time) (T, bool) {
	var zero T
	// Last version that starts at or before t.
	idx := sort.Search(len(tl.versions), func(i int) bool {
		from, _ := tl.versions[i].Window()
		return from != nil && from.After(t)
	}) - 1
	if idx < 0 {
		return zero, false
	}
	_, to := tl.versions[idx].Window()
	if to != nil && !t.Before(*to) {
		return zero, false
	}
	return tl.versions[idx], true
}

func (tl *Timeline[T]) Open() (T, bool) {
	var zero T
	for i := len(tl.versions) - 1; i >= 0; i-- {
		if _, to := tl.versions[i].Window(); to == nil {
			return tl.versions[i], true
		}
	}
	return zero, false
}

// startsBefore orders interval starts with nil as minus infinity.
func startsBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}

func overlaps(aFrom, aTo, bFrom, bTo *time.Time) bool {
	// [aFrom, aTo) and [bFrom, bTo) intersect when each starts before the
	// other ends.
	return startsBeforeEnd(aFrom, bTo) && startsBeforeEnd(bFrom, aTo)
}

func startsBeforeEnd(from, to *time.Time) bool {
	if from == nil || to == nil {
		return true
	}
	return from.Before(*to)
}

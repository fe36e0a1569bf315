// Package schedule maintains the derived itinerary over scheduled
// features: the arrival-time ordering, cascade time shifts, and the
// day-bucket grouping.
//
// Grouping is a pure read-side projection recomputed from current
// feature state; only cascade edits write anything back.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joeblew999/plat-trip/internal/feature"
)

// ErrInconsistent marks a failed cascade batch: some features may have
// shifted while others did not. Callers must reload rather than retry,
// since retrying could double-apply the delta.
var ErrInconsistent = errors.New("schedule may be inconsistent, reload required")

// Item is one feature on the itinerary with its display delta.
type Item struct {
	Feature  feature.Feature `json:"feature"`
	DeltaMin *int            `json:"delta_minutes,omitempty" doc:"Minutes since the previous checkpoint; absent for the first checkpoint or when out of order"`
}

// Group is one day bucket. DayNumber 0 is the catch-all for features
// without a scheduled time.
type Group struct {
	DayNumber int    `json:"day_number" doc:"1-based day index; 0 for unscheduled features"`
	Date      string `json:"date,omitempty" doc:"Calendar date (YYYY-MM-DD)"`
	Label     string `json:"label" doc:"Display label, e.g. \"Day 2\" or \"Unscheduled\""`
	Items     []Item `json:"items"`
}

// Timeline returns the features carrying an arrival time, sorted
// ascending. Features without a time are reference items and excluded.
func Timeline(features []feature.Feature) []feature.Feature {
	var timeline []feature.Feature
	for _, f := range features {
		if f.Arrival() != nil {
			timeline = append(timeline, f)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Arrival().Before(*timeline[j].Arrival())
	})
	return timeline
}

// dayIndex counts calendar days between two timestamps, comparing dates
// rather than 24h spans so a 23:50 → 00:10 pair lands on adjacent days.
func dayIndex(arrival, start time.Time) int {
	ay, am, ad := arrival.Date()
	sy, sm, sd := start.Date()
	a := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(s).Hours() / 24)
}

// ComputeGroups buckets features into itinerary days relative to
// startDate. When startDate is nil, the earliest timeline arrival
// defines day 1; arrivals before an explicit start date clamp to day 1
// so day numbers never reach zero or below. Schedulable features
// without an arrival collect in the day-0 "Unscheduled" group, which is
// emitted first so group day numbers stay non-decreasing. Idempotent;
// never persisted.
func ComputeGroups(features []feature.Feature, startDate *time.Time) []Group {
	timeline := Timeline(features)

	var unscheduled []Item
	for _, f := range features {
		if f.Properties != nil && f.Properties.Schedule() != nil && f.Arrival() == nil {
			unscheduled = append(unscheduled, Item{Feature: f})
		}
	}

	start := startDate
	if start == nil && len(timeline) > 0 {
		start = timeline[0].Arrival()
	}

	deltas := deltaMinutes(timeline)

	byDay := make(map[int]*Group)
	var days []int
	for i, f := range timeline {
		day := dayIndex(*f.Arrival(), *start) + 1
		if day < 1 {
			day = 1
		}

		g, ok := byDay[day]
		if !ok {
			date := f.Arrival().Format("2006-01-02")
			g = &Group{DayNumber: day, Date: date, Label: fmt.Sprintf("Day %d", day)}
			byDay[day] = g
			days = append(days, day)
		}
		g.Items = append(g.Items, Item{Feature: f, DeltaMin: deltas[i]})
	}

	sort.Ints(days)

	var groups []Group
	if len(unscheduled) > 0 {
		groups = append(groups, Group{DayNumber: 0, Label: "Unscheduled", Items: unscheduled})
	}
	for _, day := range days {
		groups = append(groups, *byDay[day])
	}
	return groups
}

// deltaMinutes computes the pairwise minute deltas over a sorted
// timeline. The first item has no delta; negative deltas (a transient
// out-of-order state after an edit) are suppressed rather than shown as
// negative durations.
func deltaMinutes(timeline []feature.Feature) []*int {
	deltas := make([]*int, len(timeline))
	for i := 1; i < len(timeline); i++ {
		d := int(timeline[i].Arrival().Sub(*timeline[i-1].Arrival()).Minutes())
		if d < 0 {
			continue
		}
		v := d
		deltas[i] = &v
	}
	return deltas
}

// Editor applies checkpoint time edits, optionally cascading the shift
// to all later checkpoints. A mutex serializes edits so two cascades
// never interleave against the same store.
type Editor struct {
	store feature.Store
	mu    sync.Mutex
}

// NewEditor creates an editor over a feature store.
func NewEditor(store feature.Store) *Editor {
	return &Editor{store: store}
}

// EditTime sets a checkpoint's arrival time. With cascade enabled and an
// existing arrival, the delta is applied to every feature whose current
// arrival is strictly after the edited feature's old time; durations are
// never shifted. A first-time placement (no old arrival) never cascades.
// The cascade commits as one batch; if that batch fails the returned
// error wraps ErrInconsistent.
func (e *Editor) EditTime(ctx context.Context, id string, newTime time.Time, cascade bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if f.Properties == nil || f.Properties.Schedule() == nil {
		return fmt.Errorf("feature %q cannot be scheduled", id)
	}

	oldTime := f.Arrival()
	if oldTime == nil || !cascade {
		nt := newTime
		if _, err := e.store.Update(ctx, id, feature.UpdateFields{EstimatedArrival: &nt}); err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}
		return nil
	}

	delta := newTime.Sub(*oldTime)

	all, err := e.store.List(ctx)
	if err != nil {
		return err
	}

	nt := newTime
	items := []feature.BatchItem{{ID: id, Fields: feature.UpdateFields{EstimatedArrival: &nt}}}
	for _, other := range all {
		if other.ID == id {
			continue
		}
		arrival := other.Arrival()
		if arrival == nil || !arrival.After(*oldTime) {
			continue
		}
		shifted := arrival.Add(delta)
		items = append(items, feature.BatchItem{
			ID:     other.ID,
			Fields: feature.UpdateFields{EstimatedArrival: &shifted},
		})
	}

	if err := e.store.BatchUpdate(ctx, items); err != nil {
		return fmt.Errorf("%w: cascade edit of %s (%d features): %v", ErrInconsistent, id, len(items), err)
	}
	return nil
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/feature"
)

func newStore(t *testing.T) *feature.FileStore {
	t.Helper()
	return feature.NewFileStore(t.TempDir())
}

func addCheckpoint(t *testing.T, store feature.Store, name string, arrival *time.Time) feature.Feature {
	t.Helper()
	props := &feature.WaypointProps{
		BaseProps: feature.BaseProps{Category: feature.CategoryWaypoint, Name: name},
	}
	if arrival != nil {
		ts := *arrival
		props.EstimatedArrival = &ts
	}
	f, err := store.Create(context.Background(), geojson.NewGeometry(orb.Point{8.5, 46.5}), props)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func at(t *testing.T, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 7, 13+day, hour, min, 0, 0, time.UTC)
}

func arrivalOf(t *testing.T, store feature.Store, id string) time.Time {
	t.Helper()
	f, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if f.Arrival() == nil {
		t.Fatalf("feature %s has no arrival", id)
	}
	return *f.Arrival()
}

func TestCascadeShiftsSubsequentOnly(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	// Three checkpoints at 09:00, 10:00, 11:30 on day 1.
	t0, t1, t2 := at(t, 1, 9, 0), at(t, 1, 10, 0), at(t, 1, 11, 30)
	f0 := addCheckpoint(t, store, "start", &t0)
	f1 := addCheckpoint(t, store, "col", &t1)
	f2 := addCheckpoint(t, store, "hut", &t2)

	// Edit the second to 10:30 with cascade: +30m lands on the third,
	// never on the first.
	if err := editor.EditTime(ctx, f1.ID, at(t, 1, 10, 30), true); err != nil {
		t.Fatal(err)
	}

	if got := arrivalOf(t, store, f0.ID); !got.Equal(t0) {
		t.Fatalf("earlier checkpoint moved to %v", got)
	}
	if got := arrivalOf(t, store, f1.ID); !got.Equal(at(t, 1, 10, 30)) {
		t.Fatalf("edited checkpoint = %v, want 10:30", got)
	}
	if got := arrivalOf(t, store, f2.ID); !got.Equal(at(t, 1, 12, 0)) {
		t.Fatalf("subsequent checkpoint = %v, want 12:00", got)
	}
}

func TestCascadePreservesOrdering(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	times := []time.Time{at(t, 1, 8, 0), at(t, 1, 9, 0), at(t, 1, 10, 0), at(t, 1, 11, 0)}
	var ids []string
	for i, ts := range times {
		f := addCheckpoint(t, store, fmt.Sprintf("cp%d", i), &ts)
		ids = append(ids, f.ID)
	}

	// Shift the second checkpoint back by two hours.
	if err := editor.EditTime(ctx, ids[1], at(t, 1, 11, 0), true); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	timeline := Timeline(all)
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Arrival().Before(*timeline[i-1].Arrival()) {
			t.Fatal("cascade broke timeline ordering")
		}
	}
	// cp0 untouched, cp2/cp3 shifted by +2h.
	if got := arrivalOf(t, store, ids[0]); !got.Equal(times[0]) {
		t.Fatalf("cp0 = %v, want unchanged", got)
	}
	if got := arrivalOf(t, store, ids[3]); !got.Equal(at(t, 1, 13, 0)) {
		t.Fatalf("cp3 = %v, want 13:00", got)
	}
}

func TestCascadeZeroDeltaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	t0, t1 := at(t, 1, 9, 0), at(t, 1, 10, 0)
	f0 := addCheckpoint(t, store, "a", &t0)
	f1 := addCheckpoint(t, store, "b", &t1)

	if err := editor.EditTime(ctx, f0.ID, t0, true); err != nil {
		t.Fatal(err)
	}

	if got := arrivalOf(t, store, f0.ID); !got.Equal(t0) {
		t.Fatalf("edited = %v, want %v", got, t0)
	}
	if got := arrivalOf(t, store, f1.ID); !got.Equal(t1) {
		t.Fatalf("subsequent = %v, want %v", got, t1)
	}
}

func TestEditWithoutCascade(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	t0, t1 := at(t, 1, 9, 0), at(t, 1, 10, 0)
	f0 := addCheckpoint(t, store, "a", &t0)
	f1 := addCheckpoint(t, store, "b", &t1)

	if err := editor.EditTime(ctx, f0.ID, at(t, 1, 9, 45), false); err != nil {
		t.Fatal(err)
	}

	if got := arrivalOf(t, store, f0.ID); !got.Equal(at(t, 1, 9, 45)) {
		t.Fatalf("edited = %v, want 09:45", got)
	}
	if got := arrivalOf(t, store, f1.ID); !got.Equal(t1) {
		t.Fatalf("other feature moved to %v", got)
	}
}

func TestFirstTimePlacementNeverCascades(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	t1 := at(t, 1, 10, 0)
	unplaced := addCheckpoint(t, store, "new", nil)
	scheduled := addCheckpoint(t, store, "existing", &t1)

	// Cascade requested, but there is no old time to diff against.
	if err := editor.EditTime(ctx, unplaced.ID, at(t, 1, 8, 0), true); err != nil {
		t.Fatal(err)
	}

	if got := arrivalOf(t, store, scheduled.ID); !got.Equal(t1) {
		t.Fatalf("existing checkpoint moved to %v", got)
	}
	if got := arrivalOf(t, store, unplaced.ID); !got.Equal(at(t, 1, 8, 0)) {
		t.Fatalf("placement = %v, want 08:00", got)
	}
}

func TestCascadeDurationsUntouched(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	t0, t1 := at(t, 1, 9, 0), at(t, 1, 10, 0)
	f0 := addCheckpoint(t, store, "a", &t0)
	f1 := addCheckpoint(t, store, "b", &t1)

	dur := 45
	if _, err := store.Update(ctx, f1.ID, feature.UpdateFields{EstimatedDurationMin: &dur}); err != nil {
		t.Fatal(err)
	}

	if err := editor.EditTime(ctx, f0.ID, at(t, 1, 9, 30), true); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, f1.ID)
	if err != nil {
		t.Fatal(err)
	}
	sched := got.Properties.Schedule()
	if sched.EstimatedDurationMin == nil || *sched.EstimatedDurationMin != 45 {
		t.Fatalf("duration = %v, want 45 (cascade must not shift durations)", sched.EstimatedDurationMin)
	}
}

// batchFailStore lets reads through but rejects the cascade batch.
type batchFailStore struct {
	*feature.FileStore
}

func (s batchFailStore) BatchUpdate(ctx context.Context, items []feature.BatchItem) error {
	return fmt.Errorf("connection reset")
}

func TestCascadeBatchFailureIsInconsistent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(batchFailStore{store})

	t0, t1 := at(t, 1, 9, 0), at(t, 1, 10, 0)
	f0 := addCheckpoint(t, store, "a", &t0)
	addCheckpoint(t, store, "b", &t1)

	err := editor.EditTime(ctx, f0.ID, at(t, 1, 9, 30), true)
	if err == nil {
		t.Fatal("expected cascade failure")
	}
	if !errors.Is(err, ErrInconsistent) {
		t.Fatalf("err = %v, want ErrInconsistent", err)
	}
}

func TestEditTimeRejectsUnschedulable(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := NewEditor(store)

	ring := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	area, err := store.Create(ctx, geojson.NewGeometry(ring), &feature.AreaProps{
		BaseProps: feature.BaseProps{Category: feature.CategoryArea},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := editor.EditTime(ctx, area.ID, at(t, 1, 9, 0), false); err == nil {
		t.Fatal("expected error scheduling an area")
	}
}

func TestComputeGroupsBucketsByCalendarDay(t *testing.T) {
	store := newStore(t)

	d1a, d1b := at(t, 1, 9, 0), at(t, 1, 15, 0)
	d3 := at(t, 3, 8, 0)
	addCheckpoint(t, store, "day1 morning", &d1a)
	addCheckpoint(t, store, "day1 afternoon", &d1b)
	addCheckpoint(t, store, "day3", &d3)

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	start := at(t, 1, 0, 0)
	groups := ComputeGroups(all, &start)

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].DayNumber != 1 || len(groups[0].Items) != 2 {
		t.Fatalf("group 0 = day %d with %d items", groups[0].DayNumber, len(groups[0].Items))
	}
	if groups[1].DayNumber != 3 || len(groups[1].Items) != 1 {
		t.Fatalf("group 1 = day %d with %d items", groups[1].DayNumber, len(groups[1].Items))
	}

	// Items within a group are ordered by arrival.
	g := groups[0]
	if !g.Items[0].Feature.Arrival().Before(*g.Items[1].Feature.Arrival()) {
		t.Fatal("items not ordered by arrival within group")
	}
	if g.Label != "Day 1" || g.Date != "2026-07-14" {
		t.Fatalf("group label/date = %q/%q", g.Label, g.Date)
	}
}

func TestComputeGroupsImplicitStart(t *testing.T) {
	store := newStore(t)

	d2, d3 := at(t, 2, 10, 0), at(t, 3, 10, 0)
	addCheckpoint(t, store, "first", &d2)
	addCheckpoint(t, store, "second", &d3)

	all, _ := store.List(context.Background())
	groups := ComputeGroups(all, nil)

	// Earliest arrival defines day 1.
	if len(groups) != 2 || groups[0].DayNumber != 1 || groups[1].DayNumber != 2 {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestComputeGroupsUnscheduledCatchAll(t *testing.T) {
	store := newStore(t)

	d1 := at(t, 1, 9, 0)
	addCheckpoint(t, store, "scheduled", &d1)
	addCheckpoint(t, store, "someday", nil)

	all, _ := store.List(context.Background())
	start := at(t, 1, 0, 0)
	groups := ComputeGroups(all, &start)

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].DayNumber != 0 || groups[0].Label != "Unscheduled" {
		t.Fatalf("catch-all group = %+v", groups[0])
	}
	if len(groups[0].Items) != 1 || groups[0].Items[0].Feature.Properties.Base().Name != "someday" {
		t.Fatalf("catch-all items = %+v", groups[0].Items)
	}

	// Day numbers are non-decreasing across all groups.
	for i := 1; i < len(groups); i++ {
		if groups[i].DayNumber < groups[i-1].DayNumber {
			t.Fatal("groups not in non-decreasing day order")
		}
	}
}

func TestComputeGroupsClampsPreStartArrivals(t *testing.T) {
	store := newStore(t)

	// Arrivals one and two days before the chosen start date, plus an
	// unscheduled feature. Early arrivals must land in day 1, never in a
	// zero or negative day colliding with the catch-all.
	twoEarly, oneEarly := at(t, 0, 9, 0), at(t, 1, 9, 0)
	onTime := at(t, 2, 9, 0)
	addCheckpoint(t, store, "two days early", &twoEarly)
	addCheckpoint(t, store, "one day early", &oneEarly)
	addCheckpoint(t, store, "on time", &onTime)
	addCheckpoint(t, store, "someday", nil)

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	start := at(t, 2, 0, 0)
	groups := ComputeGroups(all, &start)

	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2 (unscheduled + day 1)", len(groups))
	}
	if groups[0].DayNumber != 0 || groups[0].Label != "Unscheduled" {
		t.Fatalf("catch-all group = %+v", groups[0])
	}
	if groups[1].DayNumber != 1 || len(groups[1].Items) != 3 {
		t.Fatalf("day group = day %d with %d items, want day 1 with 3", groups[1].DayNumber, len(groups[1].Items))
	}
	for i := 1; i < len(groups); i++ {
		if groups[i].DayNumber < groups[i-1].DayNumber {
			t.Fatal("groups not in non-decreasing day order")
		}
	}
}

func TestDeltaDisplay(t *testing.T) {
	store := newStore(t)

	t0, t1, t2 := at(t, 1, 9, 0), at(t, 1, 10, 0), at(t, 1, 11, 30)
	addCheckpoint(t, store, "a", &t0)
	addCheckpoint(t, store, "b", &t1)
	addCheckpoint(t, store, "c", &t2)

	all, _ := store.List(context.Background())
	start := at(t, 1, 0, 0)
	groups := ComputeGroups(all, &start)

	items := groups[0].Items
	if items[0].DeltaMin != nil {
		t.Fatalf("first item delta = %v, want nil", *items[0].DeltaMin)
	}
	if items[1].DeltaMin == nil || *items[1].DeltaMin != 60 {
		t.Fatalf("second delta = %v, want 60", items[1].DeltaMin)
	}
	if items[2].DeltaMin == nil || *items[2].DeltaMin != 90 {
		t.Fatalf("third delta = %v, want 90", items[2].DeltaMin)
	}
}

func TestNegativeDeltasSuppressed(t *testing.T) {
	later := at(t, 1, 12, 0)
	earlier := at(t, 1, 9, 0)

	// An out-of-order pair (possible mid-edit) must not show a negative
	// duration.
	out := deltaMinutes([]feature.Feature{
		{Properties: &feature.WaypointProps{
			BaseProps:     feature.BaseProps{Category: feature.CategoryWaypoint},
			ScheduleProps: feature.ScheduleProps{EstimatedArrival: &later},
		}},
		{Properties: &feature.WaypointProps{
			BaseProps:     feature.BaseProps{Category: feature.CategoryWaypoint},
			ScheduleProps: feature.ScheduleProps{EstimatedArrival: &earlier},
		}},
	})
	if out[1] != nil {
		t.Fatalf("negative delta shown as %v, want suppressed", *out[1])
	}
}

func TestTimelineExcludesReferenceItems(t *testing.T) {
	store := newStore(t)

	d1 := at(t, 1, 9, 0)
	addCheckpoint(t, store, "scheduled", &d1)
	addCheckpoint(t, store, "reference", nil)

	all, _ := store.List(context.Background())
	timeline := Timeline(all)
	if len(timeline) != 1 {
		t.Fatalf("timeline = %d items, want 1", len(timeline))
	}
}

package feature

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func pointGeometry(lng, lat float64) *geojson.Geometry {
	return geojson.NewGeometry(orb.Point{lng, lat})
}

func TestUnmarshalPropsVariants(t *testing.T) {
	raw := []byte(`{"category":"waypoint","name":"Col du Midi","water_source":true,"estimated_arrival":"2026-07-14T09:00:00Z"}`)
	props, err := UnmarshalProps(raw)
	if err != nil {
		t.Fatal(err)
	}

	wp, ok := props.(*WaypointProps)
	if !ok {
		t.Fatalf("props = %T, want *WaypointProps", props)
	}
	if !wp.WaterSource || wp.Name != "Col du Midi" {
		t.Fatalf("props = %+v", wp)
	}
	if wp.EstimatedArrival == nil {
		t.Fatal("arrival not decoded")
	}

	area, err := UnmarshalProps([]byte(`{"category":"area","shape_type":"circle","circle_radius_m":250}`))
	if err != nil {
		t.Fatal(err)
	}
	if area.Schedule() != nil {
		t.Fatal("area variant must not be schedulable")
	}

	if _, err := UnmarshalProps([]byte(`{"category":"volcano"}`)); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestFeatureJSONRoundTrip(t *testing.T) {
	arrival := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	f := Feature{
		ID:       "abc",
		Geometry: pointGeometry(8.5, 46.5),
		Properties: &WaypointProps{
			BaseProps:     BaseProps{Category: CategoryWaypoint, Name: "Hut"},
			ScheduleProps: ScheduleProps{EstimatedArrival: &arrival},
			Camp:          true,
		},
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}

	var got Feature
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	wp, ok := got.Properties.(*WaypointProps)
	if !ok {
		t.Fatalf("properties = %T, want *WaypointProps", got.Properties)
	}
	if !wp.Camp || wp.Name != "Hut" {
		t.Fatalf("properties = %+v", wp)
	}
	if got.Arrival() == nil || !got.Arrival().Equal(arrival) {
		t.Fatalf("arrival = %v, want %v", got.Arrival(), arrival)
	}
}

func TestFileStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	created, err := store.Create(ctx, pointGeometry(8.5, 46.5), &MarkerProps{
		BaseProps: BaseProps{Category: CategoryMarker, Name: "Scree field"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("no ID assigned")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Properties.Base().Name != "Scree field" {
		t.Fatalf("name = %q", got.Properties.Base().Name)
	}

	name := "Boulder field"
	if _, err := store.Update(ctx, created.ID, UpdateFields{Name: &name}); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Properties.Base().Name != "Boulder field" {
		t.Fatalf("list = %+v", list)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, created.ID); err == nil {
		t.Fatal("expected not-found after delete")
	}
}

func TestFileStorePersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store := NewFileStore(dir)
	created, err := store.Create(ctx, pointGeometry(7.0, 45.9), &WaypointProps{
		BaseProps: BaseProps{Category: CategoryWaypoint, Name: "Bivouac"},
	})
	if err != nil {
		t.Fatal(err)
	}

	reloaded := NewFileStore(dir)
	got, err := reloaded.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Properties.Base().Name != "Bivouac" {
		t.Fatalf("name = %q after reload", got.Properties.Base().Name)
	}
}

func TestUpdateRejectsScheduleOnArea(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	ring := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	created, err := store.Create(ctx, geojson.NewGeometry(ring), &AreaProps{
		BaseProps: BaseProps{Category: CategoryArea},
	})
	if err != nil {
		t.Fatal(err)
	}

	arrival := time.Now()
	if _, err := store.Update(ctx, created.ID, UpdateFields{EstimatedArrival: &arrival}); err == nil {
		t.Fatal("expected error scheduling an area feature")
	}
}

func TestBatchUpdateAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	arrival := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	created, err := store.Create(ctx, pointGeometry(8.5, 46.5), &WaypointProps{
		BaseProps:     BaseProps{Category: CategoryWaypoint},
		ScheduleProps: ScheduleProps{EstimatedArrival: &arrival},
	})
	if err != nil {
		t.Fatal(err)
	}

	shifted := arrival.Add(time.Hour)
	err = store.BatchUpdate(ctx, []BatchItem{
		{ID: created.ID, Fields: UpdateFields{EstimatedArrival: &shifted}},
		{ID: "does-not-exist", Fields: UpdateFields{EstimatedArrival: &shifted}},
	})
	if err == nil {
		t.Fatal("expected batch failure on missing feature")
	}

	// The valid item must not have been applied.
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Arrival().Equal(arrival) {
		t.Fatalf("arrival = %v, want unchanged %v", got.Arrival(), arrival)
	}
}

func TestClearArrival(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	arrival := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	created, err := store.Create(ctx, pointGeometry(8.5, 46.5), &WaypointProps{
		BaseProps:     BaseProps{Category: CategoryWaypoint},
		ScheduleProps: ScheduleProps{EstimatedArrival: &arrival},
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := store.Update(ctx, created.ID, UpdateFields{ClearArrival: true})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Arrival() != nil {
		t.Fatalf("arrival = %v, want nil", updated.Arrival())
	}
}

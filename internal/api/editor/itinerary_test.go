package editor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/schedule"
)

func testRenderer(t *testing.T) *humastar.Renderer {
	t.Helper()
	dir := t.TempDir()

	fragments := map[string]string{
		"day-group.html": `{{define "day-group"}}<section class="day"><h3>{{.Label}}</h3>` +
			`{{range .Items}}<div id="item-{{.ID}}">{{.Name}} {{.Time}}{{if .Delta}} {{.Delta}}{{end}}</div>{{end}}</section>{{end}}`,
		"empty-state.html": `{{define "empty-state"}}<div class="empty"><h4>{{.Title}}</h4><p>{{.Message}}</p></div>{{end}}`,
	}
	for name, content := range fragments {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r, err := humastar.NewRenderer(dir)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func addWaypoint(t *testing.T, store feature.Store, name string, arrival *time.Time) feature.Feature {
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

func TestRenderItinerary(t *testing.T) {
	store := feature.NewFileStore(t.TempDir())
	editor := schedule.NewEditor(store)
	handler := NewItineraryHandler(store, editor, testRenderer(t))

	t0 := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	t1 := time.Date(2026, 7, 14, 10, 30, 0, 0, time.UTC)
	addWaypoint(t, store, "Refuge", &t0)
	addWaypoint(t, store, "Col", &t1)

	groups, err := handler.currentGroups(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	html := handler.renderItinerary(groups)

	if !strings.Contains(html, "Day 1") {
		t.Fatalf("missing day label: %s", html)
	}
	if !strings.Contains(html, "Refuge 09:00") || !strings.Contains(html, "Col 10:30") {
		t.Fatalf("missing items: %s", html)
	}
	if !strings.Contains(html, "+90 min") {
		t.Fatalf("missing delta: %s", html)
	}
}

func TestRenderItineraryEmptyState(t *testing.T) {
	store := feature.NewFileStore(t.TempDir())
	handler := NewItineraryHandler(store, schedule.NewEditor(store), testRenderer(t))

	html := handler.renderItinerary(nil)
	if !strings.Contains(html, "No itinerary yet") {
		t.Fatalf("missing empty state: %s", html)
	}
}

func TestEventHandlerSharesItineraryRenderer(t *testing.T) {
	store := feature.NewFileStore(t.TempDir())
	editor := schedule.NewEditor(store)
	handler := NewEventHandler(store, editor, testRenderer(t))

	if handler.itinerary == nil {
		t.Fatal("event handler has no itinerary renderer")
	}

	t0 := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	addWaypoint(t, store, "Refuge", &t0)

	groups, err := handler.itinerary.currentGroups(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if html := handler.itinerary.renderItinerary(groups); !strings.Contains(html, "Refuge") {
		t.Fatalf("event handler render missing item: %s", html)
	}
}

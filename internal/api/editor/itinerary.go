// Package editor implements the Datastar SSE handlers behind the planner
// UI: the rendered itinerary panel and the live resource event stream.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/schedule"
)

// ItineraryHandler renders the day-by-day itinerary panel and applies
// checkpoint time edits coming from the planner UI.
type ItineraryHandler struct {
	humastar.Handler
	store  feature.Store
	editor *schedule.Editor
}

// NewItineraryHandler creates an itinerary handler.
func NewItineraryHandler(store feature.Store, editor *schedule.Editor, renderer *humastar.Renderer) *ItineraryHandler {
	return &ItineraryHandler{
		Handler: humastar.Handler{Renderer: renderer},
		store:   store,
		editor:  editor,
	}
}

// RegisterRoutes registers the itinerary editor routes.
func (h *ItineraryHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/itinerary", h.Itinerary, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/itinerary/{id}/time", h.EditTime, huma.OperationTags("editor"))
}

// ItineraryItemData feeds the itinerary-item template.
type ItineraryItemData struct {
	ID       string
	Name     string
	Category string
	Time     string
	Duration string
	Delta    string
	Notes    string
}

// DayGroupData feeds the day-group template.
type DayGroupData struct {
	Label string
	Date  string
	Items []ItineraryItemData
}

func toItemData(item schedule.Item) ItineraryItemData {
	f := item.Feature
	base := f.Properties.Base()

	data := ItineraryItemData{
		ID:       f.ID,
		Name:     base.Name,
		Category: string(base.Category),
		Notes:    base.Notes,
	}
	if data.Name == "" {
		data.Name = "Unnamed " + data.Category
	}
	if t := f.Arrival(); t != nil {
		data.Time = t.Format("15:04")
	}
	if sched := f.Properties.Schedule(); sched != nil && sched.EstimatedDurationMin != nil {
		data.Duration = fmt.Sprintf("%d min", *sched.EstimatedDurationMin)
	}
	if item.DeltaMin != nil {
		data.Delta = fmt.Sprintf("+%d min", *item.DeltaMin)
	}
	return data
}

// renderItinerary renders the full day-group list for the panel.
func (h *ItineraryHandler) renderItinerary(groups []schedule.Group) string {
	var buf bytes.Buffer
	if len(groups) == 0 {
		h.Renderer.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": "No itinerary yet", "Message": "Drop markers on the map to build your trip",
		})
		return buf.String()
	}

	for _, g := range groups {
		data := DayGroupData{Label: g.Label, Date: g.Date}
		for _, item := range g.Items {
			data.Items = append(data.Items, toItemData(item))
		}
		h.Renderer.RenderToBuffer(&buf, "day-group", data)
	}
	return buf.String()
}

func (h *ItineraryHandler) currentGroups(ctx context.Context) ([]schedule.Group, error) {
	features, err := h.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.ComputeGroups(features, nil), nil
}

// Itinerary streams the rendered itinerary panel.
func (h *ItineraryHandler) Itinerary(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		groups, err := h.currentGroups(ctx)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderItinerary(groups), "#itinerary-list")
	}), nil
}

// EditTimeInput carries the edited checkpoint and the Datastar signals
// (newtime, cascade) from the planner form.
type EditTimeInput struct {
	ID      string `path:"id" doc:"Feature ID"`
	RawBody []byte
}

// parseEditTime accepts RFC 3339 or the datetime-local input format.
func parseEditTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", s)
}

// EditTime applies a checkpoint time edit and re-renders the panel.
func (h *ItineraryHandler) EditTime(ctx context.Context, input *EditTimeInput) (*huma.StreamResponse, error) {
	signals, err := humastar.ParseSignals(input.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}

	raw := signals.String("newtime")
	if raw == "" {
		return nil, huma.Error400BadRequest("Signal 'newtime' is required")
	}
	newTime, err := parseEditTime(raw)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid time: " + raw)
	}
	cascade := signals.Bool("cascade")

	return h.Stream(func(sse humastar.SSE) {
		if err := h.editor.EditTime(ctx, input.ID, newTime, cascade); err != nil {
			if errors.Is(err, schedule.ErrInconsistent) {
				sse.Signals(map[string]any{"error": err.Error(), "reload": true})
			} else {
				sse.Error(err.Error())
			}
			return
		}

		feature.DefaultBus.Publish(feature.Event{
			Resource: "features", Action: "rescheduled", ID: input.ID,
		})

		groups, err := h.currentGroups(ctx)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderItinerary(groups), "#itinerary-list")
		sse.Success("Checkpoint time updated")
	}), nil
}

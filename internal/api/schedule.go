package api

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/schedule"
)

// ScheduleHandler serves the derived itinerary and checkpoint time edits.
type ScheduleHandler struct {
	store  feature.Store
	editor *schedule.Editor
	bus    *feature.EventBus
}

// NewScheduleHandler creates a schedule handler.
func NewScheduleHandler(store feature.Store, editor *schedule.Editor, bus *feature.EventBus) *ScheduleHandler {
	return &ScheduleHandler{store: store, editor: editor, bus: bus}
}

// RegisterRoutes registers the schedule routes.
func (h *ScheduleHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/schedule", h.GetSchedule, huma.OperationTags("schedule"))
	huma.Post(api, "/api/v1/schedule/{id}/time", h.EditTime, huma.OperationTags("schedule"))
}

// ItemBody is one itinerary entry with its display delta.
type ItemBody struct {
	Feature  FeatureBody `json:"feature"`
	DeltaMin *int        `json:"delta_minutes,omitempty" doc:"Minutes since the previous checkpoint"`
}

// GroupBody is one itinerary day bucket.
type GroupBody struct {
	DayNumber int        `json:"day_number" doc:"1-based day index; 0 for unscheduled features"`
	Date      string     `json:"date,omitempty" doc:"Calendar date (YYYY-MM-DD)"`
	Label     string     `json:"label" doc:"Display label"`
	Items     []ItemBody `json:"items"`
}

// ScheduleInput selects the itinerary view.
type ScheduleInput struct {
	Start string `query:"start" doc:"Trip start date (YYYY-MM-DD); defaults to the earliest scheduled arrival" example:"2026-07-14"`
}

// ScheduleOutput wraps the itinerary response.
type ScheduleOutput struct {
	Body struct {
		Groups []GroupBody `json:"groups"`
	}
}

func toGroupBodies(groups []schedule.Group) []GroupBody {
	out := make([]GroupBody, 0, len(groups))
	for _, g := range groups {
		gb := GroupBody{DayNumber: g.DayNumber, Date: g.Date, Label: g.Label}
		for _, item := range g.Items {
			gb.Items = append(gb.Items, ItemBody{
				Feature:  toFeatureBody(item.Feature),
				DeltaMin: item.DeltaMin,
			})
		}
		out = append(out, gb)
	}
	return out
}

func (h *ScheduleHandler) GetSchedule(ctx context.Context, input *ScheduleInput) (*ScheduleOutput, error) {
	var start *time.Time
	if input.Start != "" {
		t, err := time.Parse("2006-01-02", input.Start)
		if err != nil {
			return nil, huma.Error400BadRequest("Invalid start date, expected YYYY-MM-DD: " + input.Start)
		}
		start = &t
	}

	features, err := h.store.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list features: " + err.Error())
	}

	resp := &ScheduleOutput{}
	resp.Body.Groups = toGroupBodies(schedule.ComputeGroups(features, start))
	return resp, nil
}

// EditTimeInput sets a checkpoint's arrival time.
type EditTimeInput struct {
	ID   string `path:"id" doc:"Feature ID"`
	Body struct {
		Time    time.Time `json:"time" required:"true" doc:"New arrival time (RFC 3339)"`
		Cascade bool      `json:"cascade,omitempty" doc:"Shift all later checkpoints by the same delta"`
	}
}

func (h *ScheduleHandler) EditTime(ctx context.Context, input *EditTimeInput) (*ScheduleOutput, error) {
	err := h.editor.EditTime(ctx, input.ID, input.Body.Time, input.Body.Cascade)
	if err != nil {
		if errors.Is(err, schedule.ErrInconsistent) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, huma.Error400BadRequest(err.Error())
	}

	if h.bus != nil {
		h.bus.Publish(feature.Event{Resource: "features", Action: "rescheduled", ID: input.ID})
	}

	features, err := h.store.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list features: " + err.Error())
	}

	resp := &ScheduleOutput{}
	resp.Body.Groups = toGroupBodies(schedule.ComputeGroups(features, nil))
	return resp, nil
}

package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/schedule"
)

// EventHandler streams resource change events to the Datastar UI via SSE.
// Feature mutations re-render the itinerary panel; every event is also
// forwarded as a browser custom event so the map can refresh its layers.
type EventHandler struct {
	humastar.Handler
	itinerary *ItineraryHandler
}

// NewEventHandler creates a new event handler.
func NewEventHandler(store feature.Store, editor *schedule.Editor, renderer *humastar.Renderer) *EventHandler {
	return &EventHandler{
		Handler:   humastar.Handler{Renderer: renderer},
		itinerary: NewItineraryHandler(store, editor, renderer),
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ch := feature.DefaultBus.Subscribe()
		defer feature.DefaultBus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if ev.Resource == "features" {
					if groups, err := h.itinerary.currentGroups(ctx); err == nil {
						sse.Patch(h.itinerary.renderItinerary(groups), "#itinerary-list")
					}
				}
				sse.DispatchCustomEvent("resource-changed", map[string]any{
					"resource": ev.Resource,
					"action":   ev.Action,
					"id":       ev.ID,
				})
			}
		}
	}), nil
}

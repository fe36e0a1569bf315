package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/track"
)

// TrackHandler serves the reference track registry routes.
type TrackHandler struct {
	registry *track.Registry
	bus      *feature.EventBus
}

// NewTrackHandler creates a track handler.
func NewTrackHandler(registry *track.Registry, bus *feature.EventBus) *TrackHandler {
	return &TrackHandler{registry: registry, bus: bus}
}

// RegisterRoutes registers the track routes.
func (h *TrackHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tracks", h.ListTracks, huma.OperationTags("tracks"))
	huma.Post(api, "/api/v1/tracks", h.ImportTrack, huma.OperationTags("tracks"))
	huma.Get(api, "/api/v1/tracks/{id}", h.GetTrack, huma.OperationTags("tracks"))
	huma.Delete(api, "/api/v1/tracks/{id}", h.DeleteTrack, huma.OperationTags("tracks"))
}

// WaypointBody is a named point of interest carried by a GPX file.
type WaypointBody struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Name      string  `json:"name,omitempty"`
	Elevation float64 `json:"elevation,omitempty" doc:"Elevation in meters"`
}

// TrackBody is the wire form of a reference track.
type TrackBody struct {
	ID         string         `json:"id" doc:"Track ID, derived from the source filename"`
	Name       string         `json:"name,omitempty" doc:"Track name from the GPX metadata"`
	Points     [][]float64    `json:"points" doc:"Track points ([lng, lat])"`
	PointCount int            `json:"point_count" doc:"Number of track points"`
	Waypoints  []WaypointBody `json:"waypoints,omitempty"`
}

func toTrackBody(t track.ReferenceTrack, includePoints bool) TrackBody {
	body := TrackBody{ID: t.ID, Name: t.Name, PointCount: len(t.Points)}
	if includePoints {
		body.Points = make([][]float64, 0, len(t.Points))
		for _, p := range t.Points {
			body.Points = append(body.Points, []float64{p[0], p[1]})
		}
	}
	for _, w := range t.Waypoints {
		body.Waypoints = append(body.Waypoints, WaypointBody{
			Lat: w.Lat, Lon: w.Lon, Name: w.Name, Elevation: w.Elevation,
		})
	}
	return body
}

// TrackListOutput wraps a track list response. Points are omitted from
// the listing; fetch a single track for the full geometry.
type TrackListOutput struct {
	Body struct {
		Tracks []TrackBody `json:"tracks"`
		Count  int         `json:"count" doc:"Number of tracks"`
	}
}

func (h *TrackHandler) ListTracks(ctx context.Context, input *struct{}) (*TrackListOutput, error) {
	tracks := h.registry.List()

	resp := &TrackListOutput{}
	resp.Body.Tracks = make([]TrackBody, 0, len(tracks))
	for _, t := range tracks {
		resp.Body.Tracks = append(resp.Body.Tracks, toTrackBody(t, false))
	}
	resp.Body.Count = len(tracks)
	return resp, nil
}

// ImportTrackInput carries a GPX document to import.
type ImportTrackInput struct {
	Body struct {
		Filename string `json:"filename" required:"true" doc:"Source filename; the track ID derives from it" example:"haute-route.gpx"`
		GPX      string `json:"gpx" required:"true" doc:"GPX 1.0/1.1 document"`
	}
}

// TrackOutput wraps a single track response.
type TrackOutput struct {
	Body TrackBody
}

func (h *TrackHandler) ImportTrack(ctx context.Context, input *ImportTrackInput) (*TrackOutput, error) {
	t, err := h.registry.Import(input.Body.Filename, []byte(input.Body.GPX))
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to import track: " + err.Error())
	}

	if h.bus != nil {
		h.bus.Publish(feature.Event{Resource: "tracks", Action: "created", ID: t.ID})
	}
	return &TrackOutput{Body: toTrackBody(t, true)}, nil
}

func (h *TrackHandler) GetTrack(ctx context.Context, input *IDInput) (*TrackOutput, error) {
	t, ok := h.registry.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("Track not found: " + input.ID)
	}
	return &TrackOutput{Body: toTrackBody(t, true)}, nil
}

func (h *TrackHandler) DeleteTrack(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if err := h.registry.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound("Track not found: " + input.ID)
	}

	if h.bus != nil {
		h.bus.Publish(feature.Event{Resource: "tracks", Action: "deleted", ID: input.ID})
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Track deleted: " + input.ID}}, nil
}

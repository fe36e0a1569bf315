// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/feature"
)

// HealthBody reports service liveness.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// MessageBody is a generic result message.
type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// IDInput identifies a feature by path parameter.
type IDInput struct {
	ID string `path:"id" doc:"Feature ID"`
}

// PropsBody is the flat wire form of feature properties. The category
// field selects which of the optional fields are meaningful.
type PropsBody struct {
	Category             string     `json:"category" required:"true" enum:"waypoint,marker,route,area" doc:"Feature category"`
	Name                 string     `json:"name,omitempty" doc:"Display name"`
	Notes                string     `json:"notes,omitempty" doc:"Free-form notes"`
	EstimatedArrival     *time.Time `json:"estimated_arrival,omitempty" doc:"Planned arrival time (waypoint/marker)"`
	EstimatedDurationMin *int       `json:"estimated_duration_minutes,omitempty" minimum:"0" doc:"Planned minutes spent here (waypoint/marker)"`
	WaterSource          bool       `json:"water_source,omitempty" doc:"Water available (waypoint)"`
	Camp                 bool       `json:"camp,omitempty" doc:"Camp spot (waypoint)"`
	SnappedTrackID       string     `json:"snapped_track_id,omitempty" doc:"Track the waypoint snapped to"`
	HazardGrade          string     `json:"hazard_grade,omitempty" doc:"Hazard grade (marker/route)"`
	ShapeType            string     `json:"shape_type,omitempty" doc:"Original drawing shape (area)"`
	CircleCenter         []float64  `json:"circle_center,omitempty" doc:"Circle center ([lng, lat], area)"`
	CircleRadiusM        float64    `json:"circle_radius_m,omitempty" doc:"Circle radius in meters (area)"`
}

// FeatureBody is the wire form of a feature. Geometry is the GeoJSON
// {type, coordinates} object with [lng, lat] coordinates.
type FeatureBody struct {
	ID         string    `json:"id" doc:"Feature ID"`
	Geometry   any       `json:"geometry" doc:"GeoJSON geometry"`
	Properties PropsBody `json:"properties"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// toProps converts the flat wire form into the typed property variant.
// Both sides share JSON tags, so the conversion is a tagged re-decode.
func toProps(body PropsBody) (feature.Props, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return feature.UnmarshalProps(raw)
}

// toPropsBody flattens a typed property variant for the wire.
func toPropsBody(props feature.Props) PropsBody {
	var body PropsBody
	if props == nil {
		return body
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return body
	}
	json.Unmarshal(raw, &body)
	return body
}

// toFeatureBody converts a stored feature to its wire form.
func toFeatureBody(f feature.Feature) FeatureBody {
	return FeatureBody{
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: toPropsBody(f.Properties),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// decodeGeometry parses a wire geometry value into GeoJSON form.
func decodeGeometry(v any) (*geojson.Geometry, error) {
	if v == nil {
		return nil, fmt.Errorf("geometry is required")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	return g, nil
}

// HealthHandler serves liveness checks.
type HealthHandler struct{}

// RegisterRoutes registers health check routes.
func (h *HealthHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *HealthHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

// InfoBody describes the running service.
type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether DuckDB is available"`
	Features []string `json:"features" doc:"Available features"`
}

// InfoHandler serves service metadata.
type InfoHandler struct {
	DataDir string
	DBOK    bool
}

// RegisterRoutes registers the info route.
func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-trip",
		Version:  "0.1.0",
		DataDir:  h.DataDir,
		DB:       h.DBOK,
		Features: []string{"drawing", "snapping", "itinerary", "gpx", "duckdb"},
	}}, nil
}

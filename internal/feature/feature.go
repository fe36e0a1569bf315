// Package feature defines the persisted map features of a trip plan and
// the stores that hold them. A feature is a GeoJSON geometry plus typed
// properties discriminated by category.
package feature

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Category discriminates the property variant carried by a feature.
type Category string

const (
	CategoryWaypoint Category = "waypoint"
	CategoryMarker   Category = "marker"
	CategoryRoute    Category = "route"
	CategoryArea     Category = "area"
)

// BaseProps is shared by all property variants.
type BaseProps struct {
	Category Category `json:"category" doc:"Feature category" enum:"waypoint,marker,route,area"`
	Name     string   `json:"name,omitempty" doc:"Display name"`
	Notes    string   `json:"notes,omitempty" doc:"Free-form notes"`
}

// ScheduleProps carries the itinerary fields of schedulable point
// features. A nil EstimatedArrival means the feature is a reference item
// outside the timeline.
type ScheduleProps struct {
	EstimatedArrival     *time.Time `json:"estimated_arrival,omitempty" doc:"Planned arrival time"`
	EstimatedDurationMin *int       `json:"estimated_duration_minutes,omitempty" minimum:"0" doc:"Planned time spent here, in minutes"`
}

// Props is the discriminated property union. Base is never nil; Schedule
// is nil for variants that cannot be placed on the timeline.
type Props interface {
	Base() *BaseProps
	Schedule() *ScheduleProps
}

// WaypointProps annotates a point on (or snapped to) a reference track.
type WaypointProps struct {
	BaseProps
	ScheduleProps
	WaterSource    bool   `json:"water_source,omitempty" doc:"Water is available here"`
	Camp           bool   `json:"camp,omitempty" doc:"Suitable camp spot"`
	SnappedTrackID string `json:"snapped_track_id,omitempty" doc:"Reference track this waypoint was snapped to"`
}

func (p *WaypointProps) Base() *BaseProps         { return &p.BaseProps }
func (p *WaypointProps) Schedule() *ScheduleProps { return &p.ScheduleProps }

// MarkerProps annotates a free-standing point of interest.
type MarkerProps struct {
	BaseProps
	ScheduleProps
	HazardGrade string `json:"hazard_grade,omitempty" doc:"Hazard grade, e.g. T1-T6"`
}

func (p *MarkerProps) Base() *BaseProps         { return &p.BaseProps }
func (p *MarkerProps) Schedule() *ScheduleProps { return &p.ScheduleProps }

// RouteProps annotates a drawn line.
type RouteProps struct {
	BaseProps
	HazardGrade string `json:"hazard_grade,omitempty" doc:"Hazard grade for the leg"`
}

func (p *RouteProps) Base() *BaseProps         { return &p.BaseProps }
func (p *RouteProps) Schedule() *ScheduleProps { return nil }

// AreaProps annotates a drawn polygon. Circles keep their center and
// radius so the original shape can be re-edited.
type AreaProps struct {
	BaseProps
	ShapeType     string     `json:"shape_type,omitempty" doc:"Original drawing shape" enum:",polygon,rectangle,circle"`
	CircleCenter  *orb.Point `json:"circle_center,omitempty" doc:"Circle center ([lng, lat])"`
	CircleRadiusM float64    `json:"circle_radius_m,omitempty" doc:"Circle radius in meters"`
}

func (p *AreaProps) Base() *BaseProps         { return &p.BaseProps }
func (p *AreaProps) Schedule() *ScheduleProps { return nil }

// NewProps returns the zero property variant for a category.
func NewProps(c Category) (Props, error) {
	switch c {
	case CategoryWaypoint:
		return &WaypointProps{BaseProps: BaseProps{Category: c}}, nil
	case CategoryMarker:
		return &MarkerProps{BaseProps: BaseProps{Category: c}}, nil
	case CategoryRoute:
		return &RouteProps{BaseProps: BaseProps{Category: c}}, nil
	case CategoryArea:
		return &AreaProps{BaseProps: BaseProps{Category: c}}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", c)
	}
}

// UnmarshalProps decodes a flat properties object into the variant named
// by its category field.
func UnmarshalProps(data []byte) (Props, error) {
	var tag struct {
		Category Category `json:"category"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("parsing properties: %w", err)
	}

	props, err := NewProps(tag.Category)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, props); err != nil {
		return nil, fmt.Errorf("parsing %s properties: %w", tag.Category, err)
	}
	return props, nil
}

// Feature is a persisted map feature. Geometry uses the GeoJSON
// {type, coordinates} interchange form with [lng, lat] coordinates.
type Feature struct {
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Props             `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Arrival returns the feature's estimated arrival, or nil for reference
// items and unschedulable categories.
func (f Feature) Arrival() *time.Time {
	if f.Properties == nil {
		return nil
	}
	if s := f.Properties.Schedule(); s != nil {
		return s.EstimatedArrival
	}
	return nil
}

// featureJSON is the wire/disk shadow of Feature with raw properties.
type featureJSON struct {
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties json.RawMessage   `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// UnmarshalJSON decodes the properties into the category's variant.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var shadow featureJSON
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}

	props, err := UnmarshalProps(shadow.Properties)
	if err != nil {
		return err
	}

	f.ID = shadow.ID
	f.Geometry = shadow.Geometry
	f.Properties = props
	f.CreatedAt = shadow.CreatedAt
	f.UpdatedAt = shadow.UpdatedAt
	return nil
}

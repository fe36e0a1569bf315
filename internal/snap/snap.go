// Package snap pulls candidate points onto nearby reference tracks.
//
// Snap tolerance is a perceptual on-screen quantity, so the comparison
// happens in pixel space: candidates are projected to screen pixels via a
// Projector and the closest projected track segment wins if it is within
// tolerance.
package snap

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-trip/internal/geom"
	"github.com/joeblew999/plat-trip/internal/track"
)

// DefaultTolerancePx is the snap tolerance used when none is configured.
const DefaultTolerancePx = 20.0

// Projector converts a geographic point to screen-pixel coordinates.
type Projector interface {
	Project(p orb.Point) (x, y float64)
}

// MercatorProjector projects WGS84 points into Web Mercator pixel space
// at a fixed zoom level with 256px tiles.
type MercatorProjector struct {
	Zoom float64
}

// maxExtent is the Web Mercator half-extent in meters (EPSG:3857).
const maxExtent = 20037508.342789244

// Project implements Projector.
func (m MercatorProjector) Project(p orb.Point) (x, y float64) {
	merc := project.WGS84.ToMercator(p)
	worldPx := 256 * math.Exp2(m.Zoom)

	x = (merc[0] + maxExtent) / (2 * maxExtent) * worldPx
	y = (maxExtent - merc[1]) / (2 * maxExtent) * worldPx
	return x, y
}

// Result describes a successful snap.
type Result struct {
	Point      orb.Point `json:"point" doc:"Snapped point ([lng, lat]), lying on a track segment"`
	TrackID    string    `json:"track_id" doc:"Track the point snapped to"`
	DistancePx float64   `json:"distance_px" doc:"Pixel distance from the candidate"`
}

// Engine finds snap points against a set of reference tracks.
type Engine struct {
	Projector   Projector
	TolerancePx float64
}

// NewEngine creates an engine with the default 20px tolerance at the
// given zoom level.
func NewEngine(zoom float64) *Engine {
	return &Engine{
		Projector:   MercatorProjector{Zoom: zoom},
		TolerancePx: DefaultTolerancePx,
	}
}

// FindSnapPoint projects candidate onto every consecutive segment of
// every track and returns the closest result within tolerance. A miss is
// not an error: callers fall back to the raw candidate. The first
// segment achieving the minimum wins, and tracks arrive in registry
// order (sorted by ID), so ties are deterministic.
//
// Cost is O(total track vertices) per candidate, which is fine because
// snapping only runs on discrete click events.
func (e *Engine) FindSnapPoint(candidate orb.Point, tracks []track.ReferenceTrack) (Result, bool) {
	cx, cy := e.Projector.Project(candidate)

	best := Result{DistancePx: math.Inf(1)}

	for _, trk := range tracks {
		for i := 0; i+1 < len(trk.Points); i++ {
			proj := geom.ProjectPointOntoSegment(candidate, trk.Points[i], trk.Points[i+1])

			px, py := e.Projector.Project(proj)
			d := math.Hypot(px-cx, py-cy)

			if d < best.DistancePx {
				best = Result{Point: proj, TrackID: trk.ID, DistancePx: d}
			}
		}
	}

	if best.DistancePx > e.TolerancePx {
		return Result{}, false
	}
	return best, true
}

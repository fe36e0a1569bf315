// Package draw implements the multi-step drawing protocol that turns a
// sequence of pointer events into committed map features.
//
// A Controller owns one Session at a time. All transitions are
// synchronous; commands that arrive in an invalid state (finishing a
// polyline with one vertex, clicking with no tool) are silent no-ops and
// never corrupt the session.
package draw

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/feature"
	"github.com/joeblew999/plat-trip/internal/geom"
	"github.com/joeblew999/plat-trip/internal/snap"
	"github.com/joeblew999/plat-trip/internal/track"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolNone      Tool = "none"
	ToolMarker    Tool = "marker"
	ToolPolyline  Tool = "polyline"
	ToolPolygon   Tool = "polygon"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
)

// ValidTool reports whether t names a selectable tool.
func ValidTool(t Tool) bool {
	switch t {
	case ToolNone, ToolMarker, ToolPolyline, ToolPolygon, ToolRectangle, ToolCircle:
		return true
	}
	return false
}

// State describes where a session is in its protocol.
type State string

const (
	StateIdle         State = "idle"         // no tool selected
	StateArmed        State = "armed"        // tool selected, nothing captured
	StateAccumulating State = "accumulating" // at least one vertex or parameter captured
)

// Session is the transient state of one tool activation. It is never
// persisted; committing or cancelling discards it.
type Session struct {
	Tool         Tool        `json:"tool" doc:"Active drawing tool"`
	Vertices     []orb.Point `json:"vertices,omitempty" doc:"Accumulated vertices ([lng, lat])"`
	RectStart    *orb.Point  `json:"rect_start,omitempty" doc:"First rectangle corner"`
	CircleCenter *orb.Point  `json:"circle_center,omitempty" doc:"Circle center"`
	Preview      *orb.Point  `json:"preview,omitempty" doc:"Last pointer position, for live preview only"`
}

// State derives the protocol state from the session contents.
func (s Session) State() State {
	switch {
	case s.Tool == ToolNone || s.Tool == "":
		return StateIdle
	case len(s.Vertices) > 0 || s.RectStart != nil || s.CircleCenter != nil:
		return StateAccumulating
	default:
		return StateArmed
	}
}

// TrackSource supplies the reference tracks to snap against.
type TrackSource interface {
	List() []track.ReferenceTrack
}

// Controller drives drawing sessions and commits finished geometries to
// the feature store. A mutex keeps the session single-threaded.
type Controller struct {
	mu      sync.Mutex
	session Session
	store   feature.Store
	snapper *snap.Engine
	tracks  TrackSource
}

// NewController creates a controller. tracks may be nil when no snapping
// is wanted.
func NewController(store feature.Store, snapper *snap.Engine, tracks TrackSource) *Controller {
	return &Controller{
		session: Session{Tool: ToolNone},
		store:   store,
		snapper: snapper,
		tracks:  tracks,
	}
}

// Session returns a copy of the current session for preview rendering.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.session)
}

// SelectTool switches tools. Any in-progress session is discarded; no
// partial commit ever happens implicitly.
func (c *Controller) SelectTool(t Tool) error {
	if !ValidTool(t) {
		return fmt.Errorf("unknown tool %q", t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{Tool: t}
	return nil
}

// Cancel discards all accumulated state, keeping the tool armed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{Tool: c.session.Tool}
}

// Move updates the live preview position. It never commits state: a
// rectangle's second corner is only fixed by the next click.
func (c *Controller) Move(p orb.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pt := p
	c.session.Preview = &pt
}

// UndoVertex pops the last accumulated vertex. Empty sessions and
// non-accumulating tools ignore the command.
func (c *Controller) UndoVertex() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.session.Vertices); n > 0 {
		c.session.Vertices = c.session.Vertices[:n-1]
	}
}

// Click feeds a pointer click into the session. Marker, rectangle and
// circle tools may commit a feature; the returned feature is non-nil in
// that case.
func (c *Controller) Click(ctx context.Context, p orb.Point) (*feature.Feature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.session.Tool {
	case ToolMarker:
		return c.commitMarker(ctx, p)

	case ToolPolyline, ToolPolygon:
		c.session.Vertices = append(c.session.Vertices, p)
		return nil, nil

	case ToolRectangle:
		if c.session.RectStart == nil {
			pt := p
			c.session.RectStart = &pt
			return nil, nil
		}
		return c.commitRectangle(ctx, p)

	case ToolCircle:
		if c.session.CircleCenter == nil {
			pt := p
			c.session.CircleCenter = &pt
			return nil, nil
		}
		return c.commitCircle(ctx, p)

	default:
		return nil, nil // no tool armed
	}
}

// DoubleClick is equivalent to "append this point, then finish" for the
// vertex tools, provided enough vertices are already held (one for
// polylines, two for polygons). Other tools treat it as a plain click.
func (c *Controller) DoubleClick(ctx context.Context, p orb.Point) (*feature.Feature, error) {
	c.mu.Lock()

	switch c.session.Tool {
	case ToolPolyline:
		if len(c.session.Vertices) >= 1 {
			c.session.Vertices = append(c.session.Vertices, p)
			defer c.mu.Unlock()
			return c.finishLocked(ctx)
		}
		c.mu.Unlock()
		return nil, nil

	case ToolPolygon:
		if len(c.session.Vertices) >= 2 {
			c.session.Vertices = append(c.session.Vertices, p)
			defer c.mu.Unlock()
			return c.finishLocked(ctx)
		}
		c.mu.Unlock()
		return nil, nil

	default:
		c.mu.Unlock()
		return c.Click(ctx, p)
	}
}

// Finish commits the accumulated polyline or polygon. Below the minimum
// vertex count it is a silent no-op.
func (c *Controller) Finish(ctx context.Context) (*feature.Feature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishLocked(ctx)
}

func (c *Controller) finishLocked(ctx context.Context) (*feature.Feature, error) {
	switch c.session.Tool {
	case ToolPolyline:
		if len(c.session.Vertices) < 2 {
			return nil, nil
		}
		line := make(orb.LineString, len(c.session.Vertices))
		copy(line, c.session.Vertices)

		return c.commit(ctx, geojson.NewGeometry(line), &feature.RouteProps{
			BaseProps: feature.BaseProps{Category: feature.CategoryRoute},
		})

	case ToolPolygon:
		if len(c.session.Vertices) < 3 {
			return nil, nil
		}
		ring := geom.ClosePolygonRing(c.session.Vertices)

		return c.commit(ctx, geojson.NewGeometry(orb.Polygon{ring}), &feature.AreaProps{
			BaseProps: feature.BaseProps{Category: feature.CategoryArea},
			ShapeType: "polygon",
		})

	default:
		return nil, nil
	}
}

// commitMarker snaps the click against the reference tracks and commits
// a point feature immediately. Snapped points become waypoints tied to
// their track; a snap miss falls through to the raw coordinate.
func (c *Controller) commitMarker(ctx context.Context, p orb.Point) (*feature.Feature, error) {
	point := p
	var props feature.Props = &feature.MarkerProps{
		BaseProps: feature.BaseProps{Category: feature.CategoryMarker},
	}

	if c.snapper != nil && c.tracks != nil {
		if res, ok := c.snapper.FindSnapPoint(p, c.tracks.List()); ok {
			point = res.Point
			props = &feature.WaypointProps{
				BaseProps:      feature.BaseProps{Category: feature.CategoryWaypoint},
				SnappedTrackID: res.TrackID,
			}
		}
	}

	return c.commit(ctx, geojson.NewGeometry(point), props)
}

func (c *Controller) commitRectangle(ctx context.Context, p orb.Point) (*feature.Feature, error) {
	ring := geom.RectangleRing(*c.session.RectStart, p)

	return c.commit(ctx, geojson.NewGeometry(orb.Polygon{ring}), &feature.AreaProps{
		BaseProps: feature.BaseProps{Category: feature.CategoryArea},
		ShapeType: "rectangle",
	})
}

func (c *Controller) commitCircle(ctx context.Context, p orb.Point) (*feature.Feature, error) {
	center := *c.session.CircleCenter
	radius := geom.Distance(center, p)
	ring := geom.ApproximateCircle(center, radius, 32)

	return c.commit(ctx, geojson.NewGeometry(orb.Polygon{ring}), &feature.AreaProps{
		BaseProps:     feature.BaseProps{Category: feature.CategoryArea},
		ShapeType:     "circle",
		CircleCenter:  &center,
		CircleRadiusM: radius,
	})
}

// commit persists the geometry. On failure the session is left intact so
// the caller can retry without losing the in-progress shape.
func (c *Controller) commit(ctx context.Context, geometry *geojson.Geometry, props feature.Props) (*feature.Feature, error) {
	f, err := c.store.Create(ctx, geometry, props)
	if err != nil {
		return nil, fmt.Errorf("committing %s: %w", props.Base().Category, err)
	}

	c.session = Session{Tool: c.session.Tool}
	return &f, nil
}

func copySession(s Session) Session {
	out := s
	if s.Vertices != nil {
		out.Vertices = append([]orb.Point(nil), s.Vertices...)
	}
	if s.RectStart != nil {
		p := *s.RectStart
		out.RectStart = &p
	}
	if s.CircleCenter != nil {
		p := *s.CircleCenter
		out.CircleCenter = &p
	}
	if s.Preview != nil {
		p := *s.Preview
		out.Preview = &p
	}
	return out
}

// Package geom provides the geometry primitives for the drawing tools:
// great-circle distance, point-to-segment projection, ring closing, and
// polygon approximations of rectangles and circles.
//
// All functions are pure and operate on orb value types. Coordinates are
// [longitude, latitude] throughout, matching GeoJSON order.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// metersPerDegree is the length of one degree of latitude in meters.
// Longitude degrees shrink by cos(latitude).
const metersPerDegree = 111320.0

// Distance returns the haversine distance between two points in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// SegmentParam returns the parametric position t in [0,1] of the closest
// point to p on the segment a→b. A zero-length segment yields t = 0.
func SegmentParam(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	return math.Max(0, math.Min(1, t))
}

// ProjectPointOntoSegment returns the closest point to p on the segment
// a→b, clamped to the segment's endpoints. A zero-length segment
// degenerates to a.
func ProjectPointOntoSegment(p, a, b orb.Point) orb.Point {
	t := SegmentParam(p, a, b)
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// ClosePolygonRing returns a closed ring from the given vertices,
// appending the first vertex when the ring is not already closed.
func ClosePolygonRing(vertices []orb.Point) orb.Ring {
	ring := make(orb.Ring, len(vertices))
	copy(ring, vertices)

	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return ring
}

// RectangleRing returns the axis-aligned closed 5-vertex ring spanned by
// two opposite corners, in SW→NW→NE→SE→SW order. The corners may be
// given in any order.
func RectangleRing(a, b orb.Point) orb.Ring {
	minLng, maxLng := math.Min(a[0], b[0]), math.Max(a[0], b[0])
	minLat, maxLat := math.Min(a[1], b[1]), math.Max(a[1], b[1])

	return orb.Ring{
		{minLng, minLat},
		{minLng, maxLat},
		{maxLng, maxLat},
		{maxLng, minLat},
		{minLng, minLat},
	}
}

// ApproximateCircle returns a closed regular polygon ring approximating a
// circle of radiusMeters around center. Longitude offsets are scaled by
// cos(latitude) so the shape stays round away from the equator.
// segments <= 0 defaults to 32.
func ApproximateCircle(center orb.Point, radiusMeters float64, segments int) orb.Ring {
	if segments <= 0 {
		segments = 32
	}

	latRad := center[1] * math.Pi / 180
	lngScale := metersPerDegree * math.Cos(latRad)

	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		angle := 2 * math.Pi * float64(i) / float64(segments)
		dx := radiusMeters * math.Cos(angle)
		dy := radiusMeters * math.Sin(angle)

		ring = append(ring, orb.Point{
			center[0] + dx/lngScale,
			center[1] + dy/metersPerDegree,
		})
	}
	ring = append(ring, ring[0])

	return ring
}

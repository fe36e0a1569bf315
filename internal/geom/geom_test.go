package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestDistance(t *testing.T) {
	// Paris → Berlin is roughly 878 km.
	paris := orb.Point{2.3522, 48.8566}
	berlin := orb.Point{13.4050, 52.5200}

	d := Distance(paris, berlin)
	if d < 870_000 || d > 890_000 {
		t.Fatalf("Distance(paris, berlin) = %.0f m, want ~878 km", d)
	}

	if d := Distance(paris, paris); d != 0 {
		t.Fatalf("Distance(p, p) = %f, want 0", d)
	}
}

func TestSegmentParamClamped(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	cases := []struct {
		p    orb.Point
		want float64
	}{
		{orb.Point{5, 3}, 0.5},
		{orb.Point{-4, 1}, 0},  // before a
		{orb.Point{15, -2}, 1}, // beyond b
		{orb.Point{0, 0}, 0},
		{orb.Point{10, 5}, 1},
	}
	for _, c := range cases {
		if got := SegmentParam(c.p, a, b); got != c.want {
			t.Fatalf("SegmentParam(%v) = %f, want %f", c.p, got, c.want)
		}
	}
}

func TestProjectPointOntoSegment(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{10, 0}

	got := ProjectPointOntoSegment(orb.Point{3, 4}, a, b)
	if !got.Equal(orb.Point{3, 0}) {
		t.Fatalf("projection = %v, want (3,0)", got)
	}

	// Beyond either endpoint returns the endpoint exactly.
	if got := ProjectPointOntoSegment(orb.Point{-5, 2}, a, b); !got.Equal(a) {
		t.Fatalf("projection before start = %v, want %v", got, a)
	}
	if got := ProjectPointOntoSegment(orb.Point{20, 2}, a, b); !got.Equal(b) {
		t.Fatalf("projection past end = %v, want %v", got, b)
	}
}

func TestProjectPointOntoZeroLengthSegment(t *testing.T) {
	a := orb.Point{4, 4}
	got := ProjectPointOntoSegment(orb.Point{1, 1}, a, a)
	if !got.Equal(a) {
		t.Fatalf("projection onto degenerate segment = %v, want %v", got, a)
	}
}

func TestClosePolygonRing(t *testing.T) {
	open := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	ring := ClosePolygonRing(open)

	if len(ring) != 4 {
		t.Fatalf("ring length = %d, want 4", len(ring))
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		t.Fatal("ring is not closed")
	}

	// Already-closed input is left alone.
	closed := []orb.Point{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	if got := ClosePolygonRing(closed); len(got) != 4 {
		t.Fatalf("already-closed ring length = %d, want 4", len(got))
	}
}

func TestRectangleRing(t *testing.T) {
	ring := RectangleRing(orb.Point{0, 0}, orb.Point{1, 1})

	want := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	if len(ring) != 5 {
		t.Fatalf("ring length = %d, want 5", len(ring))
	}
	for i := range want {
		if !ring[i].Equal(want[i]) {
			t.Fatalf("ring[%d] = %v, want %v", i, ring[i], want[i])
		}
	}

	// Click order must not matter.
	flipped := RectangleRing(orb.Point{1, 0}, orb.Point{0, 1})
	for i := range want {
		if !flipped[i].Equal(want[i]) {
			t.Fatalf("flipped ring[%d] = %v, want %v", i, flipped[i], want[i])
		}
	}
}

func TestApproximateCircle(t *testing.T) {
	center := orb.Point{8.5, 46.5} // Swiss Alps
	ring := ApproximateCircle(center, 500, 32)

	if len(ring) != 33 {
		t.Fatalf("ring length = %d, want 33", len(ring))
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		t.Fatal("circle ring is not closed")
	}

	// Every vertex should sit close to 500 m from the center.
	for i, p := range ring[:32] {
		d := Distance(center, p)
		if math.Abs(d-500) > 5 {
			t.Fatalf("vertex %d is %.1f m from center, want ~500 m", i, d)
		}
	}
}

func TestApproximateCircleDefaultSegments(t *testing.T) {
	ring := ApproximateCircle(orb.Point{0, 0}, 100, 0)
	if len(ring) != 33 {
		t.Fatalf("ring length = %d, want 33 (32 default segments + close)", len(ring))
	}
}

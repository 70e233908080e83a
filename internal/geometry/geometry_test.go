package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDist(t *testing.T) {
	assert.Equal(t, 5.0, Dist(Point{0, 0}, Point{3, 4}))
	assert.Equal(t, 0.0, Dist(Point{2, 2}, Point{2, 2}))
}

func TestEdgeDist(t *testing.T) {
	// Two 32mm bases (radius ~0.63") 3 inches apart center to center.
	r := BaseRadius(32)
	got := EdgeDist(Point{0, 0}, r, Point{3, 0}, r)
	assert.InDelta(t, 3-2*r, got, 1e-9)

	// Overlapping bases go negative.
	assert.Less(t, EdgeDist(Point{0, 0}, 1, Point{1, 0}, 1), 0.0)
}

func TestEdgeDistSymmetric(t *testing.T) {
	a, b := Point{1.5, 2.5}, Point{7, -3}
	assert.Equal(t, EdgeDist(a, 0.5, b, 1.0), EdgeDist(b, 1.0, a, 0.5))
}

func TestSegDistToPoint(t *testing.T) {
	tt := []struct {
		name    string
		p, a, b Point
		want    float64
	}{
		{"perpendicular drop", Point{1, 1}, Point{0, 0}, Point{2, 0}, 1},
		{"beyond end clamps", Point{4, 0}, Point{0, 0}, Point{2, 0}, 2},
		{"degenerate segment", Point{3, 4}, Point{0, 0}, Point{0, 0}, 5},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, SegDistToPoint(tc.p, tc.a, tc.b), 1e-9)
		})
	}
}

func TestSegCrossesCircle(t *testing.T) {
	// Path straight through the circle.
	assert.True(t, SegCrossesCircle(Point{-2, 0}, Point{2, 0}, Point{0, 0}, 1))
	// Path skimming outside the buffer.
	assert.False(t, SegCrossesCircle(Point{-2, 1.5}, Point{2, 1.5}, Point{0, 0}, 1))
	// Path ending inside.
	assert.True(t, SegCrossesCircle(Point{-2, 0}, Point{0.5, 0}, Point{0, 0}, 1))
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.True(t, PointInPolygon(Point{2, 2}, square))
	assert.False(t, PointInPolygon(Point{5, 2}, square))
	assert.False(t, PointInPolygon(Point{2, 2}, square[:2]))
}

func TestSegCrossesPolygon(t *testing.T) {
	square := []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	// Straight through.
	assert.True(t, SegCrossesPolygon(Point{-1, 2}, Point{5, 2}, square))
	// Entirely outside.
	assert.False(t, SegCrossesPolygon(Point{-1, -1}, Point{5, -1}, square))
	// Ends inside.
	assert.True(t, SegCrossesPolygon(Point{-1, 2}, Point{2, 2}, square))
}

func TestBaseRadius(t *testing.T) {
	// 25.4mm base is exactly a 0.5" radius.
	assert.InDelta(t, 0.5, BaseRadius(25.4), 1e-12)
	assert.True(t, math.Abs(BaseRadius(32)-0.6299) < 1e-3)
}

package feature

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestPointLayerValid(t *testing.T) {
	tests := []struct {
		name   string
		points []orb.Point
		want   bool
	}{
		{"empty", nil, true},
		{"finite", []orb.Point{{1, 2}, {-3, 4.5}}, true},
		{"nan x", []orb.Point{{math.NaN(), 0}}, false},
		{"inf y", []orb.Point{{0, math.Inf(1)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := PointLayer{Frame: "EPSG:32736", Points: tt.points}
			if got := l.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineLayerValid(t *testing.T) {
	good := LineLayer{Lines: []orb.LineString{{{0, 0}, {1, 1}}}}
	if !good.Valid() {
		t.Error("finite line should be valid")
	}

	bad := LineLayer{Lines: []orb.LineString{{{0, 0}, {math.Inf(-1), 1}}}}
	if bad.Valid() {
		t.Error("infinite vertex should be invalid")
	}
}

func TestPointLayerBound(t *testing.T) {
	l := PointLayer{Points: []orb.Point{{2, 3}, {-1, 7}, {5, 0}}}
	b := l.Bound()

	if b.Min != (orb.Point{-1, 0}) || b.Max != (orb.Point{5, 7}) {
		t.Errorf("Bound() = %v, want [-1 0, 5 7]", b)
	}
}

func TestEmptyBound(t *testing.T) {
	l := PointLayer{}
	if !IsEmptyBound(l.Bound()) {
		t.Error("empty layer should produce the empty bound")
	}

	l.Points = []orb.Point{{1, 1}}
	if IsEmptyBound(l.Bound()) {
		t.Error("non-empty layer should not produce the empty bound")
	}
}

func TestNewParcel(t *testing.T) {
	geom := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	p := NewParcel(geom, 100)

	if p.ID == "" {
		t.Error("NewParcel should assign an id")
	}
	if p.Area != 100 {
		t.Errorf("Area = %v, want 100", p.Area)
	}

	q := NewParcel(geom, 100)
	if p.ID == q.ID {
		t.Error("parcel ids should be unique")
	}
}

func TestCollectionCount(t *testing.T) {
	c := Collection{Parcels: []Parcel{{}, {}, {}}}
	if c.Count() != 3 {
		t.Errorf("Count() = %d, want 3", c.Count())
	}
}

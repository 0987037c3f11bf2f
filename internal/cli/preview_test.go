package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
)

func squareParcel(x, y, size float64) feature.Parcel {
	p := orb.Polygon{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
	return feature.NewParcel(p, size*size)
}

func TestWriteSVG(t *testing.T) {
	coll := feature.Collection{
		Frame: "EPSG:3857",
		Parcels: []feature.Parcel{
			squareParcel(0, 0, 20),
			squareParcel(30, 0, 20),
		},
	}

	var buf bytes.Buffer
	if err := writeSVG(coll, &buf, 400); err != nil {
		t.Fatalf("writeSVG() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Error("output should contain an svg element")
	}
	if got := strings.Count(out, "<polygon"); got != 2 {
		t.Errorf("polygon count = %d, want 2", got)
	}
	if !strings.Contains(out, `width="400"`) {
		t.Error("output should use the requested width")
	}
}

func TestWriteSVGHoleRendersWhite(t *testing.T) {
	outer := orb.Ring{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}
	inner := orb.Ring{{40, 40}, {60, 40}, {60, 60}, {40, 60}, {40, 40}}
	coll := feature.Collection{
		Frame:   "EPSG:3857",
		Parcels: []feature.Parcel{feature.NewParcel(orb.Polygon{outer, inner}, 9600)},
	}

	var buf bytes.Buffer
	if err := writeSVG(coll, &buf, 200); err != nil {
		t.Fatalf("writeSVG() error: %v", err)
	}

	if !strings.Contains(buf.String(), "fill:white;stroke") {
		t.Error("hole ring should be filled white")
	}
}

func TestWriteSVGDegenerateExtent(t *testing.T) {
	coll := feature.Collection{
		Frame: "EPSG:3857",
		Parcels: []feature.Parcel{
			{Geometry: orb.Polygon{{{5, 5}, {5, 5}, {5, 5}}}},
		},
	}

	var buf bytes.Buffer
	err := writeSVG(coll, &buf, 400)
	if err == nil {
		t.Fatal("expected error for degenerate extent")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidInput {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidInput)
	}
}

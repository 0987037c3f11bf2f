// Package crs resolves coordinate reference frames and reprojects layers
// into a common working frame.
//
// Frames are identified by EPSG codes ("EPSG:32736"). The registry knows the
// frames the tool actually encounters in practice: geographic WGS 84, web
// mercator, and the WGS 84 UTM grid. Buffering and area math require a
// linear-unit (metric) frame, so the pipeline rejects angular target frames
// up front.
package crs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattfenn/erfgen/pkg/errors"
)

// Unit is the linear unit of a frame's axes.
type Unit int

const (
	// UnitMeter marks projected, metric frames.
	UnitMeter Unit = iota
	// UnitDegree marks angular (geographic) frames.
	UnitDegree
)

// Frame describes one coordinate reference frame.
type Frame struct {
	Code  string // EPSG identifier, e.g. "EPSG:32736"
	Proj4 string // proj4 definition string
	Unit  Unit
}

// IsLinear reports whether the frame uses linear (metric) units.
func (f Frame) IsLinear() bool {
	return f.Unit == UnitMeter
}

// Well-known static frames.
var staticFrames = map[string]Frame{
	"EPSG:4326": {
		Code:  "EPSG:4326",
		Proj4: "+proj=longlat +datum=WGS84 +no_defs",
		Unit:  UnitDegree,
	},
	"EPSG:3857": {
		Code:  "EPSG:3857",
		Proj4: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs",
		Unit:  UnitMeter,
	},
}

// Resolve returns the frame for an EPSG code.
//
// Recognized codes are the static registry plus the WGS 84 UTM grid:
// EPSG:32601–32660 (northern zones) and EPSG:32701–32760 (southern zones).
// Unknown codes fail with an INVALID_FRAME error.
func Resolve(code string) (Frame, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if f, ok := staticFrames[code]; ok {
		return f, nil
	}

	num, ok := strings.CutPrefix(code, "EPSG:")
	if !ok {
		return Frame{}, errors.New(errors.ErrCodeInvalidFrame, "unrecognized frame identifier %q", code)
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return Frame{}, errors.New(errors.ErrCodeInvalidFrame, "unrecognized frame identifier %q", code)
	}

	switch {
	case n >= 32601 && n <= 32660:
		return utmFrame(code, n-32600, false), nil
	case n >= 32701 && n <= 32760:
		return utmFrame(code, n-32700, true), nil
	}

	return Frame{}, errors.New(errors.ErrCodeInvalidFrame, "unsupported frame %q", code)
}

func utmFrame(code string, zone int, south bool) Frame {
	proj4 := fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone)
	if south {
		proj4 = fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", zone)
	}
	return Frame{Code: code, Proj4: proj4, Unit: UnitMeter}
}

// ResolveLinear resolves code and additionally requires a linear-unit frame.
// Angular frames fail with INVALID_FRAME: buffering by meters and comparing
// square-meter areas is meaningless in degrees.
func ResolveLinear(code string) (Frame, error) {
	f, err := Resolve(code)
	if err != nil {
		return Frame{}, err
	}
	if !f.IsLinear() {
		return Frame{}, errors.New(errors.ErrCodeInvalidFrame,
			"target frame %s is angular (degree-based); choose a projected metric frame such as a UTM zone", f.Code)
	}
	return f, nil
}

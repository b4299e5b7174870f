// Package crs models coordinate reference systems and the reprojections the
// served datasets require. Only the AOI side of a request is ever reprojected;
// the dataset collections stay in their native CRS.
package crs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// CRS is an authority:code reference system identifier, e.g. "EPSG:4326".
type CRS string

const (
	// WGS84 is the default geographic CRS assumed for AOI uploads that omit one.
	WGS84 CRS = "EPSG:4326"
	// WebMercator is used for the projected area admission check.
	WebMercator CRS = "EPSG:3857"
	// WorldCylindricalEqualArea is the native CRS of the GLHYMPS shapefile.
	WorldCylindricalEqualArea CRS = "ESRI:54034"
)

func (c CRS) String() string { return string(c) }

// Geographic reports whether coordinates are degrees rather than meters.
func (c CRS) Geographic() bool { return c == WGS84 }

// FromEPSG maps a bare EPSG code to a CRS; 0 means "not declared" and
// resolves to WGS84, matching the validator's fallback policy.
func FromEPSG(code int) CRS {
	switch code {
	case 0, 4326:
		return WGS84
	case 3857:
		return WebMercator
	case 54034:
		return WorldCylindricalEqualArea
	default:
		return CRS("EPSG:" + strconv.Itoa(code))
	}
}

// Parse accepts the identifier spellings found in the wild: "EPSG:4326",
// "epsg::4326", "urn:ogc:def:crs:EPSG::4326" and the GeoJSON default
// "urn:ogc:def:crs:OGC:1.3:CRS84".
func Parse(s string) (CRS, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return WGS84, nil
	}
	upper := strings.ToUpper(t)
	if strings.Contains(upper, "CRS84") {
		return WGS84, nil
	}
	if i := strings.LastIndexAny(upper, ":"); i >= 0 {
		if code, err := strconv.Atoi(upper[i+1:]); err == nil {
			if strings.Contains(upper, "ESRI") {
				return CRS("ESRI:" + strconv.Itoa(code)), nil
			}
			return FromEPSG(code), nil
		}
	}
	return "", fmt.Errorf("unrecognized CRS identifier %q", s)
}

const earthRadius = 6378137.0

func cylindricalEqualArea(p orb.Point) orb.Point {
	return orb.Point{
		earthRadius * p[0] * math.Pi / 180,
		earthRadius * math.Sin(p[1]*math.Pi/180),
	}
}

func cylindricalEqualAreaInverse(p orb.Point) orb.Point {
	return orb.Point{
		p[0] / earthRadius * 180 / math.Pi,
		math.Asin(p[1]/earthRadius) * 180 / math.Pi,
	}
}

// projection returns the point transform for a supported CRS pair.
func projection(from, to CRS) (orb.Projection, error) {
	switch {
	case from == WGS84 && to == WebMercator:
		return project.WGS84.ToMercator, nil
	case from == WebMercator && to == WGS84:
		return project.Mercator.ToWGS84, nil
	case from == WGS84 && to == WorldCylindricalEqualArea:
		return cylindricalEqualArea, nil
	case from == WorldCylindricalEqualArea && to == WGS84:
		return cylindricalEqualAreaInverse, nil
	}
	return nil, fmt.Errorf("unsupported reprojection %s -> %s", from, to)
}

// Transform reprojects a copy of g from one CRS to another. Pairs without a
// direct transform pivot through WGS84. The input geometry is not modified.
func Transform(g orb.Geometry, from, to CRS) (orb.Geometry, error) {
	if from == to {
		return g, nil
	}
	proj, err := projection(from, to)
	if err != nil {
		toGeo, errA := projection(from, WGS84)
		fromGeo, errB := projection(WGS84, to)
		if errA != nil || errB != nil {
			return nil, err
		}
		proj = func(p orb.Point) orb.Point { return fromGeo(toGeo(p)) }
	}
	return project.Geometry(orb.Clone(g), proj), nil
}

// Package aoi parses and validates the uploaded area-of-interest GeoJSON.
// Validation is layered so each failure maps to a distinct client error:
// malformed JSON, non-GeoJSON JSON, empty collection, non-polygonal or
// topologically invalid geometry, and (optionally) an oversized area.
package aoi

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/geoglim/clipserver/internal/clip"
	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
)

// AOI is a validated clip region.
type AOI struct {
	Collection *geojson.FeatureCollection
	CRS        crs.CRS
}

// Validator checks uploaded AOI payloads.
type Validator struct {
	// MaxAreaKm2 caps the total AOI area when EnforceArea is set.
	MaxAreaKm2  float64
	EnforceArea bool
}

// Parse validates raw upload bytes into an AOI.
func (v *Validator) Parse(payload []byte) (*AOI, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, model.Wrap(model.KindMalformedInput, err, "request body is not valid JSON")
	}

	rawType, ok := probe["type"]
	if !ok {
		return nil, model.E(model.KindInvalidGeoJSON, "JSON object has no \"type\" member")
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return nil, model.E(model.KindInvalidGeoJSON, "\"type\" member is not a string")
	}

	fc, err := decodeByType(typ, payload)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, model.E(model.KindEmptyAOI, "AOI contains no features")
	}

	c, err := parseCRSMember(probe["crs"])
	if err != nil {
		return nil, err
	}

	for i, f := range fc.Features {
		if err := checkGeometry(i, f.Geometry); err != nil {
			return nil, err
		}
	}

	a := &AOI{Collection: fc, CRS: c}
	if v.EnforceArea {
		if err := v.checkArea(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func decodeByType(typ string, payload []byte) (*geojson.FeatureCollection, error) {
	switch typ {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(payload)
		if err != nil {
			return nil, model.Wrap(model.KindInvalidGeoJSON, err, "invalid FeatureCollection")
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(payload)
		if err != nil {
			return nil, model.Wrap(model.KindInvalidGeoJSON, err, "invalid Feature")
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	case "Polygon", "MultiPolygon", "Point", "MultiPoint", "LineString", "MultiLineString", "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(payload)
		if err != nil {
			return nil, model.Wrap(model.KindInvalidGeoJSON, err, "invalid %s geometry", typ)
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(g.Geometry()))
		return fc, nil
	default:
		return nil, model.E(model.KindInvalidGeoJSON, "unrecognized GeoJSON type %q", typ)
	}
}

// parseCRSMember honours the legacy GeoJSON "crs" member some tools still
// emit. Absent or null means WGS84, per RFC 7946.
func parseCRSMember(raw json.RawMessage) (crs.CRS, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return crs.WGS84, nil
	}
	var member struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &member); err != nil {
		return "", model.Wrap(model.KindInvalidGeoJSON, err, "malformed crs member")
	}
	c, err := crs.Parse(member.Properties.Name)
	if err != nil {
		return "", model.Wrap(model.KindInvalidGeoJSON, err, "unsupported AOI CRS")
	}
	return c, nil
}

func checkGeometry(i int, g orb.Geometry) error {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	case nil:
		return model.E(model.KindInvalidGeometry, "feature %d has no geometry", i)
	default:
		return model.E(model.KindInvalidGeometry,
			"feature %d has geometry type %s; only Polygon and MultiPolygon are accepted", i, g.GeoJSONType())
	}
	if err := clip.ValidateGeometry(g); err != nil {
		return model.Wrap(model.KindInvalidGeometry, err, "feature %d geometry is invalid", i)
	}
	return nil
}

// checkArea rejects AOIs whose projected area exceeds the configured cap.
func (v *Validator) checkArea(a *AOI) error {
	total := 0.0
	for _, f := range a.Collection.Features {
		g, err := crs.Transform(f.Geometry, a.CRS, crs.WebMercator)
		if err != nil {
			return model.Wrap(model.KindInvalidGeoJSON, err, "cannot compute AOI area")
		}
		total += planar.Area(g) / 1e6
	}
	if total > v.MaxAreaKm2 {
		return model.E(model.KindPayloadTooLarge,
			"AOI area %.0f km2 exceeds the %.0f km2 limit", total, v.MaxAreaKm2)
	}
	return nil
}

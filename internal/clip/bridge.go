package clip

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// The overlay and validity predicates are delegated to the simplefeatures
// engine; orb stays the in-memory feature model. WKB is the bridge between
// the two.

func toEngine(g orb.Geometry) (geom.Geometry, error) {
	raw, err := wkb.Marshal(g)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("encode wkb: %w", err)
	}
	sf, err := geom.UnmarshalWKB(raw, geom.NoValidate{})
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("decode wkb: %w", err)
	}
	return sf, nil
}

func fromEngine(g geom.Geometry) (orb.Geometry, error) {
	og, err := wkb.Unmarshal(g.AsBinary())
	if err != nil {
		return nil, fmt.Errorf("decode engine wkb: %w", err)
	}
	return og, nil
}

// ValidateGeometry runs the engine's topological validity predicate
// (closed rings, no self-intersection).
func ValidateGeometry(g orb.Geometry) error {
	sf, err := toEngine(g)
	if err != nil {
		return err
	}
	return sf.Validate()
}

// arealOnly reduces an intersection result to its polygonal parts. Overlay
// outputs degenerate to lines or points where inputs merely touch; those do
// not count as overlap.
func arealOnly(g orb.Geometry) orb.Geometry {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return v
	case orb.MultiPolygon:
		if len(v) == 0 {
			return nil
		}
		return v
	case orb.Collection:
		var mp orb.MultiPolygon
		for _, member := range v {
			switch m := arealOnly(member).(type) {
			case orb.Polygon:
				mp = append(mp, m)
			case orb.MultiPolygon:
				mp = append(mp, m...)
			}
		}
		switch len(mp) {
		case 0:
			return nil
		case 1:
			return mp[0]
		default:
			return mp
		}
	default:
		return nil
	}
}

package clip

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/dataset"
	"github.com/geoglim/clipserver/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func square(minX, minY, maxX, maxY float64, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
	f.Properties = props
	return f
}

func nyDataset() *dataset.Dataset {
	fc := geojson.NewFeatureCollection()
	// Two units around the NY bbox, one on another continent.
	fc.Append(square(-74.3, 40.5, -73.9, 40.8, map[string]interface{}{"litho": "mt", "unit": 1}))
	fc.Append(square(-74.0, 40.7, -73.6, 41.0, map[string]interface{}{"litho": "su", "unit": 2}))
	fc.Append(square(10.0, 50.0, 11.0, 51.0, map[string]interface{}{"litho": "vb", "unit": 3}))
	return &dataset.Dataset{Name: model.GLiM, CRS: crs.WGS84, Collection: fc}
}

func nyAOI() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(square(-74.1, 40.6, -73.8, 40.9, map[string]interface{}{"name": "aoi"}))
	return fc
}

func TestClipKeepsIntersectingFeatures(t *testing.T) {
	e := NewEngine(2, discard())
	res, err := e.Clip(context.Background(), nyDataset(), nyAOI(), crs.WGS84)
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	if res.FeatureCount() != 2 {
		t.Fatalf("features = %d, want 2", res.FeatureCount())
	}
	if res.CRS != crs.WGS84 {
		t.Fatalf("result crs = %s, want dataset crs", res.CRS)
	}
	for _, f := range res.Collection.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			t.Fatalf("clipped geometry type = %T, want polygonal", f.Geometry)
		}
		if f.Properties["unit"] == 3 {
			t.Fatal("non-intersecting feature leaked into result")
		}
	}
}

func TestClipMergesProperties(t *testing.T) {
	ds := &dataset.Dataset{Name: model.GLiM, CRS: crs.WGS84, Collection: geojson.NewFeatureCollection()}
	ds.Collection.Append(square(0, 0, 2, 2, map[string]interface{}{"litho": "mt", "name": "unit-a"}))

	aoi := geojson.NewFeatureCollection()
	aoi.Append(square(1, 1, 3, 3, map[string]interface{}{"name": "my-aoi", "owner": "me"}))

	e := NewEngine(1, discard())
	res, err := e.Clip(context.Background(), ds, aoi, crs.WGS84)
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	if res.FeatureCount() != 1 {
		t.Fatalf("features = %d, want 1", res.FeatureCount())
	}
	props := res.Collection.Features[0].Properties
	if props["litho"] != "mt" || props["name"] != "unit-a" {
		t.Fatalf("dataset attributes lost: %v", props)
	}
	if props["name_2"] != "my-aoi" || props["owner"] != "me" {
		t.Fatalf("AOI attributes not merged: %v", props)
	}
}

func TestClipExcludesEdgeTouches(t *testing.T) {
	ds := &dataset.Dataset{Name: model.GLiM, CRS: crs.WGS84, Collection: geojson.NewFeatureCollection()}
	ds.Collection.Append(square(0, 0, 1, 1, map[string]interface{}{"unit": 1}))

	aoi := geojson.NewFeatureCollection()
	// Shares the x=1 edge, no interior overlap.
	aoi.Append(square(1, 0, 2, 1, nil))

	e := NewEngine(1, discard())
	res, err := e.Clip(context.Background(), ds, aoi, crs.WGS84)
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	if res.FeatureCount() != 0 {
		t.Fatalf("features = %d, want 0 for edge touch", res.FeatureCount())
	}
}

func TestClipReprojectsAOI(t *testing.T) {
	// Same AOI as nyAOI but expressed in Web Mercator.
	fc := geojson.NewFeatureCollection()
	g, err := crs.Transform(nyAOI().Features[0].Geometry, crs.WGS84, crs.WebMercator)
	if err != nil {
		t.Fatalf("prepare aoi: %v", err)
	}
	fc.Append(geojson.NewFeature(g))

	e := NewEngine(1, discard())
	res, err := e.Clip(context.Background(), nyDataset(), fc, crs.WebMercator)
	if err != nil {
		t.Fatalf("clip: %v", err)
	}
	if res.FeatureCount() != 2 {
		t.Fatalf("features = %d, want 2 after reprojection", res.FeatureCount())
	}
}

func TestArealOnlyFiltersDegenerates(t *testing.T) {
	if got := arealOnly(orb.LineString{{0, 0}, {1, 1}}); got != nil {
		t.Fatalf("line should be dropped, got %T", got)
	}
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	coll := orb.Collection{orb.Point{0, 0}, poly}
	got := arealOnly(coll)
	if _, ok := got.(orb.Polygon); !ok {
		t.Fatalf("collection should reduce to its polygon, got %T", got)
	}
}

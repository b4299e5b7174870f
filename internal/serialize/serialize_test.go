package serialize

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
)

func squareFeature(x, y float64, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}})
	f.Properties = props
	return f
}

func testCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(squareFeature(0, 0, map[string]interface{}{"litho": "mt", "perm": -11.5}))
	fc.Append(squareFeature(2, 2, map[string]interface{}{"litho": "su", "perm": -12.25}))
	return fc
}

func TestWriteGeoJSONRoundTrip(t *testing.T) {
	s := &Serializer{TempDir: t.TempDir()}
	out, err := s.Write(testCollection(), crs.WGS84, model.GLiM, model.FormatGeoJSON)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	defer out.Close()

	if out.Filename != "glim_clipped.geojson" {
		t.Fatalf("filename = %q", out.Filename)
	}
	if out.MediaType != "application/geo+json" {
		t.Fatalf("media type = %q", out.MediaType)
	}

	fc, err := ReadGeoJSON(out.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if fc.Features[0].Properties["litho"] != "mt" {
		t.Fatalf("properties lost: %v", fc.Features[0].Properties)
	}
}

func TestOutputCloseRemovesDir(t *testing.T) {
	s := &Serializer{TempDir: t.TempDir()}
	out, err := s.Write(testCollection(), crs.WGS84, model.GLiM, model.FormatGeoJSON)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(out.Path); !os.IsNotExist(err) {
		t.Fatalf("output file still present after Close")
	}
}

func TestShapefileBundle(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "glim_clipped.zip")

	if err := writeShapefileBundle(dir, "glim_clipped", zipPath, testCollection(), crs.WGS84); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{
		"glim_clipped.cpg", "glim_clipped.dbf", "glim_clipped.prj",
		"glim_clipped.shp", "glim_clipped.shx",
	}
	if len(names) != len(want) {
		t.Fatalf("zip entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("zip entries = %v, want %v", names, want)
		}
	}

	fc, c, err := ReadShapefile(filepath.Join(dir, "glim_clipped.shp"), 0)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if c != crs.WGS84 {
		t.Fatalf("crs = %s, want %s", c, crs.WGS84)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	// DBF names are uppercased on write.
	if fc.Features[0].Properties["LITHO"] != "mt" {
		t.Fatalf("attribute lost: %v", fc.Features[0].Properties)
	}

	limited, _, err := ReadShapefile(filepath.Join(dir, "glim_clipped.shp"), 1)
	if err != nil {
		t.Fatalf("limited read: %v", err)
	}
	if len(limited.Features) != 1 {
		t.Fatalf("limited features = %d, want 1", len(limited.Features))
	}
}

func TestShapefileRingOrientation(t *testing.T) {
	// Counter-clockwise exterior must be flipped to the shapefile convention.
	ccw := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	poly := toShpPolygon(orb.Polygon{ccw})
	if poly == nil {
		t.Fatal("no polygon produced")
	}
	ring := make(orb.Ring, 0, len(poly.Points))
	for _, p := range poly.Points {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	if !clockwise(ring) {
		t.Fatal("exterior ring not clockwise after conversion")
	}
}

func TestGeoPackageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glhymps_clipped.gpkg")

	if err := writeGeoPackage(path, "glhymps", testCollection(), crs.WorldCylindricalEqualArea); err != nil {
		t.Fatalf("write: %v", err)
	}

	fc, c, err := ReadGeoPackage(path, 0)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if c != crs.WorldCylindricalEqualArea {
		t.Fatalf("crs = %s, want %s", c, crs.WorldCylindricalEqualArea)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if fc.Features[0].Properties["litho"] != "mt" {
		t.Fatalf("attributes lost: %v", fc.Features[0].Properties)
	}
	if _, ok := fc.Features[0].Geometry.(orb.Polygon); !ok {
		t.Fatalf("geometry type = %T, want orb.Polygon", fc.Features[0].Geometry)
	}

	limited, _, err := ReadGeoPackage(path, 1)
	if err != nil {
		t.Fatalf("limited read: %v", err)
	}
	if len(limited.Features) != 1 {
		t.Fatalf("limited features = %d, want 1", len(limited.Features))
	}
}

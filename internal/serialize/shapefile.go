package serialize

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
)

// writeShapefileBundle writes {base}.shp/.shx/.dbf plus .prj and .cpg
// companions into dir, then zips the bundle at zipPath.
func writeShapefileBundle(dir, base, zipPath string, fc *geojson.FeatureCollection, c crs.CRS) error {
	shpPath := filepath.Join(dir, base+".shp")

	w, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}

	props := make([]featureProps, 0, len(fc.Features))
	for _, f := range fc.Features {
		props = append(props, f.Properties)
	}
	cols := inferColumns(props)
	w.SetFields(dbfFields(cols))

	row := 0
	for _, f := range fc.Features {
		poly := toShpPolygon(f.Geometry)
		if poly == nil {
			continue
		}
		w.Write(poly)
		for i, col := range cols {
			if err := w.WriteAttribute(row, i, dbfValue(col.kind, f.Properties[col.name])); err != nil {
				w.Close()
				return fmt.Errorf("write attribute %s: %w", col.name, err)
			}
		}
		row++
	}
	w.Close()

	if err := os.WriteFile(filepath.Join(dir, base+".prj"), []byte(c.ESRIWKT()), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, base+".cpg"), []byte("UTF-8"), 0o644); err != nil {
		return err
	}

	return zipDir(dir, zipPath)
}

// dbfFields maps the inferred schema onto DBF field descriptors. DBF names
// are capped at 10 bytes and must be unique after truncation.
func dbfFields(cols []column) []shp.Field {
	fields := make([]shp.Field, 0, len(cols))
	used := make(map[string]bool)

	for _, col := range cols {
		name := strings.ToUpper(col.name)
		if len(name) > 10 {
			name = name[:10]
		}
		for i := 1; used[name]; i++ {
			suffix := strconv.Itoa(i)
			if len(name)+len(suffix) > 10 {
				name = name[:10-len(suffix)]
			}
			name += suffix
		}
		used[name] = true

		switch col.kind {
		case colInt:
			fields = append(fields, shp.NumberField(name, 18))
		case colFloat:
			fields = append(fields, shp.FloatField(name, 24, 8))
		case colBool:
			fields = append(fields, shp.StringField(name, 5))
		default:
			fields = append(fields, shp.StringField(name, 254))
		}
	}
	return fields
}

func dbfValue(kind colKind, v interface{}) interface{} {
	switch kind {
	case colInt:
		return int(asInt(v))
	case colFloat:
		return asFloat(v)
	default:
		return formatValue(v)
	}
}

// toShpPolygon flattens a polygonal orb geometry into shapefile part/point
// arrays. Shapefile convention: exterior rings wind clockwise, holes
// counter-clockwise.
func toShpPolygon(g orb.Geometry) *shp.Polygon {
	var rings [][]shp.Point

	appendRing := func(ring orb.Ring, exterior bool) {
		if len(ring) == 0 {
			return
		}
		if clockwise(ring) != exterior {
			ring = reversed(ring)
		}
		pts := make([]shp.Point, 0, len(ring))
		for _, pt := range ring {
			pts = append(pts, shp.Point{X: pt[0], Y: pt[1]})
		}
		rings = append(rings, pts)
	}

	appendPolygon := func(p orb.Polygon) {
		for i, ring := range p {
			appendRing(ring, i == 0)
		}
	}

	switch v := g.(type) {
	case orb.Polygon:
		appendPolygon(v)
	case orb.MultiPolygon:
		for _, p := range v {
			appendPolygon(p)
		}
	default:
		return nil
	}
	if len(rings) == 0 {
		return nil
	}
	return (*shp.Polygon)(shp.NewPolyLine(rings))
}

func clockwise(ring orb.Ring) bool {
	sum := 0.0
	for i := 0; i < len(ring)-1; i++ {
		sum += (ring[i+1][0] - ring[i][0]) * (ring[i+1][1] + ring[i][1])
	}
	return sum > 0
}

func reversed(ring orb.Ring) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, pt := range ring {
		out[len(ring)-1-i] = pt
	}
	return out
}

// ReadShapefile loads a polygon shapefile into a feature collection. A
// positive limit stops reading after that many shapes, so callers can sample
// a large file without paying for the whole thing. The CRS comes from the
// .prj companion; a missing .prj means WGS84.
func ReadShapefile(path string, limit int) (*geojson.FeatureCollection, crs.CRS, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	fields := reader.Fields()
	fc := geojson.NewFeatureCollection()

	for reader.Next() {
		if limit > 0 && len(fc.Features) >= limit {
			break
		}
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		geom := fromShpPolygon(poly.Points, poly.Parts)
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		for k, field := range fields {
			f.Properties[field.String()] = attributeValue(field, reader.ReadAttribute(n, k))
		}
		fc.Append(f)
	}

	c := crs.WGS84
	prjPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if wkt, err := os.ReadFile(prjPath); err == nil {
		c = crs.FromESRIWKT(string(wkt))
	}
	return fc, c, nil
}

func attributeValue(field shp.Field, raw string) interface{} {
	raw = strings.TrimSpace(raw)
	switch field.Fieldtype {
	case 'N':
		if raw == "" {
			return nil
		}
		if !strings.Contains(raw, ".") {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case 'F':
		if raw == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}

// fromShpPolygon reassembles rings into polygons: a clockwise ring opens a
// new polygon, counter-clockwise rings are holes of the preceding one.
func fromShpPolygon(points []shp.Point, parts []int32) orb.Geometry {
	var mp orb.MultiPolygon

	for i, start := range parts {
		end := int32(len(points))
		if i < len(parts)-1 {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if clockwise(ring) || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
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
}

func zipDir(dir, zipPath string) error {
	zf, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Join(dir, entry.Name()) == zipPath {
			continue
		}
		src, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		dst, err := zw.Create(entry.Name())
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}
	return zw.Close()
}

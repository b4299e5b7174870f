package dataset

import (
	"context"

	"github.com/GrainArc/Gogeo"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/registry"
	"github.com/geoglim/clipserver/internal/serialize"
)

const sampleSize = 5

// Info inspects a dataset for the metadata endpoint. A resident collection is
// sampled in memory; otherwise the container itself is read with a small row
// limit, so an info request never triggers a full dataset load.
func Info(ctx context.Context, c *Cache, reg *registry.Registry, name model.DatasetName) (model.DatasetInfo, error) {
	spec, ok := reg.Lookup(name)
	if !ok {
		return model.DatasetInfo{}, model.E(model.KindDatasetUnavailable, "dataset %s is not registered", name)
	}
	if !reg.Available(name) {
		return model.DatasetInfo{}, model.E(model.KindDatasetUnavailable, "dataset file not found: %s", spec.Path)
	}
	if err := ctx.Err(); err != nil {
		return model.DatasetInfo{}, err
	}

	info := model.DatasetInfo{
		Dataset:   string(name),
		Path:      spec.Path,
		Available: true,
	}

	if ds, ok := c.Peek(name); ok {
		describe(&info, ds.Collection, ds.CRS)
		return info, nil
	}

	switch spec.Format {
	case registry.Shapefile:
		fc, fileCRS, err := serialize.ReadShapefile(spec.Path, sampleSize)
		if err != nil {
			return model.DatasetInfo{}, model.Wrap(model.KindDatasetUnavailable, err, "sample shapefile %s", spec.Path)
		}
		describe(&info, fc, fileCRS)
	case registry.GeoPackage:
		fc, fileCRS, err := serialize.ReadGeoPackage(spec.Path, sampleSize)
		if err != nil {
			return model.DatasetInfo{}, model.Wrap(model.KindDatasetUnavailable, err, "sample geopackage %s", spec.Path)
		}
		describe(&info, fc, fileCRS)
	case registry.FileGDB:
		return gdbInfo(spec, info)
	default:
		return model.DatasetInfo{}, model.E(model.KindDatasetUnavailable,
			"dataset %s has unsupported container format %s", spec.Name, spec.Format)
	}
	return info, nil
}

func describe(info *model.DatasetInfo, fc *geojson.FeatureCollection, c crs.CRS) {
	sample := len(fc.Features)
	if sample > sampleSize {
		sample = sampleSize
	}
	geomType := ""
	for _, f := range fc.Features[:sample] {
		if f.Geometry != nil {
			geomType = f.Geometry.GeoJSONType()
			break
		}
	}
	info.CRS = c.String()
	info.Columns = append(Columns(fc), "geometry")
	info.GeometryType = geomType
	info.SampleFeatureCount = sample
}

// gdbInfo answers from the FileGDB layer catalog, which carries CRS and field
// schema without touching features. The driver has no bounded row read, so
// geometry type and sample count stay empty until the collection is resident.
func gdbInfo(spec registry.Spec, info model.DatasetInfo) (model.DatasetInfo, error) {
	meta, err := Gogeo.ReadGDBLayerMetadata(spec.Path)
	if err != nil {
		return model.DatasetInfo{}, model.Wrap(model.KindDatasetUnavailable, err, "read filegdb metadata %s", spec.Path)
	}
	lm := meta.GetLayerByName(spec.Layer)
	if lm == nil {
		return model.DatasetInfo{}, model.E(model.KindDatasetUnavailable, "layer %q not present in %s", spec.Layer, spec.Path)
	}

	info.CRS = crs.FromEPSG(lm.EPSG).String()
	cols := make([]string, 0, len(lm.Fields)+1)
	for _, f := range lm.Fields {
		cols = append(cols, f.Name)
	}
	info.Columns = append(cols, "geometry")
	return info, nil
}

package dataset

import (
	"context"
	"os"

	"github.com/GrainArc/Gogeo"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/registry"
	"github.com/geoglim/clipserver/internal/serialize"
)

// Load is the default LoadFunc: it dispatches on the container format of the
// registry spec.
func Load(ctx context.Context, spec registry.Spec) (*Dataset, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, model.Wrap(model.KindDatasetUnavailable, err, "dataset %s not found at %s", spec.Name, spec.Path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch spec.Format {
	case registry.FileGDB:
		return loadFileGDB(spec)
	case registry.Shapefile:
		return loadShapefile(spec)
	case registry.GeoPackage:
		return loadGeoPackage(spec)
	default:
		return nil, model.E(model.KindDatasetUnavailable, "dataset %s has unsupported container format %s", spec.Name, spec.Format)
	}
}

func loadFileGDB(spec registry.Spec) (*Dataset, error) {
	layers, err := Gogeo.GDBToGeoJSON(spec.Path)
	if err != nil {
		return nil, model.Wrap(model.KindDatasetUnavailable, err, "read filegdb %s", spec.Path)
	}

	for _, layer := range layers {
		if spec.Layer != "" && layer.LayerName != spec.Layer {
			continue
		}
		c := crs.WGS84
		if meta, err := Gogeo.ReadGDBLayerMetadata(spec.Path); err == nil {
			if lm := meta.GetLayerByName(layer.LayerName); lm != nil && lm.EPSG != 0 {
				c = crs.FromEPSG(lm.EPSG)
			}
		}
		return &Dataset{Name: spec.Name, CRS: c, Collection: layer.Layer}, nil
	}
	return nil, model.E(model.KindDatasetUnavailable, "layer %q not present in %s", spec.Layer, spec.Path)
}

func loadShapefile(spec registry.Spec) (*Dataset, error) {
	fc, c, err := serialize.ReadShapefile(spec.Path, 0)
	if err != nil {
		return nil, model.Wrap(model.KindDatasetUnavailable, err, "read shapefile %s", spec.Path)
	}
	return &Dataset{Name: spec.Name, CRS: c, Collection: fc}, nil
}

func loadGeoPackage(spec registry.Spec) (*Dataset, error) {
	fc, c, err := serialize.ReadGeoPackage(spec.Path, 0)
	if err != nil {
		return nil, model.Wrap(model.KindDatasetUnavailable, err, "read geopackage %s", spec.Path)
	}
	return &Dataset{Name: spec.Name, CRS: c, Collection: fc}, nil
}

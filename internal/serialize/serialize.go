// Package serialize encodes clipped feature collections into the supported
// download formats and reads them back (round-trips and dataset loading).
package serialize

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
)

// Output is a serialized artifact in a transient directory. Close releases
// the directory; callers must Close after the response body is fully sent.
type Output struct {
	dir string

	// Path of the single file to stream to the client.
	Path string
	// Filename suggested for download, {dataset}_clipped.{ext}.
	Filename string
	MediaType string
}

func (o *Output) Close() error {
	if o == nil || o.dir == "" {
		return nil
	}
	return os.RemoveAll(o.dir)
}

// Serializer writes clip results to transient storage.
type Serializer struct {
	// TempDir is the parent for per-request directories; empty means the
	// system default.
	TempDir string
}

// Write encodes fc in the requested format. The feature collection is in
// the dataset's CRS, which the shapefile and geopackage codecs record.
func (s *Serializer) Write(fc *geojson.FeatureCollection, c crs.CRS, name model.DatasetName, format model.OutputFormat) (*Output, error) {
	dir, err := os.MkdirTemp(s.TempDir, "clip-")
	if err != nil {
		return nil, model.Wrap(model.KindSerializationError, err, "create transient dir")
	}

	base := fmt.Sprintf("%s_clipped", name)
	out := &Output{
		dir:       dir,
		Filename:  base + "." + format.Ext(),
		MediaType: format.MediaType(),
	}
	out.Path = filepath.Join(dir, out.Filename)

	switch format {
	case model.FormatGeoJSON:
		err = writeGeoJSON(out.Path, fc)
	case model.FormatShapefile:
		err = writeShapefileBundle(dir, base, out.Path, fc, c)
	case model.FormatGeoPackage:
		err = writeGeoPackage(out.Path, string(name), fc, c)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		_ = out.Close()
		return nil, model.Wrap(model.KindSerializationError, err, "serialize %s as %s", name, format)
	}
	return out, nil
}

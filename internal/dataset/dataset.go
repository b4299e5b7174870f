// Package dataset owns the in-memory dataset collections for the process
// lifetime: loading them from their containers and caching them behind a
// single-flight guard.
package dataset

import (
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/model"
)

// Dataset is a fully loaded feature collection. Immutable once loaded;
// concurrent readers share it without synchronization.
type Dataset struct {
	Name       model.DatasetName
	CRS        crs.CRS
	Collection *geojson.FeatureCollection
}

// FeatureCount returns the number of features in the collection.
func (d *Dataset) FeatureCount() int {
	if d == nil || d.Collection == nil {
		return 0
	}
	return len(d.Collection.Features)
}

// Columns lists attribute keys in first-occurrence order across features.
func Columns(fc *geojson.FeatureCollection) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range fc.Features {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

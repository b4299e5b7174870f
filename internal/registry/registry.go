// Package registry resolves logical dataset names to their on-disk
// locations and per-format load parameters.
package registry

import (
	"os"

	"github.com/geoglim/clipserver/internal/config"
	"github.com/geoglim/clipserver/internal/model"
)

// Format tags the container a dataset ships in. Each variant carries its own
// load parameters: FileGDB containers are multi-layer and need a named-layer
// selector, the others are single-layer.
type Format int

const (
	FileGDB Format = iota
	Shapefile
	GeoPackage
)

func (f Format) String() string {
	switch f {
	case FileGDB:
		return "filegdb"
	case Shapefile:
		return "shapefile"
	case GeoPackage:
		return "geopackage"
	default:
		return "unknown"
	}
}

// Spec is one registry entry.
type Spec struct {
	Name   model.DatasetName
	Path   string
	Format Format
	// Layer selects the layer inside multi-layer containers; empty for
	// single-layer formats.
	Layer string
}

// Registry is a fixed lookup table over the enumerated dataset set.
type Registry struct {
	specs map[model.DatasetName]Spec
}

// New builds the registry from configured paths.
func New(cfg config.Config) *Registry {
	r := &Registry{specs: make(map[model.DatasetName]Spec)}
	r.add(Spec{Name: model.GLiM, Path: cfg.GLiMPath, Format: FileGDB, Layer: cfg.GLiMLayer})
	r.add(Spec{Name: model.GLHYMPS, Path: cfg.GLHYMPSPath, Format: Shapefile})
	return r
}

// NewWithSpecs builds a registry from explicit entries; used by tests to
// inject synthetic datasets.
func NewWithSpecs(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[model.DatasetName]Spec)}
	for _, s := range specs {
		r.add(s)
	}
	return r
}

func (r *Registry) add(s Spec) { r.specs[s.Name] = s }

// Lookup returns the spec for a dataset name.
func (r *Registry) Lookup(name model.DatasetName) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Available re-checks file presence on every call: availability reflects
// external storage state and is deliberately not cached, unlike the loaded
// feature collections.
func (r *Registry) Available(name model.DatasetName) bool {
	s, ok := r.specs[name]
	if !ok {
		return false
	}
	_, err := os.Stat(s.Path)
	return err == nil
}

// Names lists registered datasets in the model's stable order, falling back
// to map order for synthetic entries.
func (r *Registry) Names() []model.DatasetName {
	out := make([]model.DatasetName, 0, len(r.specs))
	for _, n := range model.Names() {
		if _, ok := r.specs[n]; ok {
			out = append(out, n)
		}
	}
	for n := range r.specs {
		if _, known := model.ParseDataset(string(n)); !known {
			out = append(out, n)
		}
	}
	return out
}

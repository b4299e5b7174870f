// Package clip computes the overlay between a dataset and a validated AOI.
package clip

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/peterstace/simplefeatures/geom"
	"golang.org/x/sync/semaphore"

	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/dataset"
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/observability"
)

// Result is a clipped feature collection in the dataset's native CRS.
type Result struct {
	Collection *geojson.FeatureCollection
	CRS        crs.CRS
}

// FeatureCount returns the number of intersecting features.
func (r *Result) FeatureCount() int {
	if r == nil || r.Collection == nil {
		return 0
	}
	return len(r.Collection.Features)
}

// Engine runs overlays with bounded concurrency. Overlay work is CPU-bound
// and proportional to dataset size, so concurrent clips are capped instead
// of letting every request contend.
type Engine struct {
	sem *semaphore.Weighted
	log *slog.Logger
}

func NewEngine(workers int, log *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{sem: semaphore.NewWeighted(int64(workers)), log: log}
}

type aoiPart struct {
	bound orb.Bound
	sf    geom.Geometry
	props map[string]interface{}
}

// Clip intersects every dataset feature with every AOI feature. The AOI is
// reprojected into the dataset's CRS first; the result stays in that CRS.
// Output features carry the dataset feature's attributes plus the AOI
// feature's, the latter suffixed "_2" on name collision.
func (e *Engine) Clip(ctx context.Context, ds *dataset.Dataset, aoiFC *geojson.FeatureCollection, aoiCRS crs.CRS) (*Result, error) {
	parts := make([]aoiPart, 0, len(aoiFC.Features))
	for _, f := range aoiFC.Features {
		g, err := crs.Transform(f.Geometry, aoiCRS, ds.CRS)
		if err != nil {
			return nil, model.Wrap(model.KindClippingFailed, err, "reproject AOI from %s to %s", aoiCRS, ds.CRS)
		}
		sf, err := toEngine(g)
		if err != nil {
			return nil, model.Wrap(model.KindClippingFailed, err, "prepare AOI geometry")
		}
		parts = append(parts, aoiPart{bound: g.Bound(), sf: sf, props: f.Properties})
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	out := geojson.NewFeatureCollection()

	for _, df := range ds.Collection.Features {
		if df.Geometry == nil {
			continue
		}
		dBound := df.Geometry.Bound()

		var dsf geom.Geometry
		decoded := false
		for _, part := range parts {
			if !dBound.Intersects(part.bound) {
				continue
			}
			if !decoded {
				var err error
				if dsf, err = toEngine(df.Geometry); err != nil {
					return nil, model.Wrap(model.KindClippingFailed, err, "prepare dataset geometry")
				}
				decoded = true
			}

			inter, err := geom.Intersection(dsf, part.sf)
			if err != nil {
				return nil, model.Wrap(model.KindClippingFailed, err, "overlay failed")
			}
			if inter.IsEmpty() {
				continue
			}
			og, err := fromEngine(inter)
			if err != nil {
				return nil, model.Wrap(model.KindClippingFailed, err, "decode overlay result")
			}
			areal := arealOnly(og)
			if areal == nil {
				continue
			}

			nf := geojson.NewFeature(areal)
			nf.Properties = mergeProperties(df.Properties, part.props)
			out.Append(nf)
		}
	}

	elapsed := time.Since(start)
	observability.ObserveClip(string(ds.Name), elapsed.Seconds())
	e.log.Info("clip computed",
		"dataset", string(ds.Name),
		"aoi_features", len(parts),
		"result_features", len(out.Features),
		"elapsed", elapsed.String())

	return &Result{Collection: out, CRS: ds.CRS}, nil
}

// mergeProperties combines attributes from both overlay sides. Dataset
// attributes win their name; colliding AOI attributes get a "_2" suffix.
func mergeProperties(ds, aoi map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(ds)+len(aoi))
	for k, v := range ds {
		merged[k] = v
	}
	for k, v := range aoi {
		if _, taken := merged[k]; taken {
			k += "_2"
		}
		merged[k] = v
	}
	return merged
}

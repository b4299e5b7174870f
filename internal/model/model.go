// Package model defines core domain types shared across the service.
package model

import "strings"

// DatasetName identifies one of the served datasets. The set is fixed:
// requests naming anything else are rejected before touching the registry.
type DatasetName string

const (
	// GLiM is the global lithological map, shipped as a FileGDB container.
	GLiM DatasetName = "glim"
	// GLHYMPS is the global hydrogeology/permeability map, a single shapefile.
	GLHYMPS DatasetName = "glhymps"
)

// Names lists the served datasets in a stable order.
func Names() []DatasetName {
	return []DatasetName{GLiM, GLHYMPS}
}

// ParseDataset normalizes a path segment into a known dataset name.
func ParseDataset(s string) (DatasetName, bool) {
	switch DatasetName(strings.ToLower(strings.TrimSpace(s))) {
	case GLiM:
		return GLiM, true
	case GLHYMPS:
		return GLHYMPS, true
	}
	return "", false
}

// OutputFormat selects the serialization of a clip result.
type OutputFormat string

const (
	FormatGeoJSON    OutputFormat = "geojson"
	FormatShapefile  OutputFormat = "shapefile"
	FormatGeoPackage OutputFormat = "gpkg"
)

// ParseFormat resolves the output_format query value; empty means geojson.
func ParseFormat(s string) (OutputFormat, bool) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FormatGeoJSON, true
	case FormatGeoJSON:
		return FormatGeoJSON, true
	case FormatShapefile:
		return FormatShapefile, true
	case FormatGeoPackage:
		return FormatGeoPackage, true
	}
	return "", false
}

// Ext is the filename extension of the downloaded artifact. The shapefile
// bundle streams as a zip because it is a multi-file container.
func (f OutputFormat) Ext() string {
	switch f {
	case FormatShapefile:
		return "zip"
	case FormatGeoPackage:
		return "gpkg"
	default:
		return "geojson"
	}
}

// MediaType is the Content-Type of the downloaded artifact.
func (f OutputFormat) MediaType() string {
	switch f {
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatShapefile:
		return "application/zip"
	case FormatGeoPackage:
		return "application/geopackage+sqlite3"
	default:
		return "application/octet-stream"
	}
}

// Health is the GET / payload.
type Health struct {
	Status            string          `json:"status"`
	DatasetsAvailable map[string]bool `json:"datasets_available"`
	APIVersion        string          `json:"api_version"`
}

// DatasetInfo is the GET /datasets/{dataset}/info payload. Schema fields are
// derived from a bounded sample of the collection.
type DatasetInfo struct {
	Dataset            string   `json:"dataset"`
	Path               string   `json:"path"`
	CRS                string   `json:"crs"`
	Columns            []string `json:"columns"`
	GeometryType       string   `json:"geometry_type"`
	SampleFeatureCount int      `json:"sample_feature_count"`
	Available          bool     `json:"available"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

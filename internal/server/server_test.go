package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geoglim/clipserver/internal/clip"
	"github.com/geoglim/clipserver/internal/config"
	"github.com/geoglim/clipserver/internal/crs"
	"github.com/geoglim/clipserver/internal/dataset"
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/registry"
)

const nyAOI = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-74.1,40.6],[-73.8,40.6],[-73.8,40.9],[-74.1,40.9],[-74.1,40.6]]]
		}
	}]
}`

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

func fakeLoad(ctx context.Context, spec registry.Spec) (*dataset.Dataset, error) {
	fc := geojson.NewFeatureCollection()
	fc.Append(square(-74.3, 40.5, -73.9, 40.8, map[string]interface{}{"litho": "mt"}))
	fc.Append(square(-74.0, 40.7, -73.6, 41.0, map[string]interface{}{"litho": "su"}))
	fc.Append(square(10.0, 50.0, 11.0, 51.0, map[string]interface{}{"litho": "vb"}))
	return &dataset.Dataset{Name: spec.Name, CRS: crs.WGS84, Collection: fc}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	glimPath := filepath.Join(t.TempDir(), "glim.gdb")
	if err := os.MkdirAll(glimPath, 0o755); err != nil {
		t.Fatal(err)
	}
	reg := registry.NewWithSpecs(
		registry.Spec{Name: model.GLiM, Path: glimPath, Format: registry.FileGDB, Layer: "GLiM_export"},
	)

	cfg := config.Config{
		MaxUploadBytes:      1 << 20,
		MaxClipAreaKm2:      1e6,
		ClipWorkers:         1,
		ResultCacheSize:     4,
		ResultCacheMaxBytes: 1 << 20,
		TmpDir:              t.TempDir(),
	}

	log := discard()
	cache := dataset.NewCache(reg, fakeLoad, log)
	engine := clip.NewEngine(cfg.ClipWorkers, log)

	s, err := New(cfg, log, reg, cache, engine)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func multipartBody(t *testing.T, field, payload string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "aoi.geojson")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(payload)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postClip(t *testing.T, ts *httptest.Server, path, payload string) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, "geojson_file", payload)
	resp, err := http.Post(ts.URL+path, contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func errorDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body model.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	return body.Detail
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var h model.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "healthy" {
		t.Fatalf("status = %q", h.Status)
	}
	if !h.DatasetsAvailable["glim"] {
		t.Fatalf("availability = %v", h.DatasetsAvailable)
	}
}

func TestClipUnknownDataset(t *testing.T) {
	ts := newTestServer(t)
	resp := postClip(t, ts, "/clip/mars", nyAOI)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if d := errorDetail(t, resp); !strings.Contains(d, "mars") {
		t.Fatalf("detail = %q", d)
	}
}

func TestClipBadOutputFormat(t *testing.T) {
	ts := newTestServer(t)
	resp := postClip(t, ts, "/clip/glim?output_format=kml", nyAOI)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestClipMissingFormField(t *testing.T) {
	ts := newTestServer(t)
	body, contentType := multipartBody(t, "wrong_field", nyAOI)
	resp, err := http.Post(ts.URL+"/clip/glim", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if d := errorDetail(t, resp); !strings.Contains(d, "geojson_file") {
		t.Fatalf("detail = %q", d)
	}
}

func TestClipValidationFailures(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"type":`},
		{"empty collection", `{"type":"FeatureCollection","features":[]}`},
		{"point geometry", `{"type":"Point","coordinates":[1,2]}`},
	}
	for _, c := range cases {
		resp := postClip(t, ts, "/clip/glim", c.payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", c.name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestClipPayloadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	big := strings.Repeat("x", 2<<20)
	resp := postClip(t, ts, "/clip/glim", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestClipGeoJSONSuccess(t *testing.T) {
	ts := newTestServer(t)

	resp := postClip(t, ts, "/clip/glim", nyAOI)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Feature-Count"); got != "2" {
		t.Fatalf("X-Feature-Count = %q, want 2", got)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "glim_clipped.geojson") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("Content-Type = %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		t.Fatalf("body is not GeoJSON: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
}

func TestClipResultCacheServesRepeat(t *testing.T) {
	ts := newTestServer(t)

	first := postClip(t, ts, "/clip/glim", nyAOI)
	firstBody, _ := io.ReadAll(first.Body)
	first.Body.Close()

	second := postClip(t, ts, "/clip/glim", nyAOI)
	secondBody, _ := io.ReadAll(second.Body)
	second.Body.Close()

	if second.StatusCode != http.StatusOK {
		t.Fatalf("repeat status = %d", second.StatusCode)
	}
	if second.Header.Get("X-Feature-Count") != first.Header.Get("X-Feature-Count") {
		t.Fatal("feature count changed between identical requests")
	}
	if !bytes.Equal(firstBody, secondBody) {
		t.Fatal("cached response differs from first")
	}
}

func TestClipShapefileIsZip(t *testing.T) {
	ts := newTestServer(t)

	resp := postClip(t, ts, "/clip/glim?output_format=shapefile", nyAOI)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "glim_clipped.zip") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) < 4 || raw[0] != 'P' || raw[1] != 'K' {
		t.Fatal("body is not a zip archive")
	}
}

func TestDatasetInfo(t *testing.T) {
	ts := newTestServer(t)

	// Load the collection first; info on a resident dataset is answered from
	// memory rather than the container.
	warm := postClip(t, ts, "/clip/glim", nyAOI)
	warm.Body.Close()
	if warm.StatusCode != http.StatusOK {
		t.Fatalf("warmup clip status = %d", warm.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/datasets/glim/info")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var info model.DatasetInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Dataset != "glim" || !info.Available {
		t.Fatalf("info = %+v", info)
	}
	if info.CRS != "EPSG:4326" {
		t.Fatalf("crs = %q", info.CRS)
	}
	found := false
	for _, c := range info.Columns {
		if c == "geometry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("columns missing geometry: %v", info.Columns)
	}
	if info.GeometryType != "Polygon" {
		t.Fatalf("geometry type = %q", info.GeometryType)
	}
}

func TestClipDatasetFileMissing(t *testing.T) {
	// Registered name, absent file: the default loader's stat check must turn
	// into a 404 without poisoning the cache.
	reg := registry.NewWithSpecs(
		registry.Spec{Name: model.GLHYMPS, Path: "/nonexistent/glhymps.shp", Format: registry.Shapefile},
	)
	cfg := config.Config{
		MaxUploadBytes: 1 << 20,
		MaxClipAreaKm2: 1e6,
		ClipWorkers:    1,
		TmpDir:         t.TempDir(),
	}
	log := discard()
	cache := dataset.NewCache(reg, nil, log)
	engine := clip.NewEngine(cfg.ClipWorkers, log)

	s, err := New(cfg, log, reg, cache, engine)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	resp := postClip(t, ts, "/clip/glhymps", nyAOI)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if d := errorDetail(t, resp); !strings.Contains(d, "glhymps") {
		t.Fatalf("detail = %q", d)
	}
	if cache.Loaded(model.GLHYMPS) {
		t.Fatal("failed load must not be cached")
	}
}

func TestInternalErrorDetailKeepsCause(t *testing.T) {
	s := &Server{log: discard()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/clip/glim", nil)

	cause := errors.New("non-noded intersection between LINESTRING segments")
	s.writeError(rec, req, model.Wrap(model.KindClippingFailed, cause, "overlay failed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"clipping_failed", "overlay failed", "non-noded intersection"} {
		if !strings.Contains(body.Detail, want) {
			t.Fatalf("detail = %q, missing %q", body.Detail, want)
		}
	}
}

func TestDatasetInfoUnknown(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/datasets/venus/info")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

// Package client is a small Go SDK for the clip server HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// ErrDatasetNotFound is returned when the server does not know or cannot
// serve the requested dataset.
var ErrDatasetNotFound = errors.New("dataset not found")

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

// Health mirrors the GET / payload.
type Health struct {
	Status            string          `json:"status"`
	DatasetsAvailable map[string]bool `json:"datasets_available"`
	APIVersion        string          `json:"api_version"`
}

// DatasetInfo mirrors the GET /datasets/{dataset}/info payload.
type DatasetInfo struct {
	Dataset            string   `json:"dataset"`
	Path               string   `json:"path"`
	CRS                string   `json:"crs"`
	Columns            []string `json:"columns"`
	GeometryType       string   `json:"geometry_type"`
	SampleFeatureCount int      `json:"sample_feature_count"`
	Available          bool     `json:"available"`
}

// ClipResult is a streamed clip download. Callers must Close the Body.
type ClipResult struct {
	Body         io.ReadCloser
	Filename     string
	MediaType    string
	FeatureCount int
}

type Client struct {
	baseURL string
	hc      *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, e.g. for tests or
// custom timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.getJSON(ctx, "/", &h)
	return h, err
}

func (c *Client) DatasetInfo(ctx context.Context, dataset string) (DatasetInfo, error) {
	var info DatasetInfo
	err := c.getJSON(ctx, "/datasets/"+url.PathEscape(dataset)+"/info", &info)
	return info, err
}

// Clip uploads an AOI GeoJSON and returns the clipped download. An empty
// format means the server default, geojson.
func (c *Client) Clip(ctx context.Context, dataset string, aoi io.Reader, format string) (*ClipResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("geojson_file", "aoi.geojson")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, aoi); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	u := c.baseURL + "/clip/" + url.PathEscape(dataset)
	if format != "" {
		u += "?output_format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	count, _ := strconv.Atoi(resp.Header.Get("X-Feature-Count"))
	return &ClipResult{
		Body:         resp.Body,
		Filename:     dispositionFilename(resp.Header.Get("Content-Disposition")),
		MediaType:    resp.Header.Get("Content-Type"),
		FeatureCount: count,
	}, nil
}

// ClipToFile runs Clip and writes the download to destPath, returning the
// feature count.
func (c *Client) ClipToFile(ctx context.Context, dataset string, aoi io.Reader, format, destPath string) (int, error) {
	res, err := c.Clip(ctx, dataset, aoi, format)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		return 0, err
	}
	return res.FeatureCount, f.Close()
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body)

	if resp.StatusCode == http.StatusNotFound {
		if body.Detail != "" {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, body.Detail)
		}
		return ErrDatasetNotFound
	}
	if body.Detail == "" {
		body.Detail = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Detail: body.Detail}
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

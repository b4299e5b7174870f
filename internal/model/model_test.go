package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestParseDataset(t *testing.T) {
	cases := []struct {
		in   string
		want DatasetName
		ok   bool
	}{
		{"glim", GLiM, true},
		{"GLiM", GLiM, true},
		{" glhymps ", GLHYMPS, true},
		{"nope", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseDataset(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseDataset(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want OutputFormat
		ok   bool
	}{
		{"", FormatGeoJSON, true},
		{"geojson", FormatGeoJSON, true},
		{"SHAPEFILE", FormatShapefile, true},
		{"gpkg", FormatGeoPackage, true},
		{"kml", "", false},
	}
	for _, c := range cases {
		got, ok := ParseFormat(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseFormat(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestFormatExt(t *testing.T) {
	if got := FormatShapefile.Ext(); got != "zip" {
		t.Fatalf("shapefile ext = %q, want zip", got)
	}
	if got := FormatGeoJSON.Ext(); got != "geojson" {
		t.Fatalf("geojson ext = %q", got)
	}
	if got := FormatGeoPackage.Ext(); got != "gpkg" {
		t.Fatalf("gpkg ext = %q", got)
	}
}

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindMalformedInput, http.StatusBadRequest},
		{KindInvalidGeoJSON, http.StatusBadRequest},
		{KindEmptyAOI, http.StatusBadRequest},
		{KindInvalidGeometry, http.StatusBadRequest},
		{KindDatasetUnavailable, http.StatusNotFound},
		{KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{KindClippingFailed, http.StatusInternalServerError},
		{KindSerializationError, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := E(KindEmptyAOI, "no features")
	wrapped := fmt.Errorf("outer: %w", base)
	if got := KindOf(wrapped); got != KindEmptyAOI {
		t.Fatalf("KindOf(wrapped) = %s, want empty_aoi", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %s, want unknown", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := Wrap(KindDatasetUnavailable, cause, "load %s", "glim")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause lost from chain")
	}
	if err.Error() != "load glim: disk gone" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

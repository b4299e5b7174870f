package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure. Validation kinds are detected before any
// dataset access; pipeline kinds collapse into ClippingFailed at the HTTP
// boundary with the underlying message attached.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedInput
	KindInvalidGeoJSON
	KindEmptyAOI
	KindInvalidGeometry
	KindDatasetUnavailable
	KindPayloadTooLarge
	KindClippingFailed
	KindSerializationError
)

func (k Kind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed_input"
	case KindInvalidGeoJSON:
		return "invalid_geojson"
	case KindEmptyAOI:
		return "empty_aoi"
	case KindInvalidGeometry:
		return "invalid_geometry"
	case KindDatasetUnavailable:
		return "dataset_unavailable"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindClippingFailed:
		return "clipping_failed"
	case KindSerializationError:
		return "serialization_error"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a failure kind to its client-facing status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMalformedInput, KindInvalidGeoJSON, KindEmptyAOI, KindInvalidGeometry:
		return http.StatusBadRequest
	case KindDatasetUnavailable:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it on the unwrap chain.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindUnknown
}

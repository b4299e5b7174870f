package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/geoglim/clipserver/internal/dataset"
	mylog "github.com/geoglim/clipserver/internal/logger"
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/resultcache"
)

// uploadField is the multipart form field carrying the AOI GeoJSON.
const uploadField = "geojson_file"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.checker.Check())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	name, ok := model.ParseDataset(chi.URLParam(r, "dataset"))
	if !ok {
		s.writeError(w, r, unknownDataset(chi.URLParam(r, "dataset")))
		return
	}
	info, err := s.info(r, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	name, ok := model.ParseDataset(chi.URLParam(r, "dataset"))
	if !ok {
		s.writeError(w, r, unknownDataset(chi.URLParam(r, "dataset")))
		return
	}
	format, ok := model.ParseFormat(r.URL.Query().Get("output_format"))
	if !ok {
		s.writeError(w, r, model.E(model.KindMalformedInput,
			"unsupported output_format %q; use geojson, shapefile or gpkg", r.URL.Query().Get("output_format")))
		return
	}

	ctx := mylog.WithDataset(r.Context(), string(name))
	r = r.WithContext(ctx)

	payload, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var key uint64
	if s.results != nil {
		key = resultcache.Key(string(name), string(format), payload)
		if e, hit := s.results.Get(key); hit {
			writeDownload(w, e.Filename, e.MediaType, e.FeatureCount, e.Body)
			return
		}
	}

	a, err := s.valid.Parse(payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ds, err := s.cache.Get(ctx, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.engine.Clip(ctx, ds, a.Collection, a.CRS)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.ser.Write(result.Collection, result.CRS, name, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer out.Close()

	body, err := os.ReadFile(out.Path)
	if err != nil {
		s.writeError(w, r, model.Wrap(model.KindSerializationError, err, "read serialized output"))
		return
	}

	if s.results != nil {
		s.results.Put(key, resultcache.Entry{
			Body:         body,
			Filename:     out.Filename,
			MediaType:    out.MediaType,
			FeatureCount: result.FeatureCount(),
		})
	}
	writeDownload(w, out.Filename, out.MediaType, result.FeatureCount(), body)
}

// readUpload enforces the size cap and extracts the AOI payload from the
// multipart form.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	max := s.cfg.MaxUploadBytes
	if r.ContentLength > max {
		return nil, tooLarge(max)
	}
	r.Body = http.MaxBytesReader(w, r.Body, max)

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge(max)
		}
		return nil, model.Wrap(model.KindMalformedInput, err,
			"multipart form field %q is required", uploadField)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge(max)
		}
		return nil, model.Wrap(model.KindMalformedInput, err, "read upload")
	}
	if int64(len(payload)) > max {
		return nil, tooLarge(max)
	}
	return payload, nil
}

func (s *Server) info(r *http.Request, name model.DatasetName) (model.DatasetInfo, error) {
	return dataset.Info(r.Context(), s.cache, s.reg, name)
}

func unknownDataset(raw string) error {
	names := make([]string, 0, len(model.Names()))
	for _, n := range model.Names() {
		names = append(names, string(n))
	}
	return model.E(model.KindDatasetUnavailable,
		"unknown dataset %q; available: %s", raw, strings.Join(names, ", "))
}

func tooLarge(max int64) error {
	return model.E(model.KindPayloadTooLarge,
		"file too large; max size: %.1fMB", float64(max)/1024/1024)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := kind.HTTPStatus()

	detail := err.Error()
	if status == http.StatusInternalServerError {
		// Internal failures carry their classification plus the full cause
		// chain so the caller can see what the engine actually reported.
		detail = fmt.Sprintf("%s: %s", kind, err.Error())
	}

	s.log.Error("request failed",
		"request_id", mylog.RequestID(r.Context()),
		"kind", kind.String(),
		"status", status,
		"err", err.Error())
	writeJSON(w, status, model.ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDownload(w http.ResponseWriter, filename, mediaType string, count int, body []byte) {
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Feature-Count", strconv.Itoa(count))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

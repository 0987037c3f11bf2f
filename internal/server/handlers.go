package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/mattfenn/erfgen/pkg/errors"
	geoio "github.com/mattfenn/erfgen/pkg/io"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// maxRequestBytes bounds the accepted request body; settlement-scale layers
// fit comfortably.
const maxRequestBytes = 64 << 20

// generateRequest is the request body for POST /v1/generate. Options use the
// JSON shape of pipeline.Options; the layers are GeoJSON feature collections.
type generateRequest struct {
	Options   pipeline.Options `json:"options"`
	Roads     json.RawMessage  `json:"roads,omitempty"`
	Buildings json.RawMessage  `json:"buildings,omitempty"`
}

// generateResponse is the response body for POST /v1/generate.
type generateResponse struct {
	Count    int             `json:"count"`
	CacheHit bool            `json:"cache_hit"`
	Frame    string          `json:"frame"`
	Parcels  json.RawMessage `json:"parcels"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	var input pipeline.Input
	if len(req.Buildings) > 0 {
		points, err := geoio.ReadPoints(bytes.NewReader(req.Buildings))
		if err != nil {
			s.writeError(w, err)
			return
		}
		input.Buildings = points
	}
	if len(req.Roads) > 0 {
		roads, err := geoio.ReadLines(bytes.NewReader(req.Roads))
		if err != nil {
			s.writeError(w, err)
			return
		}
		input.Roads = roads
	}

	result, err := s.runner.Execute(r.Context(), input, req.Options, pipeline.NopSink{})
	if err != nil {
		s.writeError(w, err)
		return
	}

	var parcels bytes.Buffer
	if err := geoio.WriteCollection(result.Parcels, &parcels); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, generateResponse{
		Count:    result.Count,
		CacheHit: result.CacheHit,
		Frame:    result.Parcels.Frame,
		Parcels:  parcels.Bytes(),
	})
}

// statusFor maps pipeline error codes onto HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidFrame, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeInsufficientInput:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeCancelled:
		// Client went away mid-run.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, errorResponse{
		Error: errors.UserMessage(err),
		Code:  errors.GetCode(err),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/couchcryptid/crop-advisor-service/internal/advisor"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
)

const maxBodyBytes = 1 << 20

type rulesQuery struct {
	Season string `validate:"required,oneof=Kharif Rabi Zaid"`
	Soil   string `validate:"max=64"`
}

type rulesResponse struct {
	Season string   `json:"season"`
	Soil   string   `json:"soil"`
	Crops  []string `json:"crops"`
}

type regionResponse struct {
	State    string   `json:"state"`
	District string   `json:"district"`
	Crops    []string `json:"crops"`
}

type statesResponse struct {
	States []string `json:"states"`
}

type districtsResponse struct {
	State     string   `json:"state"`
	Districts []string `json:"districts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	q := rulesQuery{
		Season: r.URL.Query().Get("season"),
		Soil:   r.URL.Query().Get("soil"),
	}
	if err := advisor.Validate(q); err != nil {
		s.writeError(w, r, err)
		return
	}
	crops, err := s.advisor.RecommendRules(q.Season, q.Soil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Season: q.Season, Soil: q.Soil, Crops: crops})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req advisor.MLRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decode request: " + err.Error()})
		return
	}

	rec, err := s.advisor.RecommendML(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.advisor.RegionStates()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statesResponse{States: states})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	state := r.PathValue("state")
	districts, err := s.advisor.RegionDistricts(state)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, districtsResponse{State: state, Districts: districts})
}

func (s *Server) handleRegionCrops(w http.ResponseWriter, r *http.Request) {
	state, district := r.PathValue("state"), r.PathValue("district")
	crops, err := s.advisor.RegionCrops(r.Context(), state, district)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regionResponse{State: state, District: district, Crops: crops})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	info, err := s.advisor.Info()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	info, err := s.advisor.Retrain(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// statusFor maps service and domain errors onto HTTP status codes.
func statusFor(err error) int {
	var unknownCategory *domain.UnknownCategoryError
	var schemaMismatch *domain.SchemaMismatchError
	switch {
	case errors.As(err, &unknownCategory):
		return http.StatusUnprocessableEntity
	case errors.As(err, &schemaMismatch), errors.Is(err, advisor.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, region.ErrUnknownRegion):
		return http.StatusNotFound
	case errors.Is(err, advisor.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, advisor.ErrRetrainThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, advisor.ErrRegionsDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusNotImplemented {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

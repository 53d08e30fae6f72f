package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/deployhook/internal/domain"
	"github.com/tjfontaine/deployhook/internal/storage"
)

// maxListLimit caps the limit query parameter of GET /deployments.
const maxListLimit = 200

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// DeploymentListResponse is the body of GET /deployments.
type DeploymentListResponse struct {
	Deployments []*domain.Deployment `json:"deployments"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, domain.ErrValidation("request body too large"))
			return
		}
		writeError(w, domain.ErrValidation("unreadable request body"))
		return
	}

	d, err := s.deployer.Run(r.Context(), body)
	if d != nil {
		AddLogField(r.Context(), "deployment_id", d.ID)
		AddLogField(r.Context(), "project", d.Project)
		AddLogField(r.Context(), "ref", d.Ref)
		AddLogField(r.Context(), "stage", string(d.Stage))
	}
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Project: r.URL.Query().Get("project"),
		Limit:   storage.DefaultListLimit,
	}

	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= maxListLimit {
			opts.Limit = v
		}
	}

	if q := r.URL.Query().Get("offset"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v >= 0 {
			opts.Offset = v
		}
	}

	deployments, err := s.history.ListDeployments(r.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list deployments", slog.String("error", err.Error()))
		writeStatus(w, http.StatusInternalServerError, "", "failed to list deployments")
		return
	}
	if deployments == nil {
		deployments = []*domain.Deployment{}
	}

	writeJSON(w, http.StatusOK, DeploymentListResponse{Deployments: deployments})
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.history.GetDeployment(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeStatus(w, http.StatusNotFound, "not_found", "deployment not found: "+id)
		return
	}
	if err != nil {
		s.logger.Error("failed to load deployment",
			slog.String("deployment_id", id),
			slog.String("error", err.Error()),
		)
		writeStatus(w, http.StatusInternalServerError, "", "failed to load deployment")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.projects != nil {
		resp.Projects = s.projects.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps err to its status code and writes the JSON error body.
// Errors that are not a *domain.DeployError become a 500.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.DeployError
	if !errors.As(err, &de) {
		writeStatus(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeStatus(w, de.HTTPStatusCode(), string(de.Kind), de.Message)
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Code:       code,
		Message:    message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

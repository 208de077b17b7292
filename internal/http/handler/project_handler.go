package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	search := r.URL.Query().Get("search")

	result, err := h.projectService.List(r.Context(), page, pageSize, search)
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListAll returns every project unpaginated, for assignment pickers.
func (h *ProjectHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list all projects", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	respondJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create project", zap.Error(err))
		h.handleProjectError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project ID: must be a valid UUID")
		return
	}

	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrProjectNotFound) {
			h.logger.Error("failed to get project", zap.Error(err), zap.String("project_id", id.String()))
		}
		h.handleProjectError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project ID: must be a valid UUID")
		return
	}

	var req domain.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	project, err := h.projectService.Update(r.Context(), id, &req)
	if err != nil {
		if !errors.Is(err, service.ErrProjectNotFound) {
			h.logger.Error("failed to update project", zap.Error(err), zap.String("project_id", id.String()))
		}
		h.handleProjectError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// handleProjectError maps service errors to HTTP status codes
func (h *ProjectHandler) handleProjectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		respondWithError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, service.ErrDuplicateProjectCode):
		respondWithError(w, http.StatusConflict, "Project code already exists")
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, "Invalid input")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

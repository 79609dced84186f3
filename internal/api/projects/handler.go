// Package projects implements the project CRUD and conversion endpoints.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/api/middleware"
	"github.com/kaira-dev/kaira/internal/convert"
	"github.com/kaira-dev/kaira/internal/files"
	"github.com/kaira-dev/kaira/internal/models"
	"github.com/kaira-dev/kaira/internal/storage"
)

const maxUploadBytes = 64 << 20 // 64 MiB

// Response helpers (same pattern as auth)
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeForbidden        = "FORBIDDEN"
	errCodeConflict         = "CONFLICT"
	errCodeInternalError    = "INTERNAL_ERROR"
	errCodeConversionFailed = "CONVERSION_FAILED"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ProjectResponse is a project as returned by the API.
type ProjectResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Status      string               `json:"status"`
	Tags        []string             `json:"tags,omitempty"`
	Image       *models.Artifact     `json:"image,omitempty"`
	ModelFile   *models.Artifact     `json:"model_file,omitempty"`
	Version     int                  `json:"version"`
	AuditLog    []AuditEntryResponse `json:"audit_log,omitempty"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

// AuditEntryResponse is one audit trail record.
type AuditEntryResponse struct {
	Action      string `json:"action"`
	PerformedBy string `json:"performed_by"`
	PerformedAt string `json:"performed_at"`
	Details     string `json:"details,omitempty"`
}

// Handler serves project endpoints.
type Handler struct {
	storage   storage.Storage
	files     *files.Store
	converter convert.Converter
	launcher  convert.Launcher
}

// NewHandler creates a project handler. converter and launcher may be nil
// when the external tooling is unavailable.
func NewHandler(store storage.Storage, fileStore *files.Store, converter convert.Converter, launcher convert.Launcher) *Handler {
	return &Handler{storage: store, files: fileStore, converter: converter, launcher: launcher}
}

// UpdateRequest carries a sparse project update. Empty fields are left
// unchanged. Version, when set, must match the version the client last
// read or the update is rejected.
type UpdateRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Version     *int     `json:"version,omitempty"`
}

// Create creates a new project from a multipart form. The floor plan image
// can be attached as the "image" file field or referenced as a remote URL
// in the "image_url" field.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	description := strings.TrimSpace(r.FormValue("description"))
	tags := parseTags(r.MultipartForm.Value["tags"])

	if err := ValidateName(name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateDescription(description); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateTags(tags); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	project := models.NewProject(userID, name, description, tags)
	project.ID = uuid.New().String()

	if imageURL := strings.TrimSpace(r.FormValue("image_url")); imageURL != "" {
		project.Image = &models.Artifact{Path: imageURL}
	} else if file, header, err := r.FormFile("image"); err == nil {
		artifact, saveErr := h.saveUpload(models.ArtifactImage, file, header)
		if saveErr != nil {
			log.Printf("create project error: save image: %v", saveErr)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		project.Image = artifact
	}

	entry := models.NewAuditEntry(project.ID, "Created", userID, "")
	if err := h.storage.Projects().Create(ctx, project, entry); err != nil {
		h.discardArtifact(project.Image)
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, errCodeConflict, "project name already exists")
			return
		}
		log.Printf("create project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("project created: %s (%s)", project.Name, project.ID)
	jsonCreated(w, projectToResponse(project))
}

// List returns the caller's projects, most recently updated first.
// Soft-deleted projects are excluded.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	projects, err := h.storage.Projects().ListByOwner(ctx, userID, false)
	if err != nil {
		log.Printf("list projects error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	jsonOK(w, resp)
}

// CheckName reports whether a project name is still available. The answer
// is advisory, creating the project can still hit a conflict.
func (h *Handler) CheckName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if err := ValidateName(name); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	exists, err := h.storage.Projects().NameExists(r.Context(), name)
	if err != nil {
		log.Printf("check name error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]any{"name": name, "available": !exists})
}

// GetByID returns one of the caller's projects.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	jsonOK(w, projectToResponse(project))
}

// Update applies a sparse update to a project. Only fields present in the
// request change, everything else keeps its stored value.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	project, ok := h.ownedProject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	var entries []models.AuditEntry

	if req.Name != "" {
		if err := ValidateName(req.Name); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		if err := ValidateDescription(req.Description); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Description = strings.TrimSpace(req.Description)
	}
	if req.Tags != nil {
		tags := parseTags(req.Tags)
		if err := ValidateTags(tags); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Tags = tags
	}
	if req.Status != "" {
		status := models.ProjectStatus(req.Status)
		if !models.ValidStatus(status) {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "status must be pending, active, or completed")
			return
		}
		if status != project.Status {
			project.Status = status
			entries = append(entries, models.NewAuditEntry(project.ID, "Status changed", userID, string(status)))
		}
	}

	// Exactly one audit entry per update: the status entry if one was
	// queued, otherwise a generic one. The write goes through even when
	// the patch matches the stored values so updated_at always moves.
	if len(entries) == 0 {
		entries = append(entries, models.NewAuditEntry(project.ID, "Updated", userID, ""))
	}
	if req.Version != nil {
		project.Version = *req.Version
	}
	project.UpdatedAt = time.Now()

	if err := h.persistUpdate(w, ctx, project, entries); err != nil {
		return
	}

	log.Printf("project updated: %s (%s)", project.Name, project.ID)
	jsonOK(w, projectToResponse(project))
}

// Delete soft-deletes a project. The record and its artifacts stay on disk,
// the project just stops appearing in listings.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	project.IsDeleted = true
	project.UpdatedAt = time.Now()
	entries := []models.AuditEntry{models.NewAuditEntry(project.ID, "Deleted", userID, "")}

	if err := h.persistUpdate(w, ctx, project, entries); err != nil {
		return
	}

	log.Printf("project deleted: %s (%s)", project.Name, project.ID)
	jsonNoContent(w)
}

// UploadImage replaces a project's floor plan image.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	h.replaceArtifact(w, r, models.ArtifactImage)
}

// UploadModel replaces a project's 3D model file.
func (h *Handler) UploadModel(w http.ResponseWriter, r *http.Request) {
	h.replaceArtifact(w, r, models.ArtifactModel)
}

// replaceArtifact stores the uploaded file, persists the new reference, and
// only then removes the file it replaced. A failed persist removes the new
// file instead, leaving the project untouched.
func (h *Handler) replaceArtifact(w http.ResponseWriter, r *http.Request, kind models.ArtifactKind) {
	project, ok := h.ownedProject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(string(kind))
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, string(kind)+" file is required")
		return
	}

	artifact, err := h.saveUpload(kind, file, header)
	if err != nil {
		log.Printf("upload %s error: save: %v", kind, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var old *models.Artifact
	var action string
	if kind == models.ArtifactModel {
		old = project.ModelFile
		project.ModelFile = artifact
		action = "Uploaded model"
	} else {
		old = project.Image
		project.Image = artifact
		action = "Uploaded image"
	}
	project.UpdatedAt = time.Now()
	entries := []models.AuditEntry{models.NewAuditEntry(project.ID, action, userID, artifact.OriginalName)}

	if err := h.persistUpdate(w, ctx, project, entries); err != nil {
		h.discardArtifact(artifact)
		return
	}

	if old != nil {
		if err := h.files.Remove(old.Path); err != nil {
			log.Printf("upload %s: remove old file: %v", kind, err)
		}
	}

	jsonOK(w, projectToResponse(project))
}

// Convert runs the floor plan image through the external converter and
// attaches the resulting 3D model to the project. The model file is
// streamed back in the response.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if h.converter == nil {
		jsonError(w, http.StatusServiceUnavailable, errCodeConversionFailed, "converter is not configured")
		return
	}
	if project.Image == nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "project has no floor plan image")
		return
	}
	if project.Image.IsRemote() {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "floor plan image must be uploaded before conversion")
		return
	}

	imagePath, err := h.files.DiskPath(project.Image.Path)
	if err != nil {
		log.Printf("convert error: resolve image: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	ctx := r.Context()
	outPath, err := h.converter.Convert(ctx, imagePath)
	if err != nil {
		log.Printf("convert error: %v", err)
		msg := "floor plan conversion failed"
		if errors.Is(err, convert.ErrTimeout) {
			msg = "floor plan conversion timed out"
		}
		jsonError(w, http.StatusBadGateway, errCodeConversionFailed, msg)
		return
	}

	urlPath, size, err := h.files.Adopt(models.ArtifactModel, outPath)
	if err != nil {
		log.Printf("convert error: store model: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	artifact := &models.Artifact{
		Path:         urlPath,
		OriginalName: project.Name + ".glb",
		Size:         size,
		ContentType:  "glb",
	}

	old := project.ModelFile
	project.ModelFile = artifact
	project.Status = models.StatusActive
	project.UpdatedAt = time.Now()
	entries := []models.AuditEntry{
		models.NewAuditEntry(project.ID, "Converted floor plan to 3D model", "system", artifact.Path),
	}

	if err := h.persistUpdate(w, ctx, project, entries); err != nil {
		h.discardArtifact(artifact)
		return
	}
	if old != nil {
		if err := h.files.Remove(old.Path); err != nil {
			log.Printf("convert: remove old model: %v", err)
		}
	}

	log.Printf("project converted: %s (%s)", project.Name, project.ID)

	modelPath, err := h.files.DiskPath(artifact.Path)
	if err != nil {
		log.Printf("convert error: resolve model: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(modelPath)+`"`)
	http.ServeFile(w, r, modelPath)
}

// LaunchVR opens a project's model in the external VR viewer.
func (h *Handler) LaunchVR(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("project_id")
	project, ok := h.ownedProject(w, r, id)
	if !ok {
		return
	}

	if h.launcher == nil {
		jsonError(w, http.StatusServiceUnavailable, errCodeInternalError, "VR viewer is not configured")
		return
	}
	if project.ModelFile == nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "project has no 3D model, convert it first")
		return
	}

	modelPath := project.ModelFile.Path
	if !project.ModelFile.IsRemote() {
		resolved, err := h.files.DiskPath(modelPath)
		if err != nil {
			log.Printf("vr launch error: resolve model: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		modelPath = resolved
	}

	if err := h.launcher.Launch(r.Context(), modelPath); err != nil {
		log.Printf("vr launch error: %v", err)
		jsonError(w, http.StatusBadGateway, errCodeInternalError, "failed to launch VR viewer")
		return
	}

	log.Printf("vr viewer launched for project %s", project.ID)
	jsonOK(w, map[string]string{"message": "VR viewer launched"})
}

// ownedProject loads a live project and verifies the caller owns it. On
// failure it writes the error response and returns ok=false.
func (h *Handler) ownedProject(w http.ResponseWriter, r *http.Request, id string) (*models.Project, bool) {
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "project id required")
		return nil, false
	}

	ctx := r.Context()
	project, err := h.storage.Projects().GetByID(ctx, id)
	if err != nil {
		log.Printf("get project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, false
	}
	if project == nil || project.IsDeleted {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
		return nil, false
	}
	if project.OwnerID != middleware.GetUserID(ctx) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return nil, false
	}
	return project, true
}

// persistUpdate writes the project and maps storage errors to responses.
// A non-nil return means the response has already been written.
func (h *Handler) persistUpdate(w http.ResponseWriter, ctx context.Context, project *models.Project, entries []models.AuditEntry) error {
	err := h.storage.Projects().Update(ctx, project, entries)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrVersionConflict):
		jsonError(w, http.StatusConflict, errCodeConflict, "project was modified by another request, reload and retry")
	case errors.Is(err, storage.ErrDuplicate):
		jsonError(w, http.StatusConflict, errCodeConflict, "project name already exists")
	case errors.Is(err, storage.ErrNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
	default:
		log.Printf("update project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
	return err
}

// saveUpload writes an uploaded file into the store and describes it.
func (h *Handler) saveUpload(kind models.ArtifactKind, file multipart.File, header *multipart.FileHeader) (*models.Artifact, error) {
	defer file.Close()

	urlPath, size, err := h.files.Save(kind, header.Filename, file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if kind == models.ArtifactModel {
		contentType = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}

	return &models.Artifact{
		Path:         urlPath,
		OriginalName: header.Filename,
		Size:         size,
		ContentType:  contentType,
	}, nil
}

// discardArtifact removes a freshly stored local file after a failed write.
func (h *Handler) discardArtifact(a *models.Artifact) {
	if a == nil {
		return
	}
	if err := h.files.Remove(a.Path); err != nil {
		log.Printf("discard artifact: %v", err)
	}
}

// parseTags flattens repeated and comma-separated tag values.
func parseTags(values []string) []string {
	var tags []string
	for _, v := range values {
		for _, tag := range strings.Split(v, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func projectToResponse(p *models.Project) *ProjectResponse {
	resp := &ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		Tags:        p.Tags,
		Image:       p.Image,
		ModelFile:   p.ModelFile,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	for _, e := range p.AuditLog {
		resp.AuditLog = append(resp.AuditLog, AuditEntryResponse{
			Action:      e.Action,
			PerformedBy: e.PerformedBy,
			PerformedAt: e.PerformedAt.Format(time.RFC3339),
			Details:     e.Details,
		})
	}
	return resp
}

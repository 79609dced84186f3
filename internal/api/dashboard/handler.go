// Package dashboard aggregates per-user project statistics.
package dashboard

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kaira-dev/kaira/internal/api/middleware"
	"github.com/kaira-dev/kaira/internal/models"
	"github.com/kaira-dev/kaira/internal/storage"
)

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

// SummaryResponse is the dashboard aggregation over a user's live projects.
type SummaryResponse struct {
	TotalProjects         int    `json:"total_projects"`
	ActiveProjects        int    `json:"active_projects"`
	CompletedProjects     int    `json:"completed_projects"`
	CreatedLastWeek       int    `json:"created_last_week"`
	ActiveCreatedLastWeek int    `json:"active_created_last_week"`
	StorageBytes          int64  `json:"storage_bytes"`
	StorageUsed           string `json:"storage_used"`
}

// Handler serves the dashboard endpoint.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a dashboard handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// Summary aggregates the caller's projects. Soft-deleted projects are not
// counted.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	projects, err := h.storage.Projects().ListByOwner(ctx, userID, false)
	if err != nil {
		log.Printf("dashboard error: %v", err)
		jsonError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	jsonOK(w, Summarize(projects, time.Now()))
}

// Summarize computes the dashboard numbers for a set of projects.
func Summarize(projects []*models.Project, now time.Time) *SummaryResponse {
	weekAgo := now.AddDate(0, 0, -7)
	resp := &SummaryResponse{TotalProjects: len(projects)}

	for _, p := range projects {
		recent := p.CreatedAt.After(weekAgo)
		if recent {
			resp.CreatedLastWeek++
		}
		switch p.Status {
		case models.StatusActive:
			resp.ActiveProjects++
			if recent {
				resp.ActiveCreatedLastWeek++
			}
		case models.StatusCompleted:
			resp.CompletedProjects++
		}
		resp.StorageBytes += p.ArtifactSize()
	}

	resp.StorageUsed = humanSize(resp.StorageBytes)
	return resp
}

// humanSize renders a byte count with the largest fitting unit.
func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

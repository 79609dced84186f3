package models

import (
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	StatusPending   ProjectStatus = "pending"
	StatusActive    ProjectStatus = "active"
	StatusCompleted ProjectStatus = "completed"
)

// ValidStatus reports whether s is one of the known project statuses.
func ValidStatus(s ProjectStatus) bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Artifact describes a stored file associated with a project, either a
// floor-plan image or a generated 3D model. Path is a local path under
// the managed uploads directory or a remote URL.
type Artifact struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	// ContentType holds the MIME type for images and the file format
	// (glb, fbx, obj) for model files.
	ContentType string `json:"content_type,omitempty"`
}

// IsRemote reports whether the artifact points at a remote URL rather
// than a file in managed storage.
func (a *Artifact) IsRemote() bool {
	return strings.HasPrefix(a.Path, "http://") || strings.HasPrefix(a.Path, "https://")
}

// ArtifactKind distinguishes the two artifact slots on a project.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
	ArtifactModel ArtifactKind = "model"
)

// Project represents a floor-plan conversion project owned by a single user.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id"`
	Status      ProjectStatus `json:"status"`
	Tags        []string      `json:"tags,omitempty"`
	Image       *Artifact     `json:"image,omitempty"`
	ModelFile   *Artifact     `json:"model_file,omitempty"`
	// Version increments on every successful write. Updates carrying a
	// stale version are rejected with a conflict.
	Version   int          `json:"version"`
	IsDeleted bool         `json:"is_deleted"`
	AuditLog  []AuditEntry `json:"audit_log,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewProject creates a new Project in the pending state.
func NewProject(ownerID, name, description string, tags []string) *Project {
	now := time.Now()
	return &Project{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Status:      StatusPending,
		Tags:        tags,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ArtifactSize returns the combined size in bytes of both artifacts.
func (p *Project) ArtifactSize() int64 {
	var total int64
	if p.Image != nil {
		total += p.Image.Size
	}
	if p.ModelFile != nil {
		total += p.ModelFile.Size
	}
	return total
}

// AuditEntry is one immutable record in a project's append-only audit
// trail. Ordering is append order, which matches chronological order.
type AuditEntry struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"-"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Details     string    `json:"details,omitempty"`
}

// NewAuditEntry creates an audit entry timestamped now.
func NewAuditEntry(projectID, action, performedBy, details string) AuditEntry {
	return AuditEntry{
		ProjectID:   projectID,
		Action:      action,
		PerformedBy: performedBy,
		PerformedAt: time.Now(),
		Details:     details,
	}
}

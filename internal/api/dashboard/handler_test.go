package dashboard

import (
	"testing"
	"time"

	"github.com/kaira-dev/kaira/internal/models"
)

func project(status models.ProjectStatus, age time.Duration, artifactBytes int64) *models.Project {
	p := models.NewProject("owner-1", "p", "", nil)
	p.Status = status
	p.CreatedAt = time.Now().Add(-age)
	if artifactBytes > 0 {
		p.Image = &models.Artifact{Path: "/uploads/images/a.png", Size: artifactBytes}
	}
	return p
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	projects := []*models.Project{
		project(models.StatusActive, 2*24*time.Hour, 1024),       // active, recent
		project(models.StatusActive, 10*24*time.Hour, 2048),      // active, old
		project(models.StatusPending, 24*time.Hour, 0),           // pending, recent
		project(models.StatusCompleted, 30*24*time.Hour, 512000), // completed, old
	}

	got := Summarize(projects, now)

	if got.TotalProjects != 4 {
		t.Errorf("total = %d, want 4", got.TotalProjects)
	}
	if got.ActiveProjects != 2 {
		t.Errorf("active = %d, want 2", got.ActiveProjects)
	}
	if got.CompletedProjects != 1 {
		t.Errorf("completed = %d, want 1", got.CompletedProjects)
	}
	if got.CreatedLastWeek != 2 {
		t.Errorf("created last week = %d, want 2", got.CreatedLastWeek)
	}
	if got.ActiveCreatedLastWeek != 1 {
		t.Errorf("active created last week = %d, want 1", got.ActiveCreatedLastWeek)
	}
	if want := int64(1024 + 2048 + 512000); got.StorageBytes != want {
		t.Errorf("storage bytes = %d, want %d", got.StorageBytes, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil, time.Now())
	if got.TotalProjects != 0 || got.ActiveProjects != 0 || got.CreatedLastWeek != 0 {
		t.Errorf("empty summary has nonzero counts: %+v", got)
	}
	if got.StorageUsed != "0 B" {
		t.Errorf("storage used = %q, want 0 B", got.StorageUsed)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tc := range tests {
		if got := humanSize(tc.n); got != tc.want {
			t.Errorf("humanSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/models"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "kaira-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")

	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("open database: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("migrate database: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func newTestUser(t *testing.T, store *SQLiteStorage, username string) *models.User {
	t.Helper()

	user := models.NewUser(username, models.RoleUser)
	user.ID = uuid.New().String()
	user.PasswordHash = "hashed-password"
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func newTestProject(t *testing.T, store *SQLiteStorage, ownerID, name string) *models.Project {
	t.Helper()

	project := models.NewProject(ownerID, name, "test project", []string{"test"})
	entry := models.NewAuditEntry("", "Created", ownerID, "Project created")
	if err := store.Projects().Create(context.Background(), project, entry); err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return project
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tables := []string{"users", "profiles", "projects", "audit_logs", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "alice")

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user by id: %v", err)
	}
	if got == nil {
		t.Fatal("user should exist")
	}
	if got.Username != "alice" {
		t.Errorf("username = %v, want alice", got.Username)
	}
	if got.IsLoggedIn {
		t.Error("new user should not be logged in")
	}
	if got.LastLogin != nil {
		t.Error("new user should have no last login")
	}

	got, err = store.Users().GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatal("lookup by username should find the same user")
	}

	// Missing user resolves to nil, nil
	got, err = store.Users().GetByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if got != nil {
		t.Error("missing user should be nil")
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	newTestUser(t, store, "alice")

	dup := models.NewUser("alice", models.RoleUser)
	dup.ID = uuid.New().String()
	dup.PasswordHash = "other-hash"
	err := store.Users().Create(context.Background(), dup)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestUserRepository_SetLoginState(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "alice")
	loginAt := time.Now()

	if err := store.Users().SetLoginState(ctx, user.ID, true, loginAt); err != nil {
		t.Fatalf("mark logged in: %v", err)
	}

	got, err := store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.IsLoggedIn {
		t.Error("user should be logged in")
	}
	if got.LastLogin == nil {
		t.Fatal("last login should be set")
	}

	if err := store.Users().SetLoginState(ctx, user.ID, false, time.Now()); err != nil {
		t.Fatalf("mark logged out: %v", err)
	}

	got, err = store.Users().GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.IsLoggedIn {
		t.Error("user should be logged out")
	}
	if got.LastLogin == nil {
		t.Error("logout must not clear last login")
	}

	err = store.Users().SetLoginState(ctx, "no-such-id", true, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileRepository_CRUD(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, store, "alice")

	got, err := store.Profiles().GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get missing profile: %v", err)
	}
	if got != nil {
		t.Fatal("profile should not exist yet")
	}

	profile := models.NewProfile(user.ID, user.Username)
	if err := store.Profiles().Create(ctx, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	got, err = store.Profiles().GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got == nil {
		t.Fatal("profile should exist")
	}
	if got.FirstName != models.DefaultFirstName || got.LastName != models.DefaultLastName {
		t.Errorf("defaults = %s %s, want %s %s",
			got.FirstName, got.LastName, models.DefaultFirstName, models.DefaultLastName)
	}

	got.FirstName = "Ada"
	got.Country = "Sweden"
	got.UpdatedAt = time.Now()
	if err := store.Profiles().Update(ctx, got); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	got, err = store.Profiles().GetByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if got.FirstName != "Ada" || got.Country != "Sweden" {
		t.Errorf("update not applied: %s / %s", got.FirstName, got.Country)
	}

	// One profile per user
	err = store.Profiles().Create(ctx, models.NewProfile(user.ID, user.Username))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestProjectRepository_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, store, "alice")
	project := newTestProject(t, store, owner.ID, "Atrium")

	got, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got == nil {
		t.Fatal("project should exist")
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %v, want pending", got.Status)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "test" {
		t.Errorf("tags = %v, want [test]", got.Tags)
	}
	if len(got.AuditLog) != 1 || got.AuditLog[0].Action != "Created" {
		t.Fatalf("audit log = %+v, want single Created entry", got.AuditLog)
	}

	got, err = store.Projects().GetByName(ctx, "Atrium")
	if err != nil {
		t.Fatalf("get project by name: %v", err)
	}
	if got == nil || got.ID != project.ID {
		t.Fatal("lookup by name should find the same project")
	}
}

func TestProjectRepository_DuplicateName(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, store, "alice")
	newTestProject(t, store, owner.ID, "Atrium")

	exists, err := store.Projects().NameExists(ctx, "Atrium")
	if err != nil {
		t.Fatalf("name exists: %v", err)
	}
	if !exists {
		t.Error("NameExists should report true for taken name")
	}

	dup := models.NewProject(owner.ID, "Atrium", "second attempt", nil)
	entry := models.NewAuditEntry("", "Created", owner.ID, "")
	err = store.Projects().Create(ctx, dup, entry)
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	// Failed create must not leave audit entries behind
	got, err := store.Projects().GetByID(ctx, dup.ID)
	if err != nil {
		t.Fatalf("get duplicate project: %v", err)
	}
	if got != nil {
		t.Error("duplicate project must not be persisted")
	}
}

func TestProjectRepository_UpdateAppendsAudit(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, store, "alice")
	project := newTestProject(t, store, owner.ID, "Atrium")

	project.Status = models.StatusActive
	project.ModelFile = &models.Artifact{
		Path: "uploads/models/atrium.glb", OriginalName: "atrium.glb",
		Size: 2048, ContentType: "glb",
	}
	project.UpdatedAt = time.Now()
	entries := []models.AuditEntry{
		models.NewAuditEntry(project.ID, "Uploaded model", "system", "atrium.glb"),
	}
	if err := store.Projects().Update(ctx, project, entries); err != nil {
		t.Fatalf("update project: %v", err)
	}

	if project.Version != 2 {
		t.Errorf("version = %d, want 2 after update", project.Version)
	}

	got, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if got.Status != models.StatusActive {
		t.Errorf("status = %v, want active", got.Status)
	}
	if got.ModelFile == nil || got.ModelFile.Size != 2048 {
		t.Errorf("model artifact not persisted: %+v", got.ModelFile)
	}
	if got.Version != 2 {
		t.Errorf("stored version = %d, want 2", got.Version)
	}
	if len(got.AuditLog) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(got.AuditLog))
	}
	if got.AuditLog[1].Action != "Uploaded model" {
		t.Errorf("last audit action = %q, want Uploaded model", got.AuditLog[1].Action)
	}
}

func TestProjectRepository_StaleVersionConflict(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, store, "alice")
	project := newTestProject(t, store, owner.ID, "Atrium")

	stale, err := store.Projects().GetByID(ctx, project.ID)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}

	project.Description = "first writer"
	project.UpdatedAt = time.Now()
	if err := store.Projects().Update(ctx, project, nil); err != nil {
		t.Fatalf("first update: %v", err)
	}

	stale.Description = "second writer"
	stale.UpdatedAt = time.Now()
	err = store.Projects().Update(ctx, stale, nil)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}

	missing := models.NewProject(owner.ID, "Ghost", "", nil)
	missing.ID = uuid.New().String()
	err = store.Projects().Update(ctx, missing, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProjectRepository_ListByOwnerExcludesDeleted(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, store, "alice")
	other := newTestUser(t, store, "bob")

	first := newTestProject(t, store, owner.ID, "Atrium")
	second := newTestProject(t, store, owner.ID, "Loft")
	newTestProject(t, store, other.ID, "Garage")

	// Touch the first project so ordering by updated_at is observable.
	first.Description = "touched"
	first.UpdatedAt = time.Now().Add(time.Second)
	if err := store.Projects().Update(ctx, first, nil); err != nil {
		t.Fatalf("touch project: %v", err)
	}

	projects, err := store.Projects().ListByOwner(ctx, owner.ID, false)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("projects = %d, want 2", len(projects))
	}
	if projects[0].ID != first.ID {
		t.Errorf("most recently updated project should come first")
	}

	// Soft delete one
	second.IsDeleted = true
	second.UpdatedAt = time.Now()
	if err := store.Projects().Update(ctx, second, nil); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	projects, err = store.Projects().ListByOwner(ctx, owner.ID, false)
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != first.ID {
		t.Fatalf("soft-deleted project should be excluded, got %d", len(projects))
	}

	// Still addressable by id and flagged deleted
	got, err := store.Projects().GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("get deleted project: %v", err)
	}
	if got == nil || !got.IsDeleted {
		t.Error("deleted project should remain addressable with is_deleted set")
	}

	all, err := store.Projects().ListByOwner(ctx, owner.ID, true)
	if err != nil {
		t.Fatalf("list with deleted: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("includeDeleted list = %d, want 2", len(all))
	}
}

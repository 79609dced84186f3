package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kaira-dev/kaira/internal/api/middleware"
	"github.com/kaira-dev/kaira/internal/models"
	"github.com/kaira-dev/kaira/internal/storage"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) SetLoginState(_ context.Context, id string, loggedIn bool, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsLoggedIn = loggedIn
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

type mockProfileRepo struct {
	profiles map[string]*models.Profile // keyed by user id
}

func (m *mockProfileRepo) Create(_ context.Context, profile *models.Profile) error {
	if _, ok := m.profiles[profile.UserID]; ok {
		return storage.ErrDuplicate
	}
	c := *profile
	m.profiles[profile.UserID] = &c
	return nil
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *mockProfileRepo) Update(_ context.Context, profile *models.Profile) error {
	if _, ok := m.profiles[profile.UserID]; !ok {
		return storage.ErrNotFound
	}
	c := *profile
	m.profiles[profile.UserID] = &c
	return nil
}

type mockStorage struct {
	users    *mockUserRepo
	profiles *mockProfileRepo
}

func (m *mockStorage) Open() error                         { return nil }
func (m *mockStorage) Close() error                        { return nil }
func (m *mockStorage) Migrate() error                      { return nil }
func (m *mockStorage) EnsureAdminUser() error              { return nil }
func (m *mockStorage) Users() storage.UserRepository       { return m.users }
func (m *mockStorage) Profiles() storage.ProfileRepository { return m.profiles }
func (m *mockStorage) Projects() storage.ProjectRepository { return nil }

func newTestHandler() (*Handler, *mockStorage) {
	store := &mockStorage{
		users:    &mockUserRepo{users: make(map[string]*models.User)},
		profiles: &mockProfileRepo{profiles: make(map[string]*models.Profile)},
	}
	store.users.users["user-1"] = &models.User{ID: "user-1", Username: "kaira_fan", Role: models.RoleUser}
	return NewHandler(store), store
}

func doRequest(h http.HandlerFunc, method, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/profile", strings.NewReader(body))
	req = req.WithContext(middleware.WithUser(req.Context(), userID, models.RoleUser))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeProfile(t *testing.T, rec *httptest.ResponseRecorder) *ProfileResponse {
	t.Helper()
	var resp struct {
		Data *ProfileResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func TestGetProfileLazyCreate(t *testing.T) {
	h, store := newTestHandler()

	rec := doRequest(h.GetProfile, http.MethodGet, "", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeProfile(t, rec)
	if got.Username != "kaira_fan" {
		t.Errorf("username = %q", got.Username)
	}
	if got.FirstName != models.DefaultFirstName || got.LastName != models.DefaultLastName {
		t.Errorf("name = %q %q, want placeholder defaults", got.FirstName, got.LastName)
	}
	if got.Email != models.DefaultEmail {
		t.Errorf("email = %q", got.Email)
	}
	if got.Phone != models.DefaultPhone {
		t.Errorf("phone = %q", got.Phone)
	}

	// The profile must be persisted, not rebuilt per request
	if store.profiles.profiles["user-1"] == nil {
		t.Error("profile was not persisted")
	}
}

func TestGetProfileExisting(t *testing.T) {
	h, store := newTestHandler()
	store.profiles.profiles["user-1"] = &models.Profile{
		ID: "p1", UserID: "user-1", Username: "kaira_fan",
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Phone: "555-0100",
	}

	rec := doRequest(h.GetProfile, http.MethodGet, "", "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeProfile(t, rec)
	if got.FirstName != "Ada" || got.Email != "ada@example.com" {
		t.Errorf("existing profile not returned: %+v", got)
	}
}

func TestGetProfileUnknownUser(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.GetProfile, http.MethodGet, "", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateProfileSparse(t *testing.T) {
	h, store := newTestHandler()
	store.profiles.profiles["user-1"] = &models.Profile{
		ID: "p1", UserID: "user-1", Username: "kaira_fan",
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Phone: "555-0100",
	}

	body := `{"email": "countess@example.com", "country": "UK", "date_of_birth": "1815-12-10"}`
	rec := doRequest(h.UpdateProfile, http.MethodPut, body, "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got := decodeProfile(t, rec)
	if got.Email != "countess@example.com" {
		t.Errorf("email = %q", got.Email)
	}
	if got.Country != "UK" {
		t.Errorf("country = %q", got.Country)
	}
	if got.DateOfBirth != "1815-12-10" {
		t.Errorf("date_of_birth = %q", got.DateOfBirth)
	}
	// Untouched fields keep their values
	if got.FirstName != "Ada" || got.Phone != "555-0100" {
		t.Errorf("sparse update clobbered fields: %+v", got)
	}
}

func TestUpdateProfileValidation(t *testing.T) {
	h, store := newTestHandler()
	store.profiles.profiles["user-1"] = &models.Profile{
		ID: "p1", UserID: "user-1", Username: "kaira_fan",
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Phone: "555-0100",
	}

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad email", `{"email": "not-an-email"}`},
		{"bad date", `{"date_of_birth": "12/10/1815"}`},
		{"future date", `{"date_of_birth": "2999-01-01"}`},
		{"long first name", `{"first_name": "` + strings.Repeat("a", 101) + `"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(h.UpdateProfile, http.MethodPut, tc.body, "user-1")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUpdateProfileMissing(t *testing.T) {
	h, _ := newTestHandler()

	rec := doRequest(h.UpdateProfile, http.MethodPut, `{"country": "UK"}`, "user-1")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

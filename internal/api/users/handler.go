package users

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kaira-dev/kaira/internal/api/middleware"
	"github.com/kaira-dev/kaira/internal/models"
	"github.com/kaira-dev/kaira/internal/storage"
)

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
	errCodeInternalError    = "INTERNAL_ERROR"
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

// ProfileResponse is a profile as returned by the API.
type ProfileResponse struct {
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Gender            string `json:"gender,omitempty"`
	DateOfBirth       string `json:"date_of_birth,omitempty"`
	Country           string `json:"country,omitempty"`
	Address           string `json:"address,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
	Avatar            string `json:"avatar,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}

// UpdateProfileRequest carries a sparse profile update. Empty fields are
// left unchanged.
type UpdateProfileRequest struct {
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Gender            string `json:"gender,omitempty"`
	DateOfBirth       string `json:"date_of_birth,omitempty"`
	Country           string `json:"country,omitempty"`
	Address           string `json:"address,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
	Avatar            string `json:"avatar,omitempty"`
}

// Handler serves profile endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a profile handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// GetProfile returns the caller's profile, creating one with placeholder
// defaults on first access.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	profile, err := h.storage.Profiles().GetByUserID(ctx, userID)
	if err != nil {
		log.Printf("get profile error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if profile == nil {
		user, err := h.storage.Users().GetByID(ctx, userID)
		if err != nil {
			log.Printf("get profile error: load user: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
			return
		}

		profile = models.NewProfile(user.ID, user.Username)
		if err := h.storage.Profiles().Create(ctx, profile); err != nil {
			log.Printf("get profile error: create: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		log.Printf("profile created for user %s", user.Username)
	}

	jsonOK(w, profileToResponse(profile))
}

// UpdateProfile applies a sparse update to the caller's profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	profile, err := h.storage.Profiles().GetByUserID(ctx, userID)
	if err != nil {
		log.Printf("update profile error: get: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if profile == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "profile not found")
		return
	}

	if req.FirstName != "" {
		if err := ValidateName("first_name", req.FirstName); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		profile.FirstName = strings.TrimSpace(req.FirstName)
	}
	if req.LastName != "" {
		if err := ValidateName("last_name", req.LastName); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		profile.LastName = strings.TrimSpace(req.LastName)
	}
	if req.Email != "" {
		if err := ValidateEmail(req.Email); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		profile.Email = strings.TrimSpace(req.Email)
	}
	if req.Phone != "" {
		profile.Phone = strings.TrimSpace(req.Phone)
	}
	if req.Gender != "" {
		profile.Gender = strings.TrimSpace(req.Gender)
	}
	if req.DateOfBirth != "" {
		dob, err := ParseDateOfBirth(req.DateOfBirth)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		profile.DateOfBirth = &dob
	}
	if req.Country != "" {
		profile.Country = strings.TrimSpace(req.Country)
	}
	if req.Address != "" {
		profile.Address = strings.TrimSpace(req.Address)
	}
	if req.PreferredLanguage != "" {
		profile.PreferredLanguage = strings.TrimSpace(req.PreferredLanguage)
	}
	if req.Avatar != "" {
		profile.Avatar = strings.TrimSpace(req.Avatar)
	}

	profile.UpdatedAt = time.Now()

	if err := h.storage.Profiles().Update(ctx, profile); err != nil {
		log.Printf("update profile error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("profile updated for user %s", profile.Username)
	jsonOK(w, profileToResponse(profile))
}

func profileToResponse(p *models.Profile) *ProfileResponse {
	resp := &ProfileResponse{
		UserID:            p.UserID,
		Username:          p.Username,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		Email:             p.Email,
		Phone:             p.Phone,
		Gender:            p.Gender,
		Country:           p.Country,
		Address:           p.Address,
		PreferredLanguage: p.PreferredLanguage,
		Avatar:            p.Avatar,
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
	if p.DateOfBirth != nil {
		resp.DateOfBirth = p.DateOfBirth.Format("2006-01-02")
	}
	return resp
}

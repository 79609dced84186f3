package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/models"
)

type sqliteProfileRepo struct {
	db *sql.DB
}

func (r *sqliteProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}

	query := `
		INSERT INTO profiles (id, user_id, username, first_name, last_name, email, phone,
			gender, date_of_birth, country, address, preferred_language, avatar,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.UserID, profile.Username,
		profile.FirstName, profile.LastName, profile.Email, profile.Phone,
		nullString(profile.Gender), nullTime(profile.DateOfBirth),
		nullString(profile.Country), nullString(profile.Address),
		nullString(profile.PreferredLanguage), nullString(profile.Avatar),
		profile.CreatedAt, profile.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT id, user_id, username, first_name, last_name, email, phone,
			gender, date_of_birth, country, address, preferred_language, avatar,
			created_at, updated_at
		FROM profiles WHERE user_id = ?
	`
	profile := &models.Profile{}
	var gender, country, address, language, avatar sql.NullString
	var dob sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID, &profile.UserID, &profile.Username,
		&profile.FirstName, &profile.LastName, &profile.Email, &profile.Phone,
		&gender, &dob, &country, &address, &language, &avatar,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by user id: %w", err)
	}
	profile.Gender = gender.String
	profile.Country = country.String
	profile.Address = address.String
	profile.PreferredLanguage = language.String
	profile.Avatar = avatar.String
	if dob.Valid {
		profile.DateOfBirth = &dob.Time
	}
	return profile, nil
}

func (r *sqliteProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	query := `
		UPDATE profiles SET first_name = ?, last_name = ?, email = ?, phone = ?,
			gender = ?, date_of_birth = ?, country = ?, address = ?,
			preferred_language = ?, avatar = ?, updated_at = ?
		WHERE user_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		profile.FirstName, profile.LastName, profile.Email, profile.Phone,
		nullString(profile.Gender), nullTime(profile.DateOfBirth),
		nullString(profile.Country), nullString(profile.Address),
		nullString(profile.PreferredLanguage), nullString(profile.Avatar),
		profile.UpdatedAt, profile.UserID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

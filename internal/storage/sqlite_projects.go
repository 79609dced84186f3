package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, name, description, owner_id, status, tags_json,
	image_path, image_name, image_size, image_type,
	model_path, model_name, model_size, model_format,
	version, is_deleted, created_at, updated_at`

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project, entry models.AuditEntry) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	tagsJSON, err := marshalTags(project.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	imagePath, imageName, imageSize, imageType := artifactColumns(project.Image)
	modelPath, modelName, modelSize, modelFormat := artifactColumns(project.ModelFile)

	_, err = tx.ExecContext(ctx, query,
		project.ID, project.Name, nullString(project.Description),
		project.OwnerID, project.Status, tagsJSON,
		imagePath, imageName, imageSize, imageType,
		modelPath, modelName, modelSize, modelFormat,
		project.Version, boolToInt(project.IsDeleted),
		project.CreatedAt, project.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	entry.ProjectID = project.ID
	if err := insertAuditEntry(ctx, tx, &entry); err != nil {
		return err
	}
	project.AuditLog = append(project.AuditLog, entry)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return r.getBy(ctx, "id", id)
}

func (r *sqliteProjectRepo) GetByName(ctx context.Context, name string) (*models.Project, error) {
	return r.getBy(ctx, "name", name)
}

func (r *sqliteProjectRepo) getBy(ctx context.Context, column, value string) (*models.Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE %s = ?", projectColumns, column)

	row := r.db.QueryRowContext(ctx, query, value)
	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by %s: %w", column, err)
	}

	if err := r.loadAuditLog(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (r *sqliteProjectRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check project name: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteProjectRepo) ListByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE owner_id = ?", projectColumns)
	if !includeDeleted {
		query += " AND is_deleted = 0"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project, entries []models.AuditEntry) error {
	tagsJSON, err := marshalTags(project.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update project: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE projects SET name = ?, description = ?, status = ?, tags_json = ?,
			image_path = ?, image_name = ?, image_size = ?, image_type = ?,
			model_path = ?, model_name = ?, model_size = ?, model_format = ?,
			version = version + 1, is_deleted = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	imagePath, imageName, imageSize, imageType := artifactColumns(project.Image)
	modelPath, modelName, modelSize, modelFormat := artifactColumns(project.ModelFile)

	result, err := tx.ExecContext(ctx, query,
		project.Name, nullString(project.Description), project.Status, tagsJSON,
		imagePath, imageName, imageSize, imageType,
		modelPath, modelName, modelSize, modelFormat,
		boolToInt(project.IsDeleted), project.UpdatedAt,
		project.ID, project.Version,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either the project is gone or the caller read a stale version.
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM projects WHERE id = ?", project.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check project exists: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	for i := range entries {
		entries[i].ProjectID = project.ID
		if err := insertAuditEntry(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update project: %w", err)
	}

	project.Version++
	project.AuditLog = append(project.AuditLog, entries...)
	return nil
}

func (r *sqliteProjectRepo) loadAuditLog(ctx context.Context, project *models.Project) error {
	query := `
		SELECT id, project_id, action, performed_by, performed_at, details
		FROM audit_logs WHERE project_id = ?
		ORDER BY performed_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, project.ID)
	if err != nil {
		return fmt.Errorf("load audit log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.AuditEntry
		var details sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.ProjectID, &entry.Action,
			&entry.PerformedBy, &entry.PerformedAt, &details,
		); err != nil {
			return fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Details = details.String
		project.AuditLog = append(project.AuditLog, entry)
	}
	return rows.Err()
}

func insertAuditEntry(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, project_id, action, performed_by, performed_at, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ProjectID, entry.Action, entry.PerformedBy, entry.PerformedAt,
		nullString(entry.Details))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.Project, error) {
	project := &models.Project{}
	var description, tagsJSON sql.NullString
	var imagePath, imageName, imageType sql.NullString
	var modelPath, modelName, modelFormat sql.NullString
	var imageSize, modelSize int64
	var deleted int

	err := s.Scan(
		&project.ID, &project.Name, &description, &project.OwnerID,
		&project.Status, &tagsJSON,
		&imagePath, &imageName, &imageSize, &imageType,
		&modelPath, &modelName, &modelSize, &modelFormat,
		&project.Version, &deleted, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.Description = description.String
	project.IsDeleted = deleted != 0

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &project.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	if imagePath.Valid {
		project.Image = &models.Artifact{
			Path:         imagePath.String,
			OriginalName: imageName.String,
			Size:         imageSize,
			ContentType:  imageType.String,
		}
	}
	if modelPath.Valid {
		project.ModelFile = &models.Artifact{
			Path:         modelPath.String,
			OriginalName: modelName.String,
			Size:         modelSize,
			ContentType:  modelFormat.String,
		}
	}

	return project, nil
}

func artifactColumns(a *models.Artifact) (path, name sql.NullString, size int64, contentType sql.NullString) {
	if a == nil {
		return sql.NullString{}, sql.NullString{}, 0, sql.NullString{}
	}
	return sql.NullString{String: a.Path, Valid: true},
		nullString(a.OriginalName), a.Size, nullString(a.ContentType)
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal tags: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

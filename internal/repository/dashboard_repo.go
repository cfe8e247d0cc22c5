// Package repository provides data access for dashboards and folders.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/querystream-gateway/backend/internal/model"
)

// DashboardRepository provides data access for dashboards, folders and
// ownership bookkeeping, all scoped by organization.
type DashboardRepository struct {
	db *sql.DB
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(db *sql.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// SaveDashboard inserts or replaces a dashboard.
func (r *DashboardRepository) SaveDashboard(ctx context.Context, d *model.Dashboard) error {
	query := `
		INSERT INTO dashboards (org_id, dashboard_id, folder_id, title, description, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, dashboard_id) DO UPDATE SET
			folder_id = excluded.folder_id,
			title = excluded.title,
			description = excluded.description,
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		d.OrgID,
		d.DashboardID,
		d.FolderID,
		d.Title,
		d.Description,
		string(d.Data),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save dashboard: %w", err)
	}
	return nil
}

// GetDashboard retrieves a dashboard by id within an organization.
func (r *DashboardRepository) GetDashboard(ctx context.Context, orgID, dashboardID string) (*model.Dashboard, error) {
	query := `
		SELECT org_id, dashboard_id, folder_id, title, description, data, created_at, updated_at
		FROM dashboards
		WHERE org_id = ? AND dashboard_id = ?
	`

	d := &model.Dashboard{}
	var description sql.NullString
	var data string

	err := r.db.QueryRowContext(ctx, query, orgID, dashboardID).Scan(
		&d.OrgID,
		&d.DashboardID,
		&d.FolderID,
		&d.Title,
		&description,
		&data,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrDashboardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}

	if description.Valid {
		d.Description = description.String
	}
	d.Data = []byte(data)
	return d, nil
}

// ListDashboards retrieves all dashboards in a folder, newest first.
func (r *DashboardRepository) ListDashboards(ctx context.Context, orgID, folderID string) ([]*model.Dashboard, error) {
	query := `
		SELECT org_id, dashboard_id, folder_id, title, description, data, created_at, updated_at
		FROM dashboards
		WHERE org_id = ? AND folder_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	var dashboards []*model.Dashboard
	for rows.Next() {
		d := &model.Dashboard{}
		var description sql.NullString
		var data string

		if err := rows.Scan(
			&d.OrgID,
			&d.DashboardID,
			&d.FolderID,
			&d.Title,
			&description,
			&data,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}

		if description.Valid {
			d.Description = description.String
		}
		d.Data = []byte(data)
		dashboards = append(dashboards, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboards: %w", err)
	}
	return dashboards, nil
}

// DeleteDashboard removes a dashboard.
func (r *DashboardRepository) DeleteDashboard(ctx context.Context, orgID, dashboardID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dashboards WHERE org_id = ? AND dashboard_id = ?`, orgID, dashboardID)
	if err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	if n == 0 {
		return model.ErrDashboardNotFound
	}
	return nil
}

// MoveDashboard reassigns a dashboard to another folder.
func (r *DashboardRepository) MoveDashboard(ctx context.Context, orgID, dashboardID, toFolderID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dashboards SET folder_id = ?, updated_at = ? WHERE org_id = ? AND dashboard_id = ?`,
		toFolderID, time.Now().UTC(), orgID, dashboardID)
	if err != nil {
		return fmt.Errorf("failed to move dashboard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to move dashboard: %w", err)
	}
	if n == 0 {
		return model.ErrDashboardNotFound
	}
	return nil
}

// FolderExists reports whether a folder exists within an organization.
func (r *DashboardRepository) FolderExists(ctx context.Context, orgID, folderID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM folders WHERE org_id = ? AND folder_id = ?`, orgID, folderID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check folder existence: %w", err)
	}
	return true, nil
}

// SaveFolder inserts a folder. Inserting an existing folder id fails unless
// replace is set.
func (r *DashboardRepository) SaveFolder(ctx context.Context, orgID string, folder *model.Folder, replace bool) error {
	if !replace {
		exists, err := r.FolderExists(ctx, orgID, folder.FolderID)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrFolderExists
		}
	}

	query := `
		INSERT INTO folders (org_id, folder_id, name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (org_id, folder_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, folder.FolderID, folder.Name, folder.Description); err != nil {
		return fmt.Errorf("failed to save folder: %w", err)
	}
	return nil
}

// GetFolder retrieves a folder by id within an organization.
func (r *DashboardRepository) GetFolder(ctx context.Context, orgID, folderID string) (*model.Folder, error) {
	f := &model.Folder{}
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT folder_id, name, description FROM folders WHERE org_id = ? AND folder_id = ?`,
		orgID, folderID).Scan(&f.FolderID, &f.Name, &description)
	if err == sql.ErrNoRows {
		return nil, model.ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	if description.Valid {
		f.Description = description.String
	}
	return f, nil
}

// ListFolders retrieves all folders of an organization ordered by name.
func (r *DashboardRepository) ListFolders(ctx context.Context, orgID string) ([]*model.Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT folder_id, name, description FROM folders WHERE org_id = ? ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		f := &model.Folder{}
		var description sql.NullString
		if err := rows.Scan(&f.FolderID, &f.Name, &description); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		if description.Valid {
			f.Description = description.String
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}

// DeleteFolder removes an empty folder. Deleting a folder that still holds
// dashboards is rejected.
func (r *DashboardRepository) DeleteFolder(ctx context.Context, orgID, folderID string) error {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dashboards WHERE org_id = ? AND folder_id = ?`, orgID, folderID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count folder dashboards: %w", err)
	}
	if count > 0 {
		return model.ErrFolderNotEmpty
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM folders WHERE org_id = ? AND folder_id = ?`, orgID, folderID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if n == 0 {
		return model.ErrFolderNotFound
	}
	return nil
}

// SetOwnership records the parent relation of an object for authorization
// bookkeeping.
func (r *DashboardRepository) SetOwnership(ctx context.Context, orgID, objectType, objectID, parentType, parentID string) error {
	query := `
		INSERT INTO ownership (org_id, object_type, object_id, parent_type, parent_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (org_id, object_type, object_id) DO UPDATE SET
			parent_type = excluded.parent_type,
			parent_id = excluded.parent_id
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, objectType, objectID, parentType, parentID); err != nil {
		return fmt.Errorf("failed to set ownership: %w", err)
	}
	return nil
}

// RemoveOwnership drops the ownership record of an object.
func (r *DashboardRepository) RemoveOwnership(ctx context.Context, orgID, objectType, objectID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM ownership WHERE org_id = ? AND object_type = ? AND object_id = ?`,
		orgID, objectType, objectID); err != nil {
		return fmt.Errorf("failed to remove ownership: %w", err)
	}
	return nil
}

// Package dashboards implements dashboard and folder management on top of
// the repository layer: server-side id generation, default folder creation
// and ownership bookkeeping.
package dashboards

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/querystream-gateway/backend/internal/model"
	"github.com/querystream-gateway/backend/internal/repository"
)

const (
	objectTypeDashboard = "dashboards"
	parentTypeFolder    = "folders"
)

// Service manages dashboards and folders for all organizations.
type Service struct {
	repo *repository.DashboardRepository
}

// NewService creates a new dashboard service.
func NewService(repo *repository.DashboardRepository) *Service {
	return &Service{repo: repo}
}

// dashboardMeta is the subset of the client-supplied definition the gateway
// lifts into columns.
type dashboardMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateDashboard stores a new dashboard in the folder. The server generates
// the dashboard id, overwriting whatever id the client sent. Saving into a
// missing default folder creates the folder first; any other missing folder
// is an error.
func (s *Service) CreateDashboard(ctx context.Context, orgID, folderID string, data json.RawMessage) (*model.Dashboard, error) {
	exists, err := s.repo.FolderExists(ctx, orgID, folderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		if folderID != model.DefaultFolder {
			return nil, model.ErrFolderNotFound
		}
		folder := model.NewDefaultFolder()
		if err := s.repo.SaveFolder(ctx, orgID, &folder, true); err != nil {
			return nil, err
		}
	}

	var meta dashboardMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &model.Dashboard{
		DashboardID: uuid.New().String(),
		OrgID:       orgID,
		FolderID:    folderID,
		Title:       meta.Title,
		Description: meta.Description,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SaveDashboard(ctx, d); err != nil {
		return nil, err
	}
	if err := s.repo.SetOwnership(ctx, orgID, objectTypeDashboard, d.DashboardID, parentTypeFolder, folderID); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDashboard replaces an existing dashboard's definition in place.
func (s *Service) UpdateDashboard(ctx context.Context, orgID, dashboardID string, data json.RawMessage) (*model.Dashboard, error) {
	existing, err := s.repo.GetDashboard(ctx, orgID, dashboardID)
	if err != nil {
		return nil, err
	}

	var meta dashboardMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	existing.Title = meta.Title
	existing.Description = meta.Description
	existing.Data = data
	existing.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveDashboard(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// GetDashboard retrieves one dashboard.
func (s *Service) GetDashboard(ctx context.Context, orgID, dashboardID string) (*model.Dashboard, error) {
	return s.repo.GetDashboard(ctx, orgID, dashboardID)
}

// ListDashboards lists the dashboards of a folder.
func (s *Service) ListDashboards(ctx context.Context, orgID, folderID string) ([]*model.Dashboard, error) {
	return s.repo.ListDashboards(ctx, orgID, folderID)
}

// DeleteDashboard removes a dashboard and its ownership record.
func (s *Service) DeleteDashboard(ctx context.Context, orgID, dashboardID string) error {
	if err := s.repo.DeleteDashboard(ctx, orgID, dashboardID); err != nil {
		return err
	}
	return s.repo.RemoveOwnership(ctx, orgID, objectTypeDashboard, dashboardID)
}

// MoveDashboard reassigns a dashboard to another existing folder and updates
// its ownership record.
func (s *Service) MoveDashboard(ctx context.Context, orgID, dashboardID, toFolderID string) error {
	exists, err := s.repo.FolderExists(ctx, orgID, toFolderID)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrFolderNotFound
	}
	if err := s.repo.MoveDashboard(ctx, orgID, dashboardID, toFolderID); err != nil {
		return err
	}
	return s.repo.SetOwnership(ctx, orgID, objectTypeDashboard, dashboardID, parentTypeFolder, toFolderID)
}

// CreateFolder stores a new folder, generating its id server-side.
func (s *Service) CreateFolder(ctx context.Context, orgID string, folder model.Folder) (*model.Folder, error) {
	folder.FolderID = uuid.New().String()
	if err := s.repo.SaveFolder(ctx, orgID, &folder, false); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdateFolder replaces the name and description of an existing folder.
func (s *Service) UpdateFolder(ctx context.Context, orgID, folderID string, folder model.Folder) (*model.Folder, error) {
	if _, err := s.repo.GetFolder(ctx, orgID, folderID); err != nil {
		return nil, err
	}
	folder.FolderID = folderID
	if err := s.repo.SaveFolder(ctx, orgID, &folder, true); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetFolder retrieves one folder.
func (s *Service) GetFolder(ctx context.Context, orgID, folderID string) (*model.Folder, error) {
	return s.repo.GetFolder(ctx, orgID, folderID)
}

// ListFolders lists the folders of an organization.
func (s *Service) ListFolders(ctx context.Context, orgID string) ([]*model.Folder, error) {
	return s.repo.ListFolders(ctx, orgID)
}

// DeleteFolder removes an empty folder.
func (s *Service) DeleteFolder(ctx context.Context, orgID, folderID string) error {
	return s.repo.DeleteFolder(ctx, orgID, folderID)
}

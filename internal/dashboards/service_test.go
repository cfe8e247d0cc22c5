package dashboards

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querystream-gateway/backend/internal/db"
	"github.com/querystream-gateway/backend/internal/model"
	"github.com/querystream-gateway/backend/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.DashboardRepository) {
	t.Helper()
	testDB, err := db.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	repo := repository.NewDashboardRepository(testDB)
	return NewService(repo), repo
}

func TestCreateDashboardGeneratesIDAndDefaultFolder(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// The default folder does not exist yet; creating into it makes it.
	data := json.RawMessage(`{"dashboardId":"client-chosen","title":"latency","description":"p99"}`)
	d, err := svc.CreateDashboard(ctx, "org1", model.DefaultFolder, data)
	require.NoError(t, err)

	// The server overwrites whatever id the client sent.
	assert.NotEmpty(t, d.DashboardID)
	assert.NotEqual(t, "client-chosen", d.DashboardID)
	assert.Equal(t, "latency", d.Title)
	assert.Equal(t, "p99", d.Description)

	exists, err := repo.FolderExists(ctx, "org1", model.DefaultFolder)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := svc.GetDashboard(ctx, "org1", d.DashboardID)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(got.Data))
}

func TestCreateDashboardRejectsMissingFolder(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateDashboard(context.Background(), "org1", "nope",
		json.RawMessage(`{"title":"x"}`))
	assert.ErrorIs(t, err, model.ErrFolderNotFound)
}

func TestUpdateDashboardKeepsIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDashboard(ctx, "org1", model.DefaultFolder,
		json.RawMessage(`{"title":"before"}`))
	require.NoError(t, err)

	updated, err := svc.UpdateDashboard(ctx, "org1", d.DashboardID,
		json.RawMessage(`{"title":"after"}`))
	require.NoError(t, err)
	assert.Equal(t, d.DashboardID, updated.DashboardID)
	assert.Equal(t, "after", updated.Title)
	assert.True(t, d.CreatedAt.Equal(updated.CreatedAt), "update must not touch creation time")

	_, err = svc.UpdateDashboard(ctx, "org1", "missing", json.RawMessage(`{"title":"x"}`))
	assert.ErrorIs(t, err, model.ErrDashboardNotFound)
}

func TestMoveDashboardRequiresTargetFolder(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDashboard(ctx, "org1", model.DefaultFolder,
		json.RawMessage(`{"title":"x"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MoveDashboard(ctx, "org1", d.DashboardID, "ops"), model.ErrFolderNotFound)

	require.NoError(t, repo.SaveFolder(ctx, "org1", &model.Folder{FolderID: "ops", Name: "Ops"}, false))
	require.NoError(t, svc.MoveDashboard(ctx, "org1", d.DashboardID, "ops"))

	got, err := svc.GetDashboard(ctx, "org1", d.DashboardID)
	require.NoError(t, err)
	assert.Equal(t, "ops", got.FolderID)
}

func TestFolderCreateUpdateDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, "org1", model.Folder{Name: "Ops", Description: "ops"})
	require.NoError(t, err)
	assert.NotEmpty(t, folder.FolderID)

	updated, err := svc.UpdateFolder(ctx, "org1", folder.FolderID, model.Folder{Name: "Operations"})
	require.NoError(t, err)
	assert.Equal(t, folder.FolderID, updated.FolderID)
	assert.Equal(t, "Operations", updated.Name)

	_, err = svc.UpdateFolder(ctx, "org1", "missing", model.Folder{Name: "x"})
	assert.ErrorIs(t, err, model.ErrFolderNotFound)

	folders, err := svc.ListFolders(ctx, "org1")
	require.NoError(t, err)
	assert.Len(t, folders, 1)

	require.NoError(t, svc.DeleteFolder(ctx, "org1", folder.FolderID))
}

func TestDeleteDashboardRemovesOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDashboard(ctx, "org1", model.DefaultFolder,
		json.RawMessage(`{"title":"x"}`))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDashboard(ctx, "org1", d.DashboardID))
	_, err = svc.GetDashboard(ctx, "org1", d.DashboardID)
	assert.ErrorIs(t, err, model.ErrDashboardNotFound)

	assert.ErrorIs(t, svc.DeleteDashboard(ctx, "org1", d.DashboardID), model.ErrDashboardNotFound)
}

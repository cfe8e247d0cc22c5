package model

import (
	"encoding/json"
	"time"
)

// DefaultFolder is the folder dashboards land in when the client does not
// name one. It is created on demand.
const DefaultFolder = "default"

// Dashboard is a stored dashboard definition, scoped to an organization and
// a folder. Data holds the full client-supplied definition; the gateway does
// not validate its contents.
type Dashboard struct {
	DashboardID string          `json:"dashboardId"`
	OrgID       string          `json:"orgId"`
	FolderID    string          `json:"folderId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Folder groups dashboards within an organization.
type Folder struct {
	FolderID    string `json:"folderId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewDefaultFolder returns the folder created implicitly when a dashboard is
// saved into the default folder before it exists.
func NewDefaultFolder() Folder {
	return Folder{
		FolderID:    DefaultFolder,
		Name:        DefaultFolder,
		Description: DefaultFolder,
	}
}

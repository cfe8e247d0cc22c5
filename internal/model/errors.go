package model

import "errors"

var (
	// ErrTraceIDRequired is returned when a client message has no trace id.
	ErrTraceIDRequired = errors.New("trace_id is required")

	// ErrUnknownMessageType is returned when a client message carries an
	// unrecognized type tag.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrDashboardNotFound is returned when a dashboard is not found.
	ErrDashboardNotFound = errors.New("dashboard not found")

	// ErrFolderNotFound is returned when a folder is not found.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrFolderNotEmpty is returned when deleting a folder that still
	// contains dashboards.
	ErrFolderNotEmpty = errors.New("folder is not empty")

	// ErrFolderExists is returned when creating a folder whose id is
	// already taken.
	ErrFolderExists = errors.New("folder already exists")
)

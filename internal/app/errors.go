package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need Start to have run.
	ErrNotStarted = errors.New("service not started")
	// ErrDashboardNotFound is returned for an unknown dashboard id.
	ErrDashboardNotFound = errors.New("dashboard not found")
	// ErrDashboardLimit is returned when the open dashboard cap is reached.
	ErrDashboardLimit = errors.New("too many open dashboards")
	// ErrNoReportIDs is returned by a bulk delete without ids.
	ErrNoReportIDs = errors.New("no report ids given")
)

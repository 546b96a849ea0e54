package export

import "errors"

var (
	// ErrUnknownFormat is returned for an unsupported export format.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrInvalidBackup is returned when a backup document lacks users or reports.
	ErrInvalidBackup = errors.New("invalid backup file format")
)

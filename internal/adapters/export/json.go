package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// BackupVersion is written into every backup document.
const BackupVersion = "1.0"

// Backup is the full-data snapshot accepted by restore.
type Backup struct {
	Users     []model.User   `json:"users"`
	Reports   []model.Report `json:"reports"`
	Timestamp string         `json:"timestamp"`
	Version   string         `json:"version"`
}

// NewBackup stamps a backup of users and reports taken at now.
func NewBackup(users []model.User, reports []model.Report, now time.Time) Backup {
	if users == nil {
		users = []model.User{}
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return Backup{
		Users:     users,
		Reports:   reports,
		Timestamp: model.FormatInstant(now),
		Version:   BackupVersion,
	}
}

// BackupFilename is the download name of a backup taken at now.
func BackupFilename(now time.Time) string {
	return fmt.Sprintf("medsafety_backup_%s.json", now.UTC().Format("2006-01-02"))
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	return encodeIndented(w, reports)
}

// WriteBackup writes b as an indented JSON document.
func WriteBackup(w io.Writer, b Backup) error {
	return encodeIndented(w, b)
}

// ReadBackup decodes a backup document. Both the users and the reports
// arrays must be present; an empty array is accepted.
func ReadBackup(r io.Reader) (Backup, error) {
	var raw struct {
		Users     *[]model.User   `json:"users"`
		Reports   *[]model.Report `json:"reports"`
		Timestamp string          `json:"timestamp"`
		Version   string          `json:"version"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Backup{}, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}
	if raw.Users == nil || raw.Reports == nil {
		return Backup{}, ErrInvalidBackup
	}
	return Backup{
		Users:     *raw.Users,
		Reports:   *raw.Reports,
		Timestamp: raw.Timestamp,
		Version:   raw.Version,
	}, nil
}

func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

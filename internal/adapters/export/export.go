// Package export renders report collections into downloadable files:
// CSV, JSON, XLSX and the full backup document.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a case-insensitive format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename is the download name for an export taken at now,
// e.g. medsafety_reports_2024-03-01.csv.
func (f Format) Filename(now time.Time) string {
	return fmt.Sprintf("medsafety_reports_%s.%s", now.UTC().Format("2006-01-02"), f)
}

// Write encodes reports in format f. The summary sheet of an XLSX export
// is built from view.
func Write(w io.Writer, f Format, reports []model.Report, view stats.View) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, reports)
	case FormatJSON:
		return WriteJSON(w, reports)
	case FormatXLSX:
		return WriteXLSX(w, reports, view)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// errorTypes joins both tag lists the way the CSV export shows them.
func errorTypes(r model.Report) string {
	tags := make([]string, 0, len(r.ClinicErrors)+len(r.PharmacyErrors))
	tags = append(tags, r.ClinicErrors...)
	tags = append(tags, r.PharmacyErrors...)
	return strings.Join(tags, "; ")
}

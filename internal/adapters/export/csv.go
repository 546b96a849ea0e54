package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// CSVHeader is the column set of the CSV export.
var CSVHeader = []string{
	"ID",
	"Date",
	"Time",
	"Facility",
	"Setting",
	"Error Types",
	"Staff Name",
	"Staff Email",
	"Staff Category",
	"Outcome",
	"Description",
	"Created At",
}

// WriteCSV writes a header row and one row per report.
func WriteCSV(w io.Writer, reports []model.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range reports {
		if err := cw.Write(csvRow(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r model.Report) []string {
	return []string{
		r.ID,
		r.Date,
		r.Time,
		r.Facility,
		r.Setting,
		errorTypes(r),
		r.StaffName,
		r.StaffEmail,
		r.StaffCategory,
		r.Outcome,
		r.Description,
		r.CreatedAt,
	}
}

package model_test

import (
	"testing"
	"time"

	model "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseInstant(t *testing.T) {
	convey.Convey("Given timestamp strings in the shapes clients send", t, func() {
		want := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

		convey.Convey("When parsing ISO strings with and without zones", func() {
			for _, s := range []string{
				"2024-03-05T10:30:00Z",
				"2024-03-05T10:30:00.000Z",
				"2024-03-05T18:30:00+08:00",
				"2024-03-05T10:30:00",
				"2024-03-05T10:30",
				"2024-03-05 10:30:00",
			} {
				got, ok := model.ParseInstant(s)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.Equal(want), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When parsing a bare date", func() {
			got, ok := model.ParseInstant("2024-03-05")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), convey.ShouldBeTrue)
		})

		convey.Convey("When parsing garbage", func() {
			for _, s := range []string{"", "  ", "yesterday", "05/03/2024"} {
				_, ok := model.ParseInstant(s)
				convey.So(ok, convey.ShouldBeFalse)
			}
		})

		convey.Convey("When formatting an instant", func() {
			convey.So(model.FormatInstant(want), convey.ShouldEqual, "2024-03-05T10:30:00.000Z")
		})
	})
}

func TestSortNewestFirst(t *testing.T) {
	convey.Convey("Given reports with mixed timestamps", t, func() {
		reports := []model.Report{
			{ID: "old", Timestamp: "2024-01-01T00:00:00Z"},
			{ID: "broken-1", Timestamp: "n/a"},
			{ID: "new", Timestamp: "2024-06-01T00:00:00Z"},
			{ID: "created-only", CreatedAt: "2024-03-01T00:00:00Z"},
			{ID: "broken-2"},
		}

		model.SortNewestFirst(reports)

		convey.Convey("Then parseable keys come first in descending order", func() {
			ids := make([]string, len(reports))
			for i, r := range reports {
				ids[i] = r.ID
			}
			convey.So(ids, convey.ShouldResemble, []string{"new", "created-only", "old", "broken-1", "broken-2"})
		})
	})
}

func TestReportClone(t *testing.T) {
	convey.Convey("Given a report with tag slices", t, func() {
		r := model.Report{ID: "r1", ClinicErrors: []string{"A"}, PharmacyErrors: []string{"B"}}

		convey.Convey("When the clone is mutated", func() {
			c := r.Clone()
			c.ClinicErrors[0] = "changed"
			c.PharmacyErrors = append(c.PharmacyErrors, "C")

			convey.Convey("Then the original is untouched", func() {
				convey.So(r.ClinicErrors, convey.ShouldResemble, []string{"A"})
				convey.So(r.PharmacyErrors, convey.ShouldResemble, []string{"B"})
			})
		})

		convey.Convey("When cloning a nil slice of reports", func() {
			out := model.CloneReports(nil)
			convey.So(out, convey.ShouldNotBeNil)
			convey.So(out, convey.ShouldBeEmpty)
		})
	})
}

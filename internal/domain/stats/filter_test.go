package stats_test

import (
	"errors"
	"testing"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleReports() []model.Report {
	return []model.Report{
		{ID: "1", Facility: "KK Bandar Pasir Mas", Setting: "pharmacy", Detection: "Pharmacist", Date: "2024-03-01"},
		{ID: "2", Facility: "KK Bandar Pasir Mas", Setting: "ae", Detection: "Doctor", Date: "2024-03-10"},
		{ID: "3", Facility: "KK Rantau Panjang", Setting: "pharmacy", Detection: "Pharmacist", Date: "2024-03-31"},
		{ID: "4", Facility: "KK Tendong", Setting: "outpatient", Detection: "Nurse", Date: "not a date"},
	}
}

func ids(reports []model.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

func TestFilterStateCompile(t *testing.T) {
	Convey("Given the dashboard filter", t, func() {
		reports := sampleReports()

		Convey("When no criterion is set", func() {
			pred, err := stats.FilterState{}.Compile()
			So(err, ShouldBeNil)
			So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"1", "2", "3", "4"})
		})

		Convey("When filtering by facility", func() {
			pred, err := stats.FilterState{Facility: "KK Bandar Pasir Mas"}.Compile()
			So(err, ShouldBeNil)
			v := stats.Aggregate(reports, pred)

			Convey("Then the facility mapping has exactly one key", func() {
				So(len(v.Facility), ShouldEqual, 1)
				So(v.Facility["KK Bandar Pasir Mas"], ShouldEqual, 2)
			})
		})

		Convey("When combining unit and detection", func() {
			pred, err := stats.FilterState{Unit: "pharmacy", Detection: "Pharmacist"}.Compile()
			So(err, ShouldBeNil)
			So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"1", "3"})
		})

		Convey("When the date range is set", func() {
			pred, err := stats.FilterState{DateStart: "2024-03-01", DateEnd: "2024-03-10"}.Compile()
			So(err, ShouldBeNil)

			Convey("Then both bounds are inclusive and unparseable dates pass", func() {
				So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"1", "2", "4"})
			})
		})

		Convey("When the end date is the day of a timed report", func() {
			timed := []model.Report{{ID: "late", Date: "2024-03-10T23:59:59Z"}}
			pred, err := stats.FilterState{DateEnd: "2024-03-10"}.Compile()
			So(err, ShouldBeNil)
			So(ids(stats.Filter(timed, pred)), ShouldResemble, []string{"late"})
		})

		Convey("When a bound cannot be parsed", func() {
			_, err := stats.FilterState{DateStart: "last week"}.Compile()
			So(errors.Is(err, stats.ErrInvalidFilter), ShouldBeTrue)
		})

		Convey("When values carry surrounding whitespace", func() {
			pred, err := stats.FilterState{Facility: "  KK Tendong "}.Compile()
			So(err, ShouldBeNil)
			So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"4"})
		})
	})
}

func TestListFilterCompile(t *testing.T) {
	Convey("Given the admin list filter", t, func() {
		reports := sampleReports()

		Convey("When selectors are set to all", func() {
			pred, err := stats.ListFilter{Facility: "all", Setting: "all"}.Compile()
			So(err, ShouldBeNil)
			So(len(stats.Filter(reports, pred)), ShouldEqual, 4)
		})

		Convey("When filtering by setting", func() {
			pred, err := stats.ListFilter{Setting: "pharmacy"}.Compile()
			So(err, ShouldBeNil)
			So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"1", "3"})
		})

		Convey("When a date range is set", func() {
			pred, err := stats.ListFilter{DateFrom: "2024-03-10", DateTo: "2024-03-31"}.Compile()
			So(err, ShouldBeNil)

			Convey("Then unparseable dates are dropped", func() {
				So(ids(stats.Filter(reports, pred)), ShouldResemble, []string{"2", "3"})
			})
		})

		Convey("When a bound cannot be parsed", func() {
			_, err := stats.ListFilter{DateTo: "soon"}.Compile()
			So(errors.Is(err, stats.ErrInvalidFilter), ShouldBeTrue)
		})
	})
}

func TestSearch(t *testing.T) {
	Convey("Given reports with staff details", t, func() {
		reports := []model.Report{
			{ID: "1", Facility: "KK Bandar", StaffName: "Aminah", StaffEmail: "aminah@moh.gov.my"},
			{ID: "2", Facility: "KK Tendong", Description: "Wrong DOSE dispensed"},
			{ID: "3", Facility: "KK Kubang"},
		}

		Convey("Then search is a case-insensitive substring match", func() {
			So(ids(stats.Search(reports, "AMINAH")), ShouldResemble, []string{"1"})
			So(ids(stats.Search(reports, "dose")), ShouldResemble, []string{"2"})
			So(ids(stats.Search(reports, "kk")), ShouldResemble, []string{"1", "2", "3"})
		})

		Convey("Then an empty query returns everything", func() {
			So(len(stats.Search(reports, "  ")), ShouldEqual, 3)
		})
	})
}

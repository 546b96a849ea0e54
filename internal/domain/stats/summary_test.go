package stats_test

import (
	"testing"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOptions(t *testing.T) {
	Convey("Given reports with repeated and empty selector values", t, func() {
		reports := []model.Report{
			{Facility: "KK Tendong", Setting: "pharmacy", Detection: "Nurse"},
			{Facility: "KK Bandar", Setting: "ae"},
			{Facility: "KK Tendong", Setting: "ward", Detection: "Doctor"},
			{},
		}

		opts := stats.Options(reports)

		Convey("Then values are distinct and sorted", func() {
			So(opts.Facilities, ShouldResemble, []stats.Option{
				{Value: "KK Bandar", Label: "KK Bandar"},
				{Value: "KK Tendong", Label: "KK Tendong"},
			})
			So(opts.Detections, ShouldResemble, []stats.Option{
				{Value: "Doctor", Label: "Doctor"},
				{Value: "Nurse", Label: "Nurse"},
			})
		})

		Convey("Then known units carry friendly labels", func() {
			So(opts.Units, ShouldResemble, []stats.Option{
				{Value: "ae", Label: "A&E"},
				{Value: "pharmacy", Label: "Pharmacy"},
				{Value: "ward", Label: "ward"},
			})
			So(stats.UnitLabel("outpatient"), ShouldEqual, "Outpatient")
		})

		Convey("Then an empty collection yields empty lists", func() {
			empty := stats.Options(nil)
			So(empty.Facilities, ShouldNotBeNil)
			So(empty.Facilities, ShouldBeEmpty)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given outcome strings", t, func() {
		So(stats.Classify(""), ShouldEqual, stats.SeverityUnknown)
		So(stats.Classify("Error, No Harm"), ShouldEqual, stats.SeverityNoHarm)
		So(stats.Classify("Error, Harm"), ShouldEqual, stats.SeverityHarm)
		So(stats.Classify("No Error"), ShouldEqual, stats.SeverityNoError)
		So(stats.Classify("Death"), ShouldEqual, stats.SeverityOther)

		Convey("Then outcome counts fold into severity buckets", func() {
			counts := stats.SeverityCounts(map[string]int{"No Harm": 2, "harm": 1, "Harm": 3, "": 1})
			So(counts[stats.SeverityNoHarm], ShouldEqual, 2)
			So(counts[stats.SeverityHarm], ShouldEqual, 4)
			So(counts[stats.SeverityUnknown], ShouldEqual, 1)
		})
	})
}

func TestRecent(t *testing.T) {
	Convey("Given more reports than the table shows", t, func() {
		var reports []model.Report
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 12; i++ {
			reports = append(reports, model.Report{
				ID:        string(rune('a' + i)),
				Timestamp: model.FormatInstant(base.Add(time.Duration(i) * time.Hour)),
			})
		}

		recent := stats.Recent(reports, stats.RecentRows)

		Convey("Then the newest ten come first", func() {
			So(len(recent), ShouldEqual, 10)
			So(recent[0].ID, ShouldEqual, "l")
			So(recent[9].ID, ShouldEqual, "c")
		})

		Convey("Then the input order is preserved", func() {
			So(reports[0].ID, ShouldEqual, "a")
		})

		Convey("Then zero rows yields an empty slice", func() {
			So(stats.Recent(reports, 0), ShouldBeEmpty)
			So(stats.Recent(nil, 5), ShouldNotBeNil)
		})
	})
}

func TestSystem(t *testing.T) {
	Convey("Given reports spread over two weeks", t, func() {
		now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
		day := 24 * time.Hour
		reports := []model.Report{
			{ID: "old", Facility: "A", Setting: "ae", CreatedAt: model.FormatInstant(now.Add(-10 * day))},
			{ID: "new", Facility: "A", Setting: "pharmacy", CreatedAt: model.FormatInstant(now.Add(-1 * day))},
			{ID: "mid", Facility: "", Setting: "", CreatedAt: model.FormatInstant(now.Add(-3 * day))},
		}
		users := []model.User{{ID: "u1"}, {ID: "u2"}}

		s := stats.System(reports, users, now, 7*day)

		Convey("Then totals and recent counts are computed", func() {
			So(s.TotalReports, ShouldEqual, 3)
			So(s.TotalUsers, ShouldEqual, 2)
			So(s.RecentReports, ShouldEqual, 2)
		})

		Convey("Then breakdowns skip empty values", func() {
			So(s.FacilityStats, ShouldResemble, map[string]int{"A": 2})
			So(s.SettingStats, ShouldResemble, map[string]int{"ae": 1, "pharmacy": 1})
		})

		Convey("Then the latest report is the most recently created", func() {
			So(s.LatestReport, ShouldNotBeNil)
			So(s.LatestReport.ID, ShouldEqual, "new")
		})

		Convey("Then an empty store has no latest report", func() {
			empty := stats.System(nil, nil, now, 7*day)
			So(empty.LatestReport, ShouldBeNil)
			So(empty.FacilityStats, ShouldBeEmpty)
		})
	})
}

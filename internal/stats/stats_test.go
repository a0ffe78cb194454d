package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"noticias_ingest/internal/model"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func TestPeriodStart(t *testing.T) {
	tests := []struct {
		period Period
		want   time.Time
	}{
		{PeriodDay, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)},
		{PeriodWeek, testNow.AddDate(0, 0, -7)},
		{PeriodMonth, testNow.AddDate(0, -1, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			if got := tt.period.Start(testNow); !got.Equal(tt.want) {
				t.Errorf("Start = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeEmpty(t *testing.T) {
	st := Compute(nil, PeriodWeek, testNow)
	if st.Total != 0 || st.SuccessCount != 0 || st.ErrorCount != 0 {
		t.Errorf("counts must be zero: %+v", st)
	}
	if st.SuccessRate != 0 || st.CorrectionRate != 0 || st.DailyAverage != 0 {
		t.Errorf("rates must degrade to zero, not divide: %+v", st)
	}
	if len(st.BySource) != 0 || len(st.ByDay) != 0 || len(st.ByType) != 0 {
		t.Errorf("groupings must be empty: %+v", st)
	}
}

func testRecords() []model.ImportRecord {
	day := func(d, h int) time.Time { return time.Date(2026, 8, d, h, 0, 0, 0, time.UTC) }
	return []model.ImportRecord{
		{SourceName: "G1", ImportType: model.ImportSingle, Status: model.ImportSuccess, FormatCorrected: true, CreatedAt: day(25, 9)},
		{SourceName: "G1", ImportType: model.ImportBatch, Status: model.ImportSuccess, CreatedAt: day(26, 10)},
		{SourceName: "UOL", ImportType: model.ImportBatch, Status: model.ImportError, ErrorMessage: "feed fora do ar", CreatedAt: day(26, 11)},
		{SourceName: "", ImportType: model.ImportJSON, Status: model.ImportSuccess, CreatedAt: day(25, 13)},
		// Outside the week window, must be ignored.
		{SourceName: "G1", ImportType: model.ImportSingle, Status: model.ImportSuccess, CreatedAt: day(10, 9)},
	}
}

func TestCompute(t *testing.T) {
	st := Compute(testRecords(), PeriodWeek, testNow)

	if st.Total != 4 || st.SuccessCount != 3 || st.ErrorCount != 1 || st.CorrectedCount != 1 {
		t.Errorf("counts = total %d success %d error %d corrected %d",
			st.Total, st.SuccessCount, st.ErrorCount, st.CorrectedCount)
	}
	if st.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", st.SuccessRate)
	}
	if want := float64(1) / 3 * 100; st.CorrectionRate != want {
		t.Errorf("correction rate = %v, want %v", st.CorrectionRate, want)
	}
	if want := float64(4) / 7; st.DailyAverage != want {
		t.Errorf("daily average = %v, want %v", st.DailyAverage, want)
	}

	wantSources := []SourceCount{
		{Name: "G1", Count: 2, Badge: defaultBadge, Color: defaultColor},
		{Name: "UOL", Count: 1, Badge: defaultBadge, Color: defaultColor},
		{Name: "desconhecida", Count: 1, Badge: defaultBadge, Color: defaultColor},
	}
	if diff := cmp.Diff(wantSources, st.BySource); diff != "" {
		t.Errorf("by source mismatch (-want +got):\n%s", diff)
	}

	wantDays := []DayCount{
		{Day: "2026-08-25", Count: 2, Success: 2},
		{Day: "2026-08-26", Count: 2, Success: 1, Error: 1},
	}
	if diff := cmp.Diff(wantDays, st.ByDay); diff != "" {
		t.Errorf("by day mismatch (-want +got):\n%s", diff)
	}

	wantTypes := []TypeCount{
		{Type: model.ImportBatch, Count: 2},
		{Type: model.ImportJSON, Count: 1},
		{Type: model.ImportSingle, Count: 1},
	}
	if diff := cmp.Diff(wantTypes, st.ByType); diff != "" {
		t.Errorf("by type mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDayPeriod(t *testing.T) {
	records := []model.ImportRecord{
		{SourceName: "G1", ImportType: model.ImportSingle, Status: model.ImportSuccess, CreatedAt: testNow.Add(-time.Hour)},
		{SourceName: "G1", ImportType: model.ImportSingle, Status: model.ImportSuccess, CreatedAt: testNow.Add(-36 * time.Hour)},
	}
	st := Compute(records, PeriodDay, testNow)
	if st.Total != 1 {
		t.Errorf("total = %d, yesterday's record must be excluded", st.Total)
	}
	if st.DailyAverage != 1 {
		t.Errorf("daily average = %v, partial day counts as one", st.DailyAverage)
	}
}

func TestResolve(t *testing.T) {
	st := Compute(testRecords(), PeriodWeek, testNow)
	st.Resolve(func(name string) (string, string, bool) {
		if name == "G1" {
			return "G1", "#C4170C", true
		}
		return "", "", false
	})

	for _, sc := range st.BySource {
		if sc.Name == "G1" {
			if sc.Badge != "G1" || sc.Color != "#C4170C" {
				t.Errorf("G1 badge not resolved: %+v", sc)
			}
			continue
		}
		if sc.Badge != defaultBadge || sc.Color != defaultColor {
			t.Errorf("unresolved source must keep defaults: %+v", sc)
		}
	}

	// A nil resolver is a no-op.
	st.Resolve(nil)
}

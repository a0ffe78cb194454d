// Package stats derives dashboard aggregates from the import audit trail.
package stats

import (
	"sort"
	"time"

	"noticias_ingest/internal/model"
)

// Period selects how far back records are aggregated.
type Period string

// Supported aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// SourceCount is the per-source share of imports, with the badge styling
// carried from the source registry when known.
type SourceCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Badge string `json:"badge"`
	Color string `json:"color"`
}

// DayCount is the per-day share of imports with success/error sub-counts.
type DayCount struct {
	Day     string `json:"day"`
	Count   int    `json:"count"`
	Success int    `json:"success"`
	Error   int    `json:"error"`
}

// TypeCount is the per-import-type share of imports.
type TypeCount struct {
	Type  model.ImportType `json:"type"`
	Count int              `json:"count"`
}

// Stats is the aggregate over one period of import history.
type Stats struct {
	Period         Period        `json:"period"`
	Total          int           `json:"total"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	CorrectedCount int           `json:"corrected_count"`
	SuccessRate    float64       `json:"success_rate"`
	CorrectionRate float64       `json:"correction_rate"`
	DailyAverage   float64       `json:"daily_average"`
	BySource       []SourceCount `json:"by_source"`
	ByDay          []DayCount    `json:"by_day"`
	ByType         []TypeCount   `json:"by_type"`
}

// BadgeResolver supplies badge styling for a source name. A nil resolver
// leaves every source with the default badge.
type BadgeResolver func(sourceName string) (badge, color string, ok bool)

const (
	defaultBadge = "RSS"
	defaultColor = "#607D8B"
)

// Start returns the inclusive beginning of the period relative to now:
// start of today, now minus seven days, or now minus one month.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

// Compute aggregates the records created at or after the period start.
// Rates degrade to zero instead of dividing by zero; the daily average is
// taken over elapsed whole days, at least one.
func Compute(records []model.ImportRecord, period Period, now time.Time) Stats {
	start := period.Start(now)

	st := Stats{Period: period}
	bySource := map[string]*SourceCount{}
	byDay := map[string]*DayCount{}
	byType := map[model.ImportType]int{}

	for _, r := range records {
		if r.CreatedAt.Before(start) {
			continue
		}
		st.Total++
		switch r.Status {
		case model.ImportSuccess:
			st.SuccessCount++
		case model.ImportError:
			st.ErrorCount++
		}
		if r.FormatCorrected {
			st.CorrectedCount++
		}

		name := r.SourceName
		if name == "" {
			name = "desconhecida"
		}
		sc, ok := bySource[name]
		if !ok {
			sc = &SourceCount{Name: name, Badge: defaultBadge, Color: defaultColor}
			bySource[name] = sc
		}
		sc.Count++

		day := r.CreatedAt.UTC().Format("2006-01-02")
		dc, ok := byDay[day]
		if !ok {
			dc = &DayCount{Day: day}
			byDay[day] = dc
		}
		dc.Count++
		switch r.Status {
		case model.ImportSuccess:
			dc.Success++
		case model.ImportError:
			dc.Error++
		}

		byType[r.ImportType]++
	}

	if st.Total > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.Total) * 100
	}
	if st.SuccessCount > 0 {
		st.CorrectionRate = float64(st.CorrectedCount) / float64(st.SuccessCount) * 100
	}

	days := int(elapsedDays(start, now))
	if days < 1 {
		days = 1
	}
	st.DailyAverage = float64(st.Total) / float64(days)

	st.BySource = sortedSources(bySource)
	st.ByDay = sortedDays(byDay)
	st.ByType = sortedTypes(byType)
	return st
}

// Resolve rewrites the by-source badge styling using the supplied
// resolver, typically backed by the source registry.
func (st *Stats) Resolve(resolver BadgeResolver) {
	if resolver == nil {
		return
	}
	for i := range st.BySource {
		if badge, color, ok := resolver(st.BySource[i].Name); ok {
			st.BySource[i].Badge = badge
			st.BySource[i].Color = color
		}
	}
}

func elapsedDays(start, now time.Time) float64 {
	d := now.Sub(start).Hours() / 24
	if d != float64(int64(d)) {
		return float64(int64(d)) + 1
	}
	return d
}

func sortedSources(m map[string]*SourceCount) []SourceCount {
	out := make([]SourceCount, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedDays(m map[string]*DayCount) []DayCount {
	out := make([]DayCount, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func sortedTypes(m map[model.ImportType]int) []TypeCount {
	out := make([]TypeCount, 0, len(m))
	for t, c := range m {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

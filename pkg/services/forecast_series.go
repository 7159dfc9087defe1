package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"market-pulse-api/pkg/models"
)

const maxProductIDLength = 100

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// dateLayouts are tried in order when parsing caller-supplied dates.
var dateLayouts = []string{
	models.DateLayout,
	"2006/1/2",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// SanitizeProductID trims id and checks it against the allowed character set and length.
func SanitizeProductID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxProductIDLength || !productIDPattern.MatchString(id) {
		return "", models.ErrInvalidProductID
	}
	return id, nil
}

// ParseDate parses a calendar date and truncates it to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("日付の形式が不正です: %q", s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ObservationsFromRecords converts API rows strictly: a missing date or quantity, an unparsable
// date or a negative quantity is a *models.SchemaError naming the 1-based row.
func ObservationsFromRecords(records []models.SalesRecord) ([]models.SalesObservation, error) {
	out := make([]models.SalesObservation, 0, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.Date) == "" {
			return nil, &models.SchemaError{Field: "date", Row: i + 1}
		}
		if r.Quantity == nil {
			return nil, &models.SchemaError{Field: "quantity", Row: i + 1}
		}
		d, err := ParseDate(r.Date)
		if err != nil {
			return nil, &models.SchemaError{Field: "date", Row: i + 1, Reason: err.Error()}
		}
		if *r.Quantity < 0 {
			return nil, &models.SchemaError{Field: "quantity", Row: i + 1, Reason: "負の値は指定できません"}
		}
		out = append(out, models.SalesObservation{Date: d, Quantity: *r.Quantity})
	}
	return out, nil
}

// aggregateDaily sums same-day observations and returns them in date order.
func aggregateDaily(obs []models.SalesObservation) []models.SalesObservation {
	byDay := make(map[time.Time]float64, len(obs))
	for _, o := range obs {
		byDay[truncateDay(o.Date)] += o.Quantity
	}
	out := make([]models.SalesObservation, 0, len(byDay))
	for d, q := range byDay {
		out = append(out, models.SalesObservation{Date: d, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// densify inserts zero-quantity rows for missing calendar days. Input must be sorted and
// free of duplicate days.
func densify(obs []models.SalesObservation) []models.SalesObservation {
	if len(obs) == 0 {
		return nil
	}
	first := obs[0].Date
	last := obs[len(obs)-1].Date
	days := int(last.Sub(first).Hours()/24) + 1
	out := make([]models.SalesObservation, 0, days)
	j := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if j < len(obs) && obs[j].Date.Equal(d) {
			out = append(out, obs[j])
			j++
			continue
		}
		out = append(out, models.SalesObservation{Date: d, Quantity: 0})
	}
	return out
}

// NormalizeSeries returns the dense daily series of obs.
func NormalizeSeries(obs []models.SalesObservation) []models.SalesObservation {
	return densify(aggregateDaily(obs))
}

func splitSeries(obs []models.SalesObservation) ([]time.Time, []float64) {
	dates := make([]time.Time, len(obs))
	qty := make([]float64, len(obs))
	for i, o := range obs {
		dates[i] = o.Date
		qty[i] = o.Quantity
	}
	return dates, qty
}

func tail[T any](s []T, n int) []T {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// weekdayIndex returns 0 for Monday through 6 for Sunday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func isWeekendIndex(dow int) bool {
	return dow == 5 || dow == 6
}

// dayNameJP 曜日を日本語で返す
func dayNameJP(t time.Time) string {
	days := []string{"日", "月", "火", "水", "木", "金", "土"}
	return days[int(t.Weekday())]
}

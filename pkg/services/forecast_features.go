package services

import (
	"math"
	"time"
)

// FeatureColumns is the fixed column order of every feature row.
var FeatureColumns = []string{
	"day_of_week",
	"day_of_month",
	"week_of_month",
	"is_weekend",
	"is_payday",
	"lag_1",
	"lag_7",
	"lag_14",
	"rolling_mean_7",
	"rolling_mean_14",
	"rolling_std_7",
	"trend",
}

const (
	colDayOfWeek = iota
	colDayOfMonth
	colWeekOfMonth
	colIsWeekend
	colIsPayday
	colLag1
	colLag7
	colLag14
	colRollingMean7
	colRollingMean14
	colRollingStd7
	colTrend
	numFeatures
)

// BuildFeatures computes one feature row per day of a dense series. A NaN quantity marks a
// day whose value is unknown (the next day to predict). Rolling statistics use the series
// shifted by one day so a row never sees its own quantity. Remaining gaps in each column are
// back-filled, then forward-filled, then set to zero.
func BuildFeatures(dates []time.Time, qty []float64) [][]float64 {
	n := len(dates)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, numFeatures)
	}

	shifted := make([]float64, n)
	for i := range shifted {
		if i == 0 {
			shifted[i] = math.NaN()
		} else {
			shifted[i] = qty[i-1]
		}
	}

	for i, d := range dates {
		r := rows[i]
		dow := weekdayIndex(d)
		dom := d.Day()
		r[colDayOfWeek] = float64(dow)
		r[colDayOfMonth] = float64(dom)
		r[colWeekOfMonth] = float64((dom-1)/7 + 1)
		r[colIsWeekend] = boolToFloat(isWeekendIndex(dow))
		r[colIsPayday] = boolToFloat(dom >= 25 || dom <= 5)

		r[colLag1] = lagAt(qty, i, 1)
		r[colLag7] = lagAt(qty, i, 7)
		r[colLag14] = lagAt(qty, i, 14)

		r[colRollingMean7] = rollingMean(shifted, i, 7)
		r[colRollingMean14] = rollingMean(shifted, i, 14)
		r[colRollingStd7] = rollingStd(shifted, i, 7)
		r[colTrend] = r[colRollingMean7] - r[colRollingMean14]
	}

	for c := 0; c < numFeatures; c++ {
		fillColumn(rows, c)
	}
	return rows
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func lagAt(qty []float64, i, k int) float64 {
	if i < k {
		return math.NaN()
	}
	return qty[i-k]
}

// windowValues collects the non-NaN values of s in the trailing window ending at i.
func windowValues(s []float64, i, window int) []float64 {
	start := max(0, i-window+1)
	vals := make([]float64, 0, window)
	for _, v := range s[start : i+1] {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

func rollingMean(s []float64, i, window int) float64 {
	vals := windowValues(s, i, window)
	if len(vals) == 0 {
		return math.NaN()
	}
	return calculateMean(vals)
}

func rollingStd(s []float64, i, window int) float64 {
	return calculateSampleStandardDeviation(windowValues(s, i, window))
}

// fillColumn applies backward fill, then forward fill, then zero fill to column c.
func fillColumn(rows [][]float64, c int) {
	next := math.NaN()
	for i := len(rows) - 1; i >= 0; i-- {
		if math.IsNaN(rows[i][c]) {
			rows[i][c] = next
		} else {
			next = rows[i][c]
		}
	}
	prev := math.NaN()
	for i := range rows {
		if math.IsNaN(rows[i][c]) {
			rows[i][c] = prev
		} else {
			prev = rows[i][c]
		}
	}
	for i := range rows {
		if math.IsNaN(rows[i][c]) {
			rows[i][c] = 0
		}
	}
}

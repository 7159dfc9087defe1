package services

import (
	"math"
	"time"

	"market-pulse-api/pkg/models"
)

// fallbackTier scales the heuristic by how much history is available.
type fallbackTier struct {
	minDays          int
	variationScale   float64
	trendSensitivity float64
	dowMin, dowMax   float64
	confidence       string
}

var fallbackTiers = []fallbackTier{
	{60, 1.0, 0.15, 0.80, 1.25, models.ConfidenceHigh},
	{30, 0.8, 0.12, 0.85, 1.20, models.ConfidenceMedium},
	{14, 0.6, 0.08, 0.88, 1.15, models.ConfidenceMedium},
	{7, 0.4, 0.05, 0.92, 1.10, models.ConfidenceLow},
	{0, 0.2, 0.02, 0.95, 1.05, models.ConfidenceLow},
}

// defaultDOWFactors is the retail weekly curve, Monday first: lowest midweek, highest weekend.
var defaultDOWFactors = [7]float64{0.97, 0.93, 0.94, 0.96, 1.01, 1.08, 1.11}

func tierFor(days int) fallbackTier {
	for _, t := range fallbackTiers {
		if days >= t.minDays {
			return t
		}
	}
	return fallbackTiers[len(fallbackTiers)-1]
}

// FallbackForecast is the deterministic statistical forecaster used when no model output is
// available. series must be sorted by date; an empty series yields no points.
func FallbackForecast(series []models.SalesObservation, days int) []models.ForecastPoint {
	if len(series) == 0 || days <= 0 {
		return nil
	}
	dates, qty := splitSeries(series)
	n := len(qty)
	tier := tierFor(n)

	recent := tail(qty, 14)
	baseline := calculateMean(recent)
	std := math.Max(baseline*0.2, 1)
	if len(recent) > 1 {
		std = calculateSampleStandardDeviation(recent)
	}

	trend := 0.0
	if len(recent) >= 3 {
		half := len(recent) / 2
		firstHalf := calculateMean(recent[:half])
		secondHalf := calculateMean(recent[len(recent)-half:])
		if firstHalf > 0 {
			trend = (secondHalf - firstHalf) / float64(len(recent))
		}
	}

	learned := learnDOWFactors(dates, qty, tier)

	lastDate := dates[n-1]
	points := make([]models.ForecastPoint, 0, days)
	prev := 0.0
	for i := 1; i <= days; i++ {
		d := lastDate.AddDate(0, 0, i)
		dow := weekdayIndex(d)
		dom := d.Day()

		dowFactor := defaultDOWFactors[dow]
		if f, ok := learned[dow]; ok {
			def := defaultDOWFactors[dow]
			if isWeekendIndex(dow) && f < def {
				// 週末が既定より低く学習された場合は既定値側へ寄せる
				towardDefault := 0.7 - tier.variationScale*0.4
				dowFactor = f*(1-towardDefault) + def*towardDefault
			} else {
				dowFactor = f*tier.variationScale + def*(1-tier.variationScale)
			}
		}

		payday := 1.0
		switch {
		case dom >= 25 || dom <= 5:
			payday = 1 + 0.08*tier.variationScale
		case dom >= 12 && dom <= 18:
			payday = 1 - 0.05*tier.variationScale
		}

		base := math.Max(1, baseline+trend*float64(i)*tier.trendSensitivity)
		predicted := base * dowFactor * payday

		seed := (dom*3 + int(d.Month())*7 + dow*2) % 100
		predicted *= 1 + (float64(seed-50)/100)*(0.05*tier.variationScale)

		maxChange := 0.15 + 0.15*tier.variationScale
		if prev > 0 {
			ratio := predicted / prev
			if ratio > 1+maxChange {
				predicted = prev * (1 + maxChange*0.8)
			} else if ratio < 1-maxChange {
				predicted = prev * (1 - maxChange*0.8)
			}
		}

		value := math.Max(1, math.RoundToEven(predicted))
		lower := math.Max(0, math.RoundToEven(value-std))
		upper := math.RoundToEven(value + std)
		prev = value

		points = append(points, models.ForecastPoint{
			Date:              d.Format(models.DateLayout),
			LowerBound:        lower,
			PredictedQuantity: value,
			UpperBound:        upper,
			Confidence:        tier.confidence,
		})
	}
	return points
}

// learnDOWFactors returns per-weekday mean over global mean, clamped to the tier range.
// Needs at least a week of data and positive sales.
func learnDOWFactors(dates []time.Time, qty []float64, tier fallbackTier) map[int]float64 {
	if len(qty) < 7 {
		return nil
	}
	global := calculateMean(qty)
	if global <= 0 {
		return nil
	}
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, d := range dates {
		dow := weekdayIndex(d)
		sums[dow] += qty[i]
		counts[dow]++
	}
	out := make(map[int]float64, len(sums))
	for dow, s := range sums {
		raw := s / float64(counts[dow]) / global
		out[dow] = math.Max(tier.dowMin, math.Min(tier.dowMax, raw))
	}
	return out
}

package services

import (
	"math"
	"sort"

	"market-pulse-api/pkg/models"
)

// CalculateAdaptiveWeights favors the ML source only with more than 90 days of history and
// an agreement of at least 0.8; under 60 days the rule source dominates.
func CalculateAdaptiveWeights(dataQualityDays int, agreementScore float64) models.EnsembleWeights {
	if dataQualityDays < 60 {
		return models.EnsembleWeights{Rule: 0.7, ML: 0.3}
	}
	if dataQualityDays > 90 && agreementScore >= 0.8 {
		return models.EnsembleWeights{Rule: 0.3, ML: 0.7}
	}
	return models.EnsembleWeights{Rule: 0.5, ML: 0.5}
}

type mlDay struct {
	p10, p50, p90 float64
}

// agreementFor returns 1 - min(|rule - p50| / max(p50, 1), 1).
func agreementFor(rule, p50 float64) float64 {
	return 1 - math.Min(math.Abs(rule-p50)/math.Max(p50, 1), 1)
}

// MeasureAgreement is the mean per-day agreement over dates present in both sources.
// It returns 0 when the sources share no date.
func MeasureAgreement(rule, ml []models.ForecastPoint) float64 {
	mlByDate := make(map[string]float64, len(ml))
	for _, p := range ml {
		mlByDate[p.Date] = p.PredictedQuantity
	}
	var scores []float64
	for _, r := range rule {
		if p50, ok := mlByDate[r.Date]; ok {
			scores = append(scores, agreementFor(r.PredictedQuantity, p50))
		}
	}
	return calculateMean(scores)
}

// EnsembleForecast blends the two sources over the union of their dates. Days missing from
// the ML side take the rule value for all three quantiles; days missing from the rule side
// count the rule value as 0.
func EnsembleForecast(rule, ml []models.ForecastPoint, w models.EnsembleWeights) models.EnsembleResult {
	ruleByDate := make(map[string]float64, len(rule))
	dateSet := make(map[string]struct{})
	for _, r := range rule {
		if r.Date == "" {
			continue
		}
		ruleByDate[r.Date] = r.PredictedQuantity
		dateSet[r.Date] = struct{}{}
	}
	mlByDate := make(map[string]mlDay, len(ml))
	for _, p := range ml {
		if p.Date == "" {
			continue
		}
		mlByDate[p.Date] = mlDay{p10: p.LowerBound, p50: p.PredictedQuantity, p90: p.UpperBound}
		dateSet[p.Date] = struct{}{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	if len(dates) == 0 {
		return models.EnsembleResult{Predictions: []models.BlendedPoint{}, Trend: models.TrendStable, Confidence: models.ConfidenceLow}
	}

	points := make([]models.BlendedPoint, 0, len(dates))
	agreements := make([]float64, 0, len(dates))
	confScores := make([]float64, 0, len(dates))
	for _, d := range dates {
		ruleVal := ruleByDate[d]
		m, ok := mlByDate[d]
		if !ok {
			m = mlDay{p10: ruleVal, p50: ruleVal, p90: ruleVal}
		}

		blended := w.Rule*ruleVal + w.ML*m.p50
		agreements = append(agreements, agreementFor(ruleVal, m.p50))
		conf := confidenceFromWidth(m.p10, m.p90, blended)
		confScores = append(confScores, confidenceScore(conf))

		dayName := ""
		if t, err := ParseDate(d); err == nil {
			dayName = dayNameJP(t)
		}
		points = append(points, models.BlendedPoint{
			Date:              d,
			DayName:           dayName,
			RuleBased:         ruleVal,
			MLP10:             m.p10,
			MLP50:             m.p50,
			MLP90:             m.p90,
			PredictedQuantity: blended,
			LowerBound:        math.Min(m.p10, blended),
			UpperBound:        math.Max(m.p90, blended),
			Confidence:        conf,
		})
	}

	first := points[0].PredictedQuantity
	last := points[len(points)-1].PredictedQuantity
	return models.EnsembleResult{
		Predictions:    points,
		AgreementScore: roundTo(calculateMean(agreements), 4),
		Trend:          trendDirection(first, last),
		Confidence:     overallConfidence(calculateMean(confScores)),
	}
}

// trendDirection uses a 5% band around the first value.
func trendDirection(first, last float64) string {
	switch {
	case last > first*1.05:
		return models.TrendIncreasing
	case last < first*0.95:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func confidenceScore(label string) float64 {
	switch label {
	case models.ConfidenceHigh:
		return 1.0
	case models.ConfidenceMedium:
		return 0.6
	default:
		return 0.3
	}
}

func overallConfidence(score float64) string {
	switch {
	case score >= 0.8:
		return models.ConfidenceHigh
	case score >= 0.55:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

package services

import (
	"math"
	"slices"

	"market-pulse-api/pkg/models"
)

// confidenceFromWidth labels an interval by its width relative to the point estimate.
func confidenceFromWidth(lower, upper, value float64) string {
	width := math.Max(upper-lower, 0)
	ratio := width / math.Max(math.Abs(value), 1)
	switch {
	case ratio < 0.2:
		return models.ConfidenceHigh
	case ratio < 0.4:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// PredictAutoregressive rolls the artifact forward days steps starting the day after its
// last history date. Each step feeds the predicted median back into the history, so later
// days are computed from earlier predictions rather than observations.
func PredictAutoregressive(artifact *models.ModelArtifact, days int) ([]models.ForecastPoint, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	if !slices.Equal(artifact.FeatureColumns, FeatureColumns) {
		return nil, &models.CorruptArtifactError{ProductID: artifact.ProductID, Missing: []string{"feature_columns"}}
	}
	m := artifact.Models
	if !m.Lower.Valid(numFeatures) || !m.Median.Valid(numFeatures) || !m.Upper.Valid(numFeatures) {
		return nil, &models.CorruptArtifactError{ProductID: artifact.ProductID, Missing: []string{"models"}}
	}

	dates, qty := splitSeries(artifact.History)
	points := make([]models.ForecastPoint, 0, days)
	for step := 0; step < days; step++ {
		next := dates[len(dates)-1].AddDate(0, 0, 1)
		dates = append(dates, next)
		qty = append(qty, math.NaN())

		rows := BuildFeatures(dates, qty)
		row := rows[len(rows)-1]

		lower := math.Max(m.Lower.Predict(row), 0)
		median := math.Max(m.Median.Predict(row), 0)
		upper := math.Max(m.Upper.Predict(row), median)
		if lower > median {
			lower = median
		}

		points = append(points, models.ForecastPoint{
			Date:              next.Format(models.DateLayout),
			LowerBound:        roundTo(lower, 2),
			PredictedQuantity: roundTo(median, 2),
			UpperBound:        roundTo(upper, 2),
			Confidence:        confidenceFromWidth(lower, upper, median),
		})
		qty[len(qty)-1] = median
	}
	return points, nil
}

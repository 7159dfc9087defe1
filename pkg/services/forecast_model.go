package services

import (
	"math"
	"time"

	"market-pulse-api/pkg/boosting"
	"market-pulse-api/pkg/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	historyWindowDays  = 30
	validationFraction = 0.2
	lowerQuantile      = 0.1
	upperQuantile      = 0.9
)

// TrainQuantileModels fits the lower/median/upper regressors for one product and returns a
// complete artifact. Nothing is persisted here; on any error no artifact is returned.
func TrainQuantileModels(productID string, obs []models.SalesObservation, minDays int) (*models.ModelArtifact, error) {
	start := time.Now()
	series := NormalizeSeries(obs)
	if len(series) < minDays {
		return nil, &models.DataInsufficientError{Required: minDays, Actual: len(series)}
	}

	dates, qty := splitSeries(series)
	x := BuildFeatures(dates, qty)

	n := len(series)
	valSize := int(math.Ceil(float64(n) * validationFraction))
	trainSize := n - valSize
	if trainSize < 1 {
		return nil, &models.DataInsufficientError{Required: minDays, Actual: n}
	}
	trainX, trainY := x[:trainSize], qty[:trainSize]
	valX, valY := x[trainSize:], qty[trainSize:]

	// 3つのモデルは互いに独立なので並行して学習する
	var triple models.QuantileModels
	var g errgroup.Group
	fit := func(stage string, params boosting.Params, dst **boosting.Booster) {
		g.Go(func() error {
			b, err := boosting.Fit(params, trainX, trainY, valX, valY)
			if err != nil {
				return &models.TrainingFailureError{Stage: stage, Err: err}
			}
			*dst = b
			return nil
		})
	}
	fit("lower", boosting.QuantileParams(lowerQuantile), &triple.Lower)
	fit("median", boosting.DefaultParams(), &triple.Median)
	fit("upper", boosting.QuantileParams(upperQuantile), &triple.Upper)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	valPred := triple.Median.PredictBatch(valX)
	allPred := triple.Median.PredictBatch(x)
	metrics := models.ModelMetrics{
		TrainMAE:  roundTo(meanAbsoluteError(qty, allPred), 4),
		TrainRMSE: roundTo(rootMeanSquaredError(qty, allPred), 4),
		ValMAE:    roundTo(meanAbsoluteError(valY, valPred), 4),
		ValRMSE:   roundTo(rootMeanSquaredError(valY, valPred), 4),
	}

	importances := triple.Median.FeatureImportances()
	importance := make(map[string]float64, len(FeatureColumns))
	for i, name := range FeatureColumns {
		importance[name] = roundTo(importances[i], 6)
	}

	history := append([]models.SalesObservation(nil), tail(series, historyWindowDays)...)
	artifact := &models.ModelArtifact{
		ProductID:      productID,
		Models:         triple,
		FeatureColumns: append([]string(nil), FeatureColumns...),
		History:        history,
		Metadata: models.TrainingMetadata{
			RunID:      uuid.NewString(),
			ProductID:  productID,
			TrainedAt:  time.Now().UTC(),
			DataPoints: n,
			TrainSize:  trainSize,
			ValSize:    valSize,
			DateRange: models.DateRange{
				Start: dates[0].Format(models.DateLayout),
				End:   dates[n-1].Format(models.DateLayout),
			},
			BestIteration:     triple.Median.BestIteration,
			Metrics:           metrics,
			FeatureImportance: importance,
			DurationMS:        time.Since(start).Milliseconds(),
		},
	}
	return artifact, nil
}

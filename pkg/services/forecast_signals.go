package services

import (
	"math"
	"time"

	"market-pulse-api/pkg/models"
)

const (
	momentumWindow = 7
	burstMinDays   = 5
	burstStdFloor  = 0.1
)

// DetectMomentum compares the mean of the last seven days with the seven days before.
// With fewer than fourteen days, or a zero previous mean, the ratio is 1.
func DetectMomentum(qty []float64) models.MomentumSignal {
	ratio := 1.0
	var recentMean, previousMean float64
	if len(qty) >= 2*momentumWindow {
		recentMean = calculateMean(qty[len(qty)-momentumWindow:])
		previousMean = calculateMean(qty[len(qty)-2*momentumWindow : len(qty)-momentumWindow])
		if previousMean > 0 {
			ratio = recentMean / previousMean
		}
	}
	return models.MomentumSignal{
		Combined:     roundTo(ratio, 3),
		Status:       momentumStatus(ratio),
		RecentMean:   roundTo(recentMean, 2),
		PreviousMean: roundTo(previousMean, 2),
	}
}

func momentumStatus(ratio float64) string {
	switch {
	case ratio > 1.15:
		return models.MomentumTrendingUp
	case ratio > 1.05:
		return models.MomentumGrowing
	case ratio < 0.85:
		return models.MomentumDeclining
	case ratio < 0.95:
		return models.MomentumFalling
	default:
		return models.MomentumStable
	}
}

// DetectBurst scores the latest day against all earlier days with a population z-score.
// latestDate decides between a weekend (SEASONAL) and weekday (SPIKE) burst.
func DetectBurst(qty []float64, latestDate time.Time) models.BurstSignal {
	if len(qty) < burstMinDays {
		return models.BurstSignal{Score: 0, Level: models.BurstNormal, Type: models.BurstNormal}
	}
	baseline := qty[:len(qty)-1]
	latest := qty[len(qty)-1]

	std := 1.0
	if len(baseline) > 1 {
		std = calculateStandardDeviation(baseline)
	}
	std = math.Max(std, burstStdFloor)
	z := (latest - calculateMean(baseline)) / std

	level := burstLevel(z)
	burstType := models.BurstNormal
	if level != models.BurstNormal {
		burstType = models.BurstSpike
		if isWeekendIndex(weekdayIndex(latestDate)) {
			burstType = models.BurstSeasonal
		}
	}
	return models.BurstSignal{Score: roundTo(z, 2), Level: level, Type: burstType}
}

func burstLevel(z float64) string {
	switch {
	case z > 3:
		return models.BurstCritical
	case z > 2:
		return models.BurstHigh
	case z > 1.5:
		return models.BurstMedium
	default:
		return models.BurstNormal
	}
}

// DetectSignals runs both detectors over a dense series.
func DetectSignals(series []models.SalesObservation) (models.MomentumSignal, models.BurstSignal) {
	dates, qty := splitSeries(series)
	var latest time.Time
	if len(dates) > 0 {
		latest = dates[len(dates)-1]
	}
	return DetectMomentum(qty), DetectBurst(qty, latest)
}

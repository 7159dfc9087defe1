package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-pulse-api/pkg/models"

	"golang.org/x/sync/errgroup"
)

const (
	reportHorizon    = 7
	defaultReportTop = 3
	maxReportTop     = 20
)

// WeeklyReport 週次レポートを生成します
// product_id 指定時はその製品のみ、未指定時は保存済みの全製品を並行評価します。
// 製品単位の失敗はログに残してスキップします。
func (s *ForecastService) WeeklyReport(ctx context.Context, req models.ReportRequest) (*models.WeeklyReport, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = models.StrategyBalanced
	}
	switch strategy {
	case models.StrategyBalanced, models.StrategyVolume, models.StrategyMomentum:
	default:
		return nil, fmt.Errorf("%w: strategy は balanced/volume/momentum のいずれかです", models.ErrInvalidRequest)
	}
	topN := req.TopN
	if topN == 0 {
		topN = defaultReportTop
	}
	topN = max(1, min(topN, maxReportTop))

	var ids []string
	if req.ProductID != "" {
		id, err := SanitizeProductID(req.ProductID)
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.Load(ctx, id); err != nil {
			return nil, err
		}
		ids = []string{id}
	} else {
		list, err := s.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			ids = append(ids, m.ProductID)
		}
	}

	var (
		mu      sync.Mutex
		reports []models.ProductReport
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ReportConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			report, err := s.productReport(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("product_id", id).Msg("レポート対象から除外しました")
				skipped++
				return nil
			}
			reports = append(reports, *report)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		reports[i].Score = roundTo(rankScore(strategy, reports[i]), 4)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].Score != reports[j].Score {
			return reports[i].Score > reports[j].Score
		}
		return reports[i].ProductID < reports[j].ProductID
	})

	summary := map[string]int{
		models.MomentumTrendingUp: 0,
		models.MomentumGrowing:    0,
		models.MomentumStable:     0,
		models.MomentumFalling:    0,
		models.MomentumDeclining:  0,
	}
	attention := []models.ProductReport{}
	for _, r := range reports {
		summary[r.Momentum.Status]++
		if r.NeedsAttention && len(attention) < topN {
			attention = append(attention, r)
		}
	}

	now := time.Now().UTC()
	tomorrow := truncateDay(now).AddDate(0, 0, 1)
	top := reports[:min(topN, len(reports))]
	if top == nil {
		top = []models.ProductReport{}
	}

	s.log.Info().Str("strategy", strategy).Int("products", len(reports)).Int("skipped", skipped).Msg("📊 週次レポートを生成しました")
	return &models.WeeklyReport{
		GeneratedAt: now,
		Period: models.DateRange{
			Start: tomorrow.Format(models.DateLayout),
			End:   tomorrow.AddDate(0, 0, reportHorizon-1).Format(models.DateLayout),
		},
		Strategy:       strategy,
		TopProducts:    top,
		NeedsAttention: attention,
		Summary:        summary,
		TotalProducts:  len(reports),
		Skipped:        skipped,
	}, nil
}

// productReport evaluates one stored product over the report horizon.
func (s *ForecastService) productReport(ctx context.Context, id string) (*models.ProductReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	artifact, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	points, _, err := s.predictWithFallback(artifact, reportHorizon)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.PredictedQuantity
	}
	total := calculateSum(values)
	avg := 0.0
	if len(values) > 0 {
		avg = total / float64(len(values))
	}

	momentum, burst := DetectSignals(artifact.History)
	ensemble := EnsembleForecast(nil, points, models.EnsembleWeights{Rule: 0, ML: 1})
	var rec *models.Recommendation
	if recs := GenerateRecommendations(ensemble.Predictions, momentum, burst); len(recs) > 0 {
		rec = &recs[0]
	}

	return &models.ProductReport{
		ProductID:      id,
		Forecast:       points,
		Total7d:        roundTo(total, 2),
		AvgDaily:       roundTo(avg, 2),
		Momentum:       momentum,
		Burst:          burst,
		Recommendation: rec,
		NeedsAttention: needsAttention(momentum, burst),
	}, nil
}

func needsAttention(m models.MomentumSignal, b models.BurstSignal) bool {
	if m.Status == models.MomentumFalling || m.Status == models.MomentumDeclining {
		return true
	}
	return b.Level != models.BurstNormal
}

// rankScore orders products for a strategy: volume by total demand, momentum by the
// recent/previous ratio, balanced by their product.
func rankScore(strategy string, r models.ProductReport) float64 {
	switch strategy {
	case models.StrategyVolume:
		return r.Total7d
	case models.StrategyMomentum:
		return r.Momentum.Combined
	default:
		return r.Total7d * r.Momentum.Combined
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"market-pulse-api/pkg/models"
	"market-pulse-api/pkg/store"

	"github.com/rs/zerolog"
)

const (
	universalProductID = "universal"
	universalTailDays  = 365
	inventoryHorizon   = 14
)

// ForecastConfig 予測サービスの設定
type ForecastConfig struct {
	MinTrainingDays    int
	MaxForecastDays    int
	MaxSalesDataPoints int
	ChunkSize          int
	ReportConcurrency  int
}

// DefaultForecastConfig returns the production defaults.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		MinTrainingDays:    30,
		MaxForecastDays:    30,
		MaxSalesDataPoints: 50000,
		ChunkSize:          10000,
		ReportConcurrency:  4,
	}
}

// ForecastService 需要予測サービス
// 学習・予測・アンサンブル・推奨をまとめ、製品ごとの書き込みを直列化します。
type ForecastService struct {
	repo    store.Repository
	cache   store.ModelCache
	cfg     ForecastConfig
	log     zerolog.Logger
	monitor *MonitoringService
	locks   keyedMutex
}

// NewForecastService creates the service. cache may be nil when repo is not cached;
// monitor may be nil to disable metrics.
func NewForecastService(repo store.Repository, cache store.ModelCache, cfg ForecastConfig, log zerolog.Logger, monitor *MonitoringService) *ForecastService {
	def := DefaultForecastConfig()
	if cfg.MinTrainingDays <= 0 {
		cfg.MinTrainingDays = def.MinTrainingDays
	}
	if cfg.MaxForecastDays <= 0 {
		cfg.MaxForecastDays = def.MaxForecastDays
	}
	if cfg.MaxSalesDataPoints <= 0 {
		cfg.MaxSalesDataPoints = def.MaxSalesDataPoints
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ReportConcurrency <= 0 {
		cfg.ReportConcurrency = def.ReportConcurrency
	}
	return &ForecastService{
		repo:    repo,
		cache:   cache,
		cfg:     cfg,
		log:     log,
		monitor: monitor,
		locks:   keyedMutex{locks: make(map[string]*keyedLock)},
	}
}

// Config returns the effective configuration.
func (s *ForecastService) Config() ForecastConfig { return s.cfg }

func (s *ForecastService) checkHorizon(days int) error {
	if days < 1 || days > s.cfg.MaxForecastDays {
		return fmt.Errorf("%w: days は1〜%dの範囲で指定してください (got %d)", models.ErrInvalidRequest, s.cfg.MaxForecastDays, days)
	}
	return nil
}

// Train fits and persists a new artifact for productID. The per-product lock is held from
// training through the store write so readers see either the old or the new artifact.
func (s *ForecastService) Train(ctx context.Context, productID string, obs []models.SalesObservation) (*models.TrainingMetadata, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	start := time.Now()
	s.log.Info().Str("product_id", id).Int("rows", len(obs)).Msg("🧠 モデル学習を開始")

	artifact, err := TrainQuantileModels(id, obs, s.cfg.MinTrainingDays)
	if err != nil {
		s.monitor.RecordTraining("failure", time.Since(start))
		var insufficient *models.DataInsufficientError
		if errors.As(err, &insufficient) {
			s.log.Warn().Str("product_id", id).Int("days", insufficient.Actual).Int("required", insufficient.Required).Msg("学習データが不足しています")
		} else {
			s.log.Error().Err(err).Str("product_id", id).Msg("モデル学習に失敗しました")
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, id, artifact); err != nil {
		s.monitor.RecordTraining("failure", time.Since(start))
		return nil, fmt.Errorf("モデルの保存に失敗しました: %w", err)
	}

	s.monitor.RecordTraining("success", time.Since(start))
	meta := artifact.Metadata
	s.log.Info().
		Str("product_id", id).
		Str("run_id", meta.RunID).
		Int("days", meta.DataPoints).
		Float64("val_mae", meta.Metrics.ValMAE).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("✅ モデル学習が完了しました")
	return &meta, nil
}

// TrainFromRecords validates API rows and trains.
func (s *ForecastService) TrainFromRecords(ctx context.Context, productID string, records []models.SalesRecord) (*models.TrainingMetadata, error) {
	if len(records) == 0 {
		return nil, &models.SchemaError{Field: "sales_data"}
	}
	obs, err := ObservationsFromRecords(records)
	if err != nil {
		return nil, err
	}
	return s.Train(ctx, productID, obs)
}

// TrainBatch trains every product in turn. Products with fewer dense days than the
// training minimum are skipped without an attempt; other errors are collected as failures.
func (s *ForecastService) TrainBatch(ctx context.Context, products map[string][]models.SalesObservation) (*models.BatchTrainResult, error) {
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &models.BatchTrainResult{
		Trained: []models.TrainingMetadata{},
		Skipped: []models.BatchOutcome{},
		Failed:  []models.BatchOutcome{},
	}
	var maes []float64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if days := len(NormalizeSeries(products[id])); days < s.cfg.MinTrainingDays {
			reason := (&models.DataInsufficientError{Required: s.cfg.MinTrainingDays, Actual: days}).Error()
			result.Skipped = append(result.Skipped, models.BatchOutcome{ProductID: id, Reason: reason})
			continue
		}
		meta, err := s.Train(ctx, id, products[id])
		if err != nil {
			result.Failed = append(result.Failed, models.BatchOutcome{ProductID: id, Reason: err.Error()})
			continue
		}
		result.Trained = append(result.Trained, *meta)
		maes = append(maes, meta.Metrics.ValMAE)
	}
	if len(maes) > 0 {
		result.AvgValMAE = roundTo(calculateMean(maes), 4)
	}
	s.log.Info().
		Int("trained", len(result.Trained)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("一括学習が完了しました")
	return result, nil
}

// loadArtifact sanitizes the id and loads the current artifact snapshot.
func (s *ForecastService) loadArtifact(ctx context.Context, productID string) (string, *models.ModelArtifact, error) {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return "", nil, err
	}
	artifact, err := s.repo.Load(ctx, id)
	if err != nil {
		return id, nil, err
	}
	return id, artifact, nil
}

// predictWithFallback runs the model and falls back to the statistical forecaster over the
// artifact history when the model produces nothing.
func (s *ForecastService) predictWithFallback(artifact *models.ModelArtifact, days int) ([]models.ForecastPoint, string, error) {
	points, err := PredictAutoregressive(artifact, days)
	if err != nil {
		return nil, "", err
	}
	if len(points) == 0 {
		s.log.Warn().Str("product_id", artifact.ProductID).Str("source", models.SourceFallback).Msg("モデルの予測が空のためフォールバックを使用します")
		s.monitor.RecordForecast(models.SourceFallback)
		return FallbackForecast(artifact.History, days), models.SourceFallback, nil
	}
	s.monitor.RecordForecast(models.SourceModel)
	return points, models.SourceModel, nil
}

// Forecast predicts days ahead for a trained product. A missing model is returned as
// *models.ModelNotFoundError; callers decide whether to use the fallback.
func (s *ForecastService) Forecast(ctx context.Context, productID string, days int) (*models.ForecastResult, error) {
	if err := s.checkHorizon(days); err != nil {
		return nil, err
	}
	id, artifact, err := s.loadArtifact(ctx, productID)
	if err != nil {
		return nil, err
	}
	points, source, err := s.predictWithFallback(artifact, days)
	if err != nil {
		return nil, err
	}
	return &models.ForecastResult{
		ProductID:   id,
		Predictions: points,
		DataPoints:  artifact.Metadata.DataPoints,
		Source:      source,
	}, nil
}

// Hybrid blends caller-supplied rule predictions with the model forecast and derives
// signals and recommendations.
func (s *ForecastService) Hybrid(ctx context.Context, req models.HybridRequest) (*models.HybridResult, error) {
	if err := s.checkHorizon(req.Days); err != nil {
		return nil, err
	}
	id, artifact, err := s.loadArtifact(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	ml, source, err := s.predictWithFallback(artifact, req.Days)
	if err != nil {
		return nil, err
	}

	dataQuality := artifact.Metadata.DataPoints
	if req.DataQualityDays != nil {
		dataQuality = *req.DataQualityDays
	}
	agreement := MeasureAgreement(req.RulePredictions, ml)
	if req.AgreementScore != nil {
		agreement = *req.AgreementScore
	}
	weights := CalculateAdaptiveWeights(dataQuality, agreement)
	ensemble := EnsembleForecast(req.RulePredictions, ml, weights)

	signalSeries := artifact.History
	if len(req.RecentSales) > 0 {
		obs, err := ObservationsFromRecords(req.RecentSales)
		if err != nil {
			return nil, err
		}
		signalSeries = NormalizeSeries(obs)
	}
	momentum, burst := DetectSignals(signalSeries)

	s.log.Info().
		Str("product_id", id).
		Float64("rule_weight", weights.Rule).
		Float64("agreement", agreement).
		Str("trend", ensemble.Trend).
		Msg("🔀 ハイブリッド予測を生成")

	return &models.HybridResult{
		ProductID:       id,
		Weights:         weights,
		MLPredictions:   ml,
		Ensemble:        ensemble,
		Momentum:        momentum,
		Burst:           burst,
		Recommendations: GenerateRecommendations(ensemble.Predictions, momentum, burst),
		DataQualityDays: dataQuality,
		Source:          source,
	}, nil
}

// PredictUniversal forecasts from caller-supplied sales. A stored model is used when the
// product has one; otherwise a model is trained in memory (never persisted), and the
// statistical fallback covers training failures and empty output.
func (s *ForecastService) PredictUniversal(ctx context.Context, req models.UniversalRequest) (*models.UniversalResult, error) {
	if err := s.checkHorizon(req.ForecastDays); err != nil {
		return nil, err
	}
	n := len(req.SalesData)
	if n < 3 || n > s.cfg.MaxSalesDataPoints {
		return nil, fmt.Errorf("%w: sales_data は3〜%d件で指定してください (got %d)", models.ErrInvalidRequest, s.cfg.MaxSalesDataPoints, n)
	}
	id := universalProductID
	if req.ProductID != "" {
		sanitized, err := SanitizeProductID(req.ProductID)
		if err != nil {
			return nil, err
		}
		id = sanitized
	}

	series, dropped := s.ingestChunks(req.SalesData)
	if len(series) == 0 {
		return nil, &models.SchemaError{Field: "date", Reason: "有効な日付の行がありません"}
	}
	s.log.Info().Str("product_id", id).Int("rows", n).Int("days", len(series)).Int("dropped", dropped).Msg("📦 汎用予測データを取り込みました")

	var points []models.ForecastPoint
	modelType := models.ModelTypeFallback
	if id != universalProductID {
		artifact, err := s.repo.Load(ctx, id)
		var notFound *models.ModelNotFoundError
		switch {
		case err == nil:
			if p, perr := PredictAutoregressive(artifact, req.ForecastDays); perr == nil && len(p) > 0 {
				points, modelType = p, models.ModelTypeTrained
			}
		case !errors.As(err, &notFound):
			s.log.Warn().Err(err).Str("product_id", id).Msg("保存済みモデルを読み込めませんでした")
		}
	}
	if points == nil {
		artifact, err := TrainQuantileModels(id, series, s.cfg.MinTrainingDays)
		if err != nil {
			s.log.Warn().Err(err).Str("product_id", id).Msg("オンザフライ学習に失敗したためフォールバックを使用します")
		} else if p, perr := PredictAutoregressive(artifact, req.ForecastDays); perr == nil && len(p) > 0 {
			points, modelType = p, models.ModelTypeOnTheFly
		}
	}
	if points == nil {
		points = FallbackForecast(series, req.ForecastDays)
		modelType = models.ModelTypeFallback
	}
	s.monitor.RecordForecast(modelType)

	momentum, burst := DetectSignals(series)
	return &models.UniversalResult{
		ProductID:   id,
		Predictions: points,
		ModelType:   modelType,
		DataPoints:  len(series),
		DataQuality: roundTo(math.Min(1, float64(len(series))/30), 2),
		DroppedRows: dropped,
		Momentum:    momentum,
		Burst:       burst,
	}, nil
}

// ingestChunks parses records CHUNK_SIZE at a time into a per-day sum, dropping rows whose
// date does not parse. Missing quantities count as zero. Only the last year of days is
// kept, and the result is dense.
func (s *ForecastService) ingestChunks(records []models.SalesRecord) ([]models.SalesObservation, int) {
	byDay := make(map[time.Time]float64)
	dropped := 0
	for start := 0; start < len(records); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(records))
		for _, r := range records[start:end] {
			d, err := ParseDate(r.Date)
			if err != nil {
				dropped++
				continue
			}
			q := 0.0
			if r.Quantity != nil && !math.IsNaN(*r.Quantity) {
				q = math.Max(*r.Quantity, 0)
			}
			byDay[d] += q
		}
	}
	if len(byDay) == 0 {
		return nil, dropped
	}

	var latest time.Time
	for d := range byDay {
		if d.After(latest) {
			latest = d
		}
	}
	cutoff := latest.AddDate(0, 0, -(universalTailDays - 1))
	obs := make([]models.SalesObservation, 0, len(byDay))
	for d, q := range byDay {
		if !d.Before(cutoff) {
			obs = append(obs, models.SalesObservation{Date: d, Quantity: q})
		}
	}
	return NormalizeSeries(obs), dropped
}

// OptimizeInventory plans stock from the first week of a two-week model forecast.
func (s *ForecastService) OptimizeInventory(ctx context.Context, req models.InventoryRequest) (*models.InventoryResult, error) {
	if req.CurrentStock < 0 {
		return nil, fmt.Errorf("%w: current_stock に負の値は指定できません", models.ErrInvalidRequest)
	}
	if req.LeadTimeDays < 1 || req.LeadTimeDays > 30 {
		return nil, fmt.Errorf("%w: lead_time_days は1〜30の範囲で指定してください", models.ErrInvalidRequest)
	}
	if req.ServiceLevel == "" {
		req.ServiceLevel = models.ServiceLevelMedium
	}
	if _, ok := serviceLevelZ[req.ServiceLevel]; !ok {
		return nil, fmt.Errorf("%w: service_level は low/medium/high/critical のいずれかです", models.ErrInvalidRequest)
	}

	id, artifact, err := s.loadArtifact(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	points, _, err := s.predictWithFallback(artifact, inventoryHorizon)
	if err != nil {
		return nil, err
	}
	week := points[:min(7, len(points))]
	demand := make([]float64, len(week))
	for i, p := range week {
		demand[i] = p.PredictedQuantity
	}

	plan, err := PlanInventory(demand, req.CurrentStock, req.LeadTimeDays, req.ServiceLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	return &models.InventoryResult{
		ProductID:    id,
		CurrentStock: req.CurrentStock,
		LeadTimeDays: req.LeadTimeDays,
		Inventory:    plan,
		Forecast7d:   week,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// ForecastProfit projects profit over a model forecast of req.Days days.
func (s *ForecastService) ForecastProfit(ctx context.Context, req models.ProfitRequest) (*models.ProfitResult, error) {
	if err := s.checkHorizon(req.Days); err != nil {
		return nil, err
	}
	// 価格条件はモデルを読む前に検証する
	if _, err := PlanProfit(nil, req.CostPerUnit, req.PricePerUnit, req.FixedCostsWeekly); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	id, artifact, err := s.loadArtifact(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	points, source, err := s.predictWithFallback(artifact, req.Days)
	if err != nil {
		return nil, err
	}
	plan, err := PlanProfit(points, req.CostPerUnit, req.PricePerUnit, req.FixedCostsWeekly)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	s.log.Debug().Str("product_id", id).Int("days", req.Days).Str("status", plan.Status).Msg("利益予測を計算しました")
	return &models.ProfitResult{
		ProductID:   id,
		Days:        req.Days,
		Source:      source,
		Profit:      plan,
		Forecast:    points,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ListModels returns metadata of every stored product.
func (s *ForecastService) ListModels(ctx context.Context) ([]models.TrainingMetadata, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("モデル一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []models.TrainingMetadata{}
	}
	return list, nil
}

// EvictModel removes a product's artifact from the store and the cache.
func (s *ForecastService) EvictModel(ctx context.Context, productID string) error {
	id, err := SanitizeProductID(productID)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.repo.Evict(ctx, id); err != nil {
		return fmt.Errorf("モデルの削除に失敗しました: %w", err)
	}
	s.log.Info().Str("product_id", id).Msg("🗑️ モデルを削除しました")
	return nil
}

// CacheStats returns cache counters, or zero values without a cache.
func (s *ForecastService) CacheStats() models.CacheStats {
	if s.cache == nil {
		return models.CacheStats{}
	}
	return s.cache.Stats()
}

// ClearCache drops every cached artifact. Stored artifacts are untouched.
func (s *ForecastService) ClearCache() {
	if s.cache == nil {
		return
	}
	s.cache.Clear()
	s.log.Info().Msg("モデルキャッシュをクリアしました")
}

// keyedMutex serializes work per key; entries are dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

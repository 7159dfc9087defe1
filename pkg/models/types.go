package models

import (
	"time"

	"market-pulse-api/pkg/boosting"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Confidence labels shared by the predictor, fallback and blender.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Forecast sources reported alongside predictions.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// SalesObservation is one day of sold quantity for a product.
type SalesObservation struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// SalesRecord is a sales row as supplied by API callers. Quantity is a pointer so that a
// missing field can be told apart from zero sales.
type SalesRecord struct {
	Date      string   `json:"date"`
	Quantity  *float64 `json:"quantity"`
	ProductID string   `json:"product_id,omitempty"`
}

// ForecastPoint is a single predicted day with its interval.
type ForecastPoint struct {
	Date              string  `json:"date"`
	LowerBound        float64 `json:"lower_bound"`
	PredictedQuantity float64 `json:"predicted_quantity"`
	UpperBound        float64 `json:"upper_bound"`
	Confidence        string  `json:"confidence"`
}

// QuantileModels is the fixed lower/median/upper regressor triple of a product.
type QuantileModels struct {
	Lower  *boosting.Booster `json:"lower"`
	Median *boosting.Booster `json:"median"`
	Upper  *boosting.Booster `json:"upper"`
}

// ModelMetrics holds the headline accuracy of the median model.
type ModelMetrics struct {
	TrainMAE  float64 `json:"train_mae"`
	TrainRMSE float64 `json:"train_rmse"`
	ValMAE    float64 `json:"val_mae"`
	ValRMSE   float64 `json:"val_rmse"`
}

// DateRange 学習データの期間
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrainingMetadata 学習結果のメタデータ
type TrainingMetadata struct {
	RunID             string             `json:"run_id"`
	ProductID         string             `json:"product_id"`
	TrainedAt         time.Time          `json:"trained_at"`
	DataPoints        int                `json:"data_points"`
	TrainSize         int                `json:"train_size"`
	ValSize           int                `json:"val_size"`
	DateRange         DateRange          `json:"date_range"`
	BestIteration     int                `json:"best_iteration"`
	Metrics           ModelMetrics       `json:"metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	DurationMS        int64              `json:"duration_ms"`
}

// ModelArtifact is everything needed to serve forecasts for one product. Artifacts are
// replaced wholesale on retraining and never mutated in place.
type ModelArtifact struct {
	ProductID      string             `json:"product_id"`
	Models         QuantileModels     `json:"models"`
	FeatureColumns []string           `json:"feature_columns"`
	History        []SalesObservation `json:"history"`
	Metadata       TrainingMetadata   `json:"metadata"`
}

// ForecastResult is the output of the forecast entrypoint.
type ForecastResult struct {
	ProductID   string          `json:"product_id"`
	Predictions []ForecastPoint `json:"predictions"`
	DataPoints  int             `json:"data_points"`
	Source      string          `json:"source"`
}

// EnsembleWeights always sums to 1.
type EnsembleWeights struct {
	Rule float64 `json:"rule"`
	ML   float64 `json:"ml"`
}

// BlendedPoint is one day of the rule/ML ensemble.
type BlendedPoint struct {
	Date              string  `json:"date"`
	DayName           string  `json:"day_name"`
	RuleBased         float64 `json:"rule_based"`
	MLP10             float64 `json:"ml_p10"`
	MLP50             float64 `json:"ml_p50"`
	MLP90             float64 `json:"ml_p90"`
	PredictedQuantity float64 `json:"predicted_quantity"`
	LowerBound        float64 `json:"lower_bound"`
	UpperBound        float64 `json:"upper_bound"`
	Confidence        string  `json:"confidence"`
}

// Trend directions of a blended horizon.
const (
	TrendIncreasing = "INCREASING"
	TrendDecreasing = "DECREASING"
	TrendStable     = "STABLE"
)

// EnsembleResult アンサンブル予測の結果
type EnsembleResult struct {
	Predictions    []BlendedPoint `json:"predictions"`
	AgreementScore float64        `json:"agreement_score"`
	Trend          string         `json:"trend"`
	Confidence     string         `json:"confidence"`
}

// Momentum statuses.
const (
	MomentumTrendingUp = "TRENDING_UP"
	MomentumGrowing    = "GROWING"
	MomentumStable     = "STABLE"
	MomentumFalling    = "FALLING"
	MomentumDeclining  = "DECLINING"
)

// MomentumSignal compares the last seven days against the seven before.
type MomentumSignal struct {
	Combined     float64 `json:"combined"`
	Status       string  `json:"status"`
	RecentMean   float64 `json:"recent_mean"`
	PreviousMean float64 `json:"previous_mean"`
}

// Burst levels and types.
const (
	BurstCritical = "CRITICAL"
	BurstHigh     = "HIGH"
	BurstMedium   = "MEDIUM"
	BurstNormal   = "NORMAL"
	BurstSeasonal = "SEASONAL"
	BurstSpike    = "SPIKE"
)

// BurstSignal is the z-score of the latest day against the preceding days.
type BurstSignal struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
	Type  string  `json:"type"`
}

// RecommendationType enumerates the recommendation rules in evaluation order.
type RecommendationType string

const (
	RecommendScaleUp      RecommendationType = "SCALE_UP"
	RecommendPeakStrategy RecommendationType = "PEAK_STRATEGY"
	RecommendIntervention RecommendationType = "INTERVENTION"
	RecommendOptimize     RecommendationType = "OPTIMIZE"
	RecommendStandard     RecommendationType = "STANDARD"
)

// Priority is a recommendation urgency label.
type Priority string

const (
	PriorityUrgent  Priority = "URGENT"
	PriorityHigh    Priority = "HIGH"
	PriorityPenting Priority = "PENTING"
	PriorityMedium  Priority = "MEDIUM"
	PriorityRendah  Priority = "RENDAH"
)

// Rank orders priorities, lower first. Unknown labels sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityPenting:
		return 2
	case PriorityMedium:
		return 3
	case PriorityRendah:
		return 4
	}
	return 99
}

// StockPhase is one half of a peak-aware stocking plan.
type StockPhase struct {
	PhaseName   string `json:"phase_name"`
	StockNeeded int    `json:"stock_needed"`
	DailyAvg    int    `json:"daily_avg"`
	Advice      string `json:"advice"`
	Warning     string `json:"warning,omitempty"`
	Days        []int  `json:"days"`
}

// StockSavings compares a flat +30% plan against the phased plan.
type StockSavings struct {
	Amount     int `json:"amount"`
	TotalSmart int `json:"total_smart"`
	TotalNaive int `json:"total_naive"`
	Percentage int `json:"percentage"`
}

// PeakInfo locates the peak day in the horizon (Index is 1-based).
type PeakInfo struct {
	Date     string `json:"date"`
	DayName  string `json:"day_name"`
	Quantity int    `json:"quantity"`
	Index    int    `json:"index"`
}

// Recommendation is a tagged variant keyed by Type; only the payload fields of that type are set.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Icon        string             `json:"icon"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	Action      string             `json:"action,omitempty"`
	Reasoning   []string           `json:"reasoning,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Phases      []StockPhase       `json:"phases,omitempty"`
	Savings     *StockSavings      `json:"savings,omitempty"`
	PeakInfo    *PeakInfo          `json:"peak_info,omitempty"`
	StockTarget int                `json:"stock_target,omitempty"`
	DailyAvg    float64            `json:"daily_avg,omitempty"`
}

// TrainRequest 学習リクエスト
type TrainRequest struct {
	ProductID string        `json:"product_id" binding:"required"`
	SalesData []SalesRecord `json:"sales_data" binding:"required"`
}

// ForecastRequest 予測リクエスト（クエリパラメータ）
type ForecastRequest struct {
	ProductID string `form:"product_id" binding:"required"`
	Days      int    `form:"days" default:"7" binding:"min=1"`
}

// BatchOutcome records why a product was not trained in a batch run.
type BatchOutcome struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// BatchTrainResult 一括学習の結果
type BatchTrainResult struct {
	Trained   []TrainingMetadata `json:"trained"`
	Skipped   []BatchOutcome     `json:"skipped"`
	Failed    []BatchOutcome     `json:"failed"`
	AvgValMAE float64            `json:"avg_val_mae"`
}

// HybridRequest asks for a rule/ML blended forecast. DataQualityDays and AgreementScore are
// optional hints; RecentSales, when present, feeds the signal detectors.
type HybridRequest struct {
	ProductID       string          `json:"product_id" binding:"required"`
	RulePredictions []ForecastPoint `json:"rule_predictions"`
	DataQualityDays *int            `json:"data_quality_days,omitempty"`
	AgreementScore  *float64        `json:"agreement_score,omitempty"`
	RecentSales     []SalesRecord   `json:"recent_sales,omitempty"`
	Days            int             `json:"days" default:"7" binding:"min=1"`
}

// HybridResult ハイブリッド予測の結果
type HybridResult struct {
	ProductID       string           `json:"product_id"`
	Weights         EnsembleWeights  `json:"weights"`
	MLPredictions   []ForecastPoint  `json:"ml_predictions"`
	Ensemble        EnsembleResult   `json:"ensemble"`
	Momentum        MomentumSignal   `json:"momentum"`
	Burst           BurstSignal      `json:"burst"`
	Recommendations []Recommendation `json:"recommendations"`
	DataQualityDays int              `json:"data_quality_days"`
	Source          string           `json:"source"`
}

// Universal prediction model types.
const (
	ModelTypeTrained  = "trained"
	ModelTypeOnTheFly = "on-the-fly"
	ModelTypeFallback = "fallback"
)

// UniversalRequest predicts from caller-supplied sales without requiring a stored model.
type UniversalRequest struct {
	SalesData    []SalesRecord `json:"sales_data" binding:"required,min=3"`
	ForecastDays int           `json:"forecast_days" default:"7" binding:"min=1"`
	ProductID    string        `json:"product_id,omitempty" binding:"max=100"`
}

// UniversalResult 汎用予測の結果
type UniversalResult struct {
	ProductID   string          `json:"product_id"`
	Predictions []ForecastPoint `json:"predictions"`
	ModelType   string          `json:"model_type"`
	DataPoints  int             `json:"data_points"`
	DataQuality float64         `json:"data_quality"`
	DroppedRows int             `json:"dropped_rows"`
	Momentum    MomentumSignal  `json:"momentum"`
	Burst       BurstSignal     `json:"burst"`
}

// Inventory service levels.
const (
	ServiceLevelLow      = "low"
	ServiceLevelMedium   = "medium"
	ServiceLevelHigh     = "high"
	ServiceLevelCritical = "critical"
)

// Inventory statuses.
const (
	InventoryCritical = "CRITICAL"
	InventoryReorder  = "REORDER"
	InventoryOK       = "OK"
)

// InventoryRequest 在庫最適化リクエスト
type InventoryRequest struct {
	ProductID    string  `json:"product_id" binding:"required"`
	CurrentStock float64 `json:"current_stock" binding:"min=0"`
	LeadTimeDays int     `json:"lead_time_days" default:"3" binding:"min=1,max=30"`
	ServiceLevel string  `json:"service_level" default:"medium" binding:"oneof=low medium high critical"`
}

// InventoryPlan is the safety-stock and reorder calculation for one product.
type InventoryPlan struct {
	AvgDailyDemand float64 `json:"avg_daily_demand"`
	DemandStd      float64 `json:"demand_std"`
	ServiceLevel   string  `json:"service_level"`
	ZScore         float64 `json:"z_score"`
	SafetyStock    int     `json:"safety_stock"`
	ReorderPoint   int     `json:"reorder_point"`
	OrderQuantity  int     `json:"order_quantity"`
	DaysOfCover    float64 `json:"days_of_cover"`
	Status         string  `json:"status"`
}

// InventoryResult 在庫最適化の結果
type InventoryResult struct {
	ProductID    string          `json:"product_id"`
	CurrentStock float64         `json:"current_stock"`
	LeadTimeDays int             `json:"lead_time_days"`
	Inventory    InventoryPlan   `json:"inventory"`
	Forecast7d   []ForecastPoint `json:"forecast_7days"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Profit statuses.
const (
	ProfitProfitable = "PROFITABLE"
	ProfitLoss       = "LOSS"
)

// ProfitRequest 利益予測リクエスト
type ProfitRequest struct {
	ProductID        string  `json:"product_id" binding:"required"`
	CostPerUnit      float64 `json:"cost_per_unit" binding:"min=0"`
	PricePerUnit     float64 `json:"price_per_unit" binding:"gt=0"`
	FixedCostsWeekly float64 `json:"fixed_costs_weekly" binding:"min=0"`
	Days             int     `json:"days" default:"7" binding:"min=1"`
}

// ProfitDay is the projected economics of one forecast day. ProfitLow and ProfitHigh use the
// lower and upper bound quantities.
type ProfitDay struct {
	Date         string  `json:"date"`
	Units        float64 `json:"units"`
	Revenue      float64 `json:"revenue"`
	VariableCost float64 `json:"variable_cost"`
	FixedCost    float64 `json:"fixed_cost"`
	Profit       float64 `json:"profit"`
	ProfitLow    float64 `json:"profit_low"`
	ProfitHigh   float64 `json:"profit_high"`
}

// ProfitPlan totals a daily profit projection. BreakEvenUnits is nil when each unit loses money.
type ProfitPlan struct {
	Daily             []ProfitDay `json:"daily"`
	TotalUnits        float64     `json:"total_units"`
	TotalRevenue      float64     `json:"total_revenue"`
	TotalVariableCost float64     `json:"total_variable_cost"`
	TotalFixedCost    float64     `json:"total_fixed_cost"`
	TotalProfit       float64     `json:"total_profit"`
	ProfitLow         float64     `json:"profit_low"`
	ProfitHigh        float64     `json:"profit_high"`
	UnitMargin        float64     `json:"unit_margin"`
	MarginPct         float64     `json:"margin_pct"`
	BreakEvenUnits    *int        `json:"break_even_units"`
	ProfitableDays    int         `json:"profitable_days"`
	Status            string      `json:"status"`
}

// ProfitResult 利益予測の結果
type ProfitResult struct {
	ProductID   string          `json:"product_id"`
	Days        int             `json:"days"`
	Source      string          `json:"source"`
	Profit      ProfitPlan      `json:"profit_analysis"`
	Forecast    []ForecastPoint `json:"forecast"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Report ranking strategies.
const (
	StrategyBalanced = "balanced"
	StrategyVolume   = "volume"
	StrategyMomentum = "momentum"
)

// ReportRequest 週次レポートのリクエスト
type ReportRequest struct {
	ProductID string `form:"product_id"`
	Strategy  string `form:"strategy" default:"balanced" binding:"oneof=balanced volume momentum"`
	TopN      int    `form:"top_n" default:"3"`
}

// ProductReport is one product's line in the weekly report.
type ProductReport struct {
	ProductID      string          `json:"product_id"`
	Forecast       []ForecastPoint `json:"forecast"`
	Total7d        float64         `json:"total_7d"`
	AvgDaily       float64         `json:"avg_daily"`
	Momentum       MomentumSignal  `json:"momentum"`
	Burst          BurstSignal     `json:"burst"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Score          float64         `json:"score"`
	NeedsAttention bool            `json:"needs_attention"`
}

// WeeklyReport 週次レポート
type WeeklyReport struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	Period         DateRange       `json:"period"`
	Strategy       string          `json:"strategy"`
	TopProducts    []ProductReport `json:"top_products"`
	NeedsAttention []ProductReport `json:"needs_attention"`
	Summary        map[string]int  `json:"summary"`
	TotalProducts  int             `json:"total_products"`
	Skipped        int             `json:"skipped"`
}

// CacheStats モデルキャッシュの統計
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Evictions  uint64  `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

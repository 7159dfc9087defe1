package services

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"market-pulse-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// makeSeries は start から days 日分の連続した売上系列を生成する
func makeSeries(start time.Time, days int, qty func(d time.Time) float64) []models.SalesObservation {
	out := make([]models.SalesObservation, days)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i] = models.SalesObservation{Date: d, Quantity: qty(d)}
	}
	return out
}

// weekendPattern は平日70・週末100のパターン
func weekendPattern(d time.Time) float64 {
	if isWeekendIndex(weekdayIndex(d)) {
		return 100
	}
	return 70
}

func constant(v float64) func(time.Time) float64 {
	return func(time.Time) float64 { return v }
}

func blended(values []float64, conf string) []models.BlendedPoint {
	points := make([]models.BlendedPoint, len(values))
	for i, v := range values {
		d := monday.AddDate(0, 0, i)
		points[i] = models.BlendedPoint{
			Date:              d.Format(models.DateLayout),
			DayName:           dayNameJP(d),
			PredictedQuantity: v,
			Confidence:        conf,
		}
	}
	return points
}

func TestBuildFeaturesCalendar(t *testing.T) {
	series := makeSeries(monday, 7, constant(10))
	dates, qty := splitSeries(series)
	rows := BuildFeatures(dates, qty)

	require.Len(t, rows, 7)
	// 2024-01-01 は月曜日
	assert.Equal(t, 0.0, rows[0][colDayOfWeek])
	assert.Equal(t, 1.0, rows[0][colIsPayday])
	assert.Equal(t, 0.0, rows[0][colIsWeekend])
	// 土曜日
	assert.Equal(t, 5.0, rows[5][colDayOfWeek])
	assert.Equal(t, 1.0, rows[5][colIsWeekend])
	assert.Equal(t, 1.0, rows[6][colWeekOfMonth])
	assert.Len(t, FeatureColumns, numFeatures)
}

func TestBuildFeaturesFillOrder(t *testing.T) {
	dates := []time.Time{monday, monday.AddDate(0, 0, 1), monday.AddDate(0, 0, 2)}
	qty := []float64{10, 20, 30}
	rows := BuildFeatures(dates, qty)

	// lag_1 の先頭は後方補完される
	assert.Equal(t, 10.0, rows[0][colLag1])
	assert.Equal(t, 20.0, rows[2][colLag1])
	// データが存在しない列は0で埋まる
	for _, r := range rows {
		assert.Equal(t, 0.0, r[colLag7])
		assert.Equal(t, 0.0, r[colLag14])
	}
	// 標本標準偏差は2点目以降で定義され、先頭2行は後方補完される
	want := calculateSampleStandardDeviation([]float64{10, 20})
	assert.InDelta(t, want, rows[0][colRollingStd7], 1e-9)
	assert.InDelta(t, want, rows[2][colRollingStd7], 1e-9)
}

func TestBuildFeaturesIdempotentAndLeakFree(t *testing.T) {
	series := makeSeries(monday, 40, weekendPattern)
	dates, qty := splitSeries(series)

	first := BuildFeatures(dates, qty)
	second := BuildFeatures(dates, qty)
	assert.Equal(t, first, second)

	// 20日目の値を変えても、それ以前と当日の特徴量は変わらない
	changed := append([]float64(nil), qty...)
	changed[20] = 9999
	altered := BuildFeatures(dates, changed)
	for i := 0; i <= 20; i++ {
		assert.Equal(t, first[i], altered[i], "row %d", i)
	}
	assert.NotEqual(t, first[21], altered[21])
}

func TestBuildFeaturesUnknownTail(t *testing.T) {
	series := makeSeries(monday, 20, constant(50))
	dates, qty := splitSeries(series)
	dates = append(dates, dates[len(dates)-1].AddDate(0, 0, 1))
	qty = append(qty, math.NaN())

	rows := BuildFeatures(dates, qty)
	last := rows[len(rows)-1]
	for c, v := range last {
		assert.False(t, math.IsNaN(v), "column %s", FeatureColumns[c])
	}
	assert.Equal(t, 50.0, last[colLag1])
	assert.Equal(t, 50.0, last[colRollingMean7])
}

func TestTrainQuantileModelsInsufficientData(t *testing.T) {
	_, err := TrainQuantileModels("P001", makeSeries(monday, 20, constant(10)), 30)

	var insufficient *models.DataInsufficientError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 30, insufficient.Required)
	assert.Equal(t, 20, insufficient.Actual)
	assert.Contains(t, err.Error(), "30")
}

// noisyWeekendPattern は weekendPattern に seed ごとの ±5 の揺らぎを加える
func noisyWeekendPattern(seed int64) func(time.Time) float64 {
	rng := rand.New(rand.NewSource(seed))
	return func(d time.Time) float64 {
		return weekendPattern(d) + math.Round(rng.Float64()*10-5)
	}
}

func TestTrainAndPredictWeekendUplift(t *testing.T) {
	seeds := []int64{1, 7, 42, 99, 2024}
	var weekendMeans, weekdayMeans []float64

	for _, seed := range seeds {
		series := makeSeries(monday, 90, noisyWeekendPattern(seed))
		artifact, err := TrainQuantileModels("P001", series, 30)
		require.NoError(t, err)

		meta := artifact.Metadata
		assert.Equal(t, 90, meta.DataPoints)
		assert.Equal(t, 18, meta.ValSize)
		assert.Equal(t, 72, meta.TrainSize)
		assert.NotEmpty(t, meta.RunID)
		assert.Len(t, artifact.History, historyWindowDays)
		assert.Equal(t, FeatureColumns, artifact.FeatureColumns)
		assert.Len(t, meta.FeatureImportance, numFeatures)

		points, err := PredictAutoregressive(artifact, 7)
		require.NoError(t, err)
		require.Len(t, points, 7)

		lastDate := series[len(series)-1].Date
		var weekend, weekday []float64
		for i, p := range points {
			// 日付は最終履歴日の翌日から連続する
			assert.Equal(t, lastDate.AddDate(0, 0, i+1).Format(models.DateLayout), p.Date)
			assert.LessOrEqual(t, p.LowerBound, p.PredictedQuantity)
			assert.LessOrEqual(t, p.PredictedQuantity, p.UpperBound)
			assert.GreaterOrEqual(t, p.LowerBound, 0.0)

			d, err := ParseDate(p.Date)
			require.NoError(t, err)
			if isWeekendIndex(weekdayIndex(d)) {
				weekend = append(weekend, p.PredictedQuantity)
			} else {
				weekday = append(weekday, p.PredictedQuantity)
			}
		}
		require.NotEmpty(t, weekend)
		require.NotEmpty(t, weekday)
		weekendMeans = append(weekendMeans, calculateMean(weekend))
		weekdayMeans = append(weekdayMeans, calculateMean(weekday))
	}

	// 週末の押し上げは複数シードの平均で判定する
	assert.Greater(t, calculateMean(weekendMeans), calculateMean(weekdayMeans))
}

func TestPredictAutoregressiveRejectsCorruptArtifact(t *testing.T) {
	artifact, err := TrainQuantileModels("P001", makeSeries(monday, 35, weekendPattern), 30)
	require.NoError(t, err)

	artifact.FeatureColumns = []string{"lag_1"}
	_, err = PredictAutoregressive(artifact, 3)
	var corrupt *models.CorruptArtifactError
	require.True(t, errors.As(err, &corrupt))

	artifact.FeatureColumns = FeatureColumns
	artifact.Models.Upper = nil
	_, err = PredictAutoregressive(artifact, 3)
	require.True(t, errors.As(err, &corrupt))
	assert.Contains(t, corrupt.Missing, "models.upper")
}

func TestPredictAutoregressiveRejectsBrokenTreeNode(t *testing.T) {
	artifact, err := TrainQuantileModels("P001", makeSeries(monday, 35, weekendPattern), 30)
	require.NoError(t, err)

	// 分岐ノードの参照列を壊す（読み込み後に見つかった破損でもpanicしないこと）
	patched := false
	for _, tree := range artifact.Models.Median.Trees {
		for i := range tree.Nodes {
			if tree.Nodes[i].Feature >= 0 {
				tree.Nodes[i].Feature = 99
				patched = true
				break
			}
		}
		if patched {
			break
		}
	}
	require.True(t, patched, "学習済みモデルに分岐ノードがありません")

	var corrupt *models.CorruptArtifactError
	require.True(t, errors.As(artifact.Validate(), &corrupt))
	assert.Equal(t, []string{"models"}, corrupt.Missing)

	assert.NotPanics(t, func() {
		_, err = PredictAutoregressive(artifact, 3)
	})
	require.True(t, errors.As(err, &corrupt))
}

func TestFallbackForecast(t *testing.T) {
	series := makeSeries(monday, 45, weekendPattern)

	first := FallbackForecast(series, 10)
	second := FallbackForecast(series, 10)
	require.Len(t, first, 10)
	assert.Equal(t, first, second)

	for i, p := range first {
		assert.Equal(t, series[len(series)-1].Date.AddDate(0, 0, i+1).Format(models.DateLayout), p.Date)
		assert.GreaterOrEqual(t, p.PredictedQuantity, 1.0)
		assert.LessOrEqual(t, p.LowerBound, p.PredictedQuantity)
		assert.LessOrEqual(t, p.PredictedQuantity, p.UpperBound)
		assert.Equal(t, models.ConfidenceMedium, p.Confidence)
	}

	assert.Nil(t, FallbackForecast(nil, 7))
	assert.Nil(t, FallbackForecast(series, 0))
}

func TestFallbackTiers(t *testing.T) {
	tests := []struct {
		days       int
		confidence string
		scale      float64
	}{
		{90, models.ConfidenceHigh, 1.0},
		{60, models.ConfidenceHigh, 1.0},
		{45, models.ConfidenceMedium, 0.8},
		{14, models.ConfidenceMedium, 0.6},
		{10, models.ConfidenceLow, 0.4},
		{3, models.ConfidenceLow, 0.2},
	}
	for _, tt := range tests {
		tier := tierFor(tt.days)
		assert.Equal(t, tt.confidence, tier.confidence, "days=%d", tt.days)
		assert.Equal(t, tt.scale, tier.variationScale, "days=%d", tt.days)
	}
}

func TestFallbackForecastShortHistory(t *testing.T) {
	// 1日分しかなくても予測できる
	points := FallbackForecast(makeSeries(monday, 1, constant(5)), 3)
	require.Len(t, points, 3)
	for _, p := range points {
		assert.Equal(t, models.ConfidenceLow, p.Confidence)
		assert.GreaterOrEqual(t, p.PredictedQuantity, 1.0)
	}
}

func TestDetectMomentum(t *testing.T) {
	series := func(previous, recent float64) []float64 {
		out := make([]float64, 0, 14)
		for i := 0; i < 7; i++ {
			out = append(out, previous)
		}
		for i := 0; i < 7; i++ {
			out = append(out, recent)
		}
		return out
	}

	tests := []struct {
		name   string
		qty    []float64
		status string
		ratio  float64
	}{
		{"上昇", series(100, 120), models.MomentumTrendingUp, 1.2},
		{"成長", series(100, 110), models.MomentumGrowing, 1.1},
		{"安定", series(100, 100), models.MomentumStable, 1.0},
		{"やや減少", series(100, 90), models.MomentumFalling, 0.9},
		{"減少", series(100, 70), models.MomentumDeclining, 0.7},
		{"データ不足", []float64{1, 2, 3}, models.MomentumStable, 1.0},
		{"前週ゼロ", series(0, 50), models.MomentumStable, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DetectMomentum(tt.qty)
			assert.Equal(t, tt.status, m.Status)
			assert.InDelta(t, tt.ratio, m.Combined, 1e-9)
		})
	}
}

func TestDetectBurst(t *testing.T) {
	wednesday := monday.AddDate(0, 0, 2)
	saturday := monday.AddDate(0, 0, 5)

	b := DetectBurst([]float64{10, 10, 10, 10, 10.4}, wednesday)
	assert.Equal(t, models.BurstCritical, b.Level)
	assert.Equal(t, models.BurstSpike, b.Type)
	assert.InDelta(t, 4.0, b.Score, 1e-9)

	b = DetectBurst([]float64{10, 10, 10, 10, 10.4}, saturday)
	assert.Equal(t, models.BurstSeasonal, b.Type)

	b = DetectBurst([]float64{10, 12, 10, 12, 11}, wednesday)
	assert.Equal(t, models.BurstNormal, b.Level)
	assert.Equal(t, models.BurstNormal, b.Type)

	b = DetectBurst([]float64{1, 2, 300}, wednesday)
	assert.Equal(t, models.BurstNormal, b.Level)
	assert.Equal(t, 0.0, b.Score)
}

func TestCalculateAdaptiveWeights(t *testing.T) {
	tests := []struct {
		days      int
		agreement float64
		rule      float64
	}{
		{45, 0.9, 0.7},
		{95, 0.85, 0.3},
		{70, 0.5, 0.5},
		{60, 0.9, 0.5},
		{90, 0.95, 0.5},
		{91, 0.8, 0.3},
		{120, 0.79, 0.5},
	}
	for _, tt := range tests {
		w := CalculateAdaptiveWeights(tt.days, tt.agreement)
		assert.InDelta(t, tt.rule, w.Rule, 1e-9, "days=%d agreement=%.2f", tt.days, tt.agreement)
		assert.InDelta(t, 1.0, w.Rule+w.ML, 1e-9)
	}
}

func TestEnsembleForecast(t *testing.T) {
	rule := []models.ForecastPoint{
		{Date: "2024-01-01", PredictedQuantity: 100},
		{Date: "2024-01-02", PredictedQuantity: 100},
	}
	ml := []models.ForecastPoint{
		{Date: "2024-01-01", LowerBound: 70, PredictedQuantity: 80, UpperBound: 90},
		{Date: "2024-01-03", LowerBound: 100, PredictedQuantity: 110, UpperBound: 120},
	}

	result := EnsembleForecast(rule, ml, models.EnsembleWeights{Rule: 0.5, ML: 0.5})
	require.Len(t, result.Predictions, 3)

	day1 := result.Predictions[0]
	assert.Equal(t, "2024-01-01", day1.Date)
	assert.Equal(t, "月", day1.DayName)
	assert.InDelta(t, 90.0, day1.PredictedQuantity, 1e-9)
	assert.Equal(t, 70.0, day1.LowerBound)
	assert.Equal(t, 90.0, day1.UpperBound)

	// ML側が欠けた日はルール値を3分位すべてに使う
	day2 := result.Predictions[1]
	assert.Equal(t, 100.0, day2.MLP10)
	assert.Equal(t, 100.0, day2.MLP50)
	assert.Equal(t, 100.0, day2.MLP90)
	assert.InDelta(t, 100.0, day2.PredictedQuantity, 1e-9)

	// ルール側が欠けた日はルール値0として扱う
	day3 := result.Predictions[2]
	assert.Equal(t, 0.0, day3.RuleBased)
	assert.InDelta(t, 55.0, day3.PredictedQuantity, 1e-9)
	assert.LessOrEqual(t, day3.LowerBound, day3.PredictedQuantity)

	assert.Equal(t, models.TrendDecreasing, result.Trend)
}

func TestEnsembleForecastEmpty(t *testing.T) {
	result := EnsembleForecast(nil, nil, models.EnsembleWeights{Rule: 0.5, ML: 0.5})
	assert.Empty(t, result.Predictions)
	assert.Equal(t, models.TrendStable, result.Trend)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
}

func TestMeasureAgreement(t *testing.T) {
	rule := []models.ForecastPoint{{Date: "2024-01-01", PredictedQuantity: 100}}
	ml := []models.ForecastPoint{{Date: "2024-01-01", PredictedQuantity: 80}}
	assert.InDelta(t, 0.75, MeasureAgreement(rule, ml), 1e-9)

	assert.Equal(t, 0.0, MeasureAgreement(rule, nil))
	// 乖離が大きい場合は0で下げ止まる
	far := []models.ForecastPoint{{Date: "2024-01-01", PredictedQuantity: 10}}
	assert.InDelta(t, 0.0, MeasureAgreement(rule, far), 1e-9)
}

func TestGenerateRecommendations(t *testing.T) {
	stable := models.MomentumSignal{Combined: 1, Status: models.MomentumStable}
	normal := models.BurstSignal{Level: models.BurstNormal, Type: models.BurstNormal}

	t.Run("SCALE_UP", func(t *testing.T) {
		burst := models.BurstSignal{Score: 4, Level: models.BurstCritical, Type: models.BurstSpike}
		recs := GenerateRecommendations(blended([]float64{100, 105, 110, 115, 120, 125, 130}, models.ConfidenceHigh), stable, burst)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecommendScaleUp, recs[0].Type)
		assert.Equal(t, models.PriorityUrgent, recs[0].Priority)
		assert.Equal(t, 1046, recs[0].StockTarget)
	})

	t.Run("PEAK_STRATEGY", func(t *testing.T) {
		recs := GenerateRecommendations(blended([]float64{100, 120, 150, 120, 100, 90, 80}, models.ConfidenceHigh), stable, normal)
		require.Len(t, recs, 1)
		rec := recs[0]
		assert.Equal(t, models.RecommendPeakStrategy, rec.Type)
		assert.Equal(t, models.PriorityHigh, rec.Priority)
		require.Len(t, rec.Phases, 2)
		assert.Equal(t, 444, rec.Phases[0].StockNeeded)
		assert.Equal(t, 390, rec.Phases[1].StockNeeded)
		assert.Equal(t, []int{1, 2, 3}, rec.Phases[0].Days)
		require.NotNil(t, rec.Savings)
		assert.Equal(t, 988, rec.Savings.TotalNaive)
		assert.Equal(t, 834, rec.Savings.TotalSmart)
		assert.Equal(t, 154, rec.Savings.Amount)
		require.NotNil(t, rec.PeakInfo)
		assert.Equal(t, 3, rec.PeakInfo.Index)
		assert.Equal(t, 150, rec.PeakInfo.Quantity)
	})

	t.Run("peak in the last two days is not a strategy", func(t *testing.T) {
		recs := GenerateRecommendations(blended([]float64{100, 100, 100, 100, 100, 150, 100}, models.ConfidenceMedium), stable, normal)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecommendStandard, recs[0].Type)
	})

	t.Run("INTERVENTION", func(t *testing.T) {
		declining := models.MomentumSignal{Combined: 0.7, Status: models.MomentumDeclining}
		recs := GenerateRecommendations(blended([]float64{100, 98, 96, 94, 92, 91, 90}, models.ConfidenceHigh), declining, normal)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecommendIntervention, recs[0].Type)
		assert.Equal(t, models.PriorityPenting, recs[0].Priority)
		assert.NotEmpty(t, recs[0].Suggestions)
	})

	t.Run("OPTIMIZE", func(t *testing.T) {
		recs := GenerateRecommendations(blended([]float64{100, 100, 100, 100, 100, 100, 100}, models.ConfidenceHigh), stable, normal)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecommendOptimize, recs[0].Type)
		assert.Equal(t, models.PriorityRendah, recs[0].Priority)
		assert.Equal(t, 300, recs[0].StockTarget)
	})

	t.Run("STANDARD", func(t *testing.T) {
		growing := models.MomentumSignal{Combined: 1.1, Status: models.MomentumGrowing}
		recs := GenerateRecommendations(blended([]float64{100, 100, 100, 100, 100, 100, 100, 500}, models.ConfidenceMedium), growing, normal)
		require.Len(t, recs, 1)
		assert.Equal(t, models.RecommendStandard, recs[0].Type)
		assert.Equal(t, models.PriorityMedium, recs[0].Priority)
		// 8日目以降は評価しない
		assert.Equal(t, 700, recs[0].StockTarget)
		assert.Equal(t, 100.0, recs[0].DailyAvg)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, GenerateRecommendations(nil, stable, normal))
	})
}

func TestPlanInventory(t *testing.T) {
	flat := []float64{10, 10, 10, 10, 10, 10, 10}
	plan, err := PlanInventory(flat, 100, 3, models.ServiceLevelMedium)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.SafetyStock)
	assert.Equal(t, 30, plan.ReorderPoint)
	assert.Equal(t, 0, plan.OrderQuantity)
	assert.Equal(t, 10.0, plan.DaysOfCover)
	assert.Equal(t, models.InventoryOK, plan.Status)
	assert.Equal(t, 1.65, plan.ZScore)

	varying := []float64{10, 20, 10, 20, 10, 20, 10}
	tests := []struct {
		stock  float64
		status string
	}{
		{10, models.InventoryCritical},
		{50, models.InventoryReorder},
		{100, models.InventoryOK},
	}
	for _, tt := range tests {
		plan, err := PlanInventory(varying, tt.stock, 3, models.ServiceLevelMedium)
		require.NoError(t, err)
		assert.Equal(t, 15, plan.SafetyStock)
		assert.Equal(t, 58, plan.ReorderPoint)
		assert.Equal(t, tt.status, plan.Status, "stock=%.0f", tt.stock)
	}

	plan, err = PlanInventory(varying, 10, 3, models.ServiceLevelMedium)
	require.NoError(t, err)
	assert.Equal(t, 148, plan.OrderQuantity)

	zero, err := PlanInventory([]float64{0, 0, 0}, 5, 3, models.ServiceLevelLow)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.DaysOfCover)

	_, err = PlanInventory(flat, 10, 3, "extreme")
	assert.Error(t, err)
	_, err = PlanInventory(flat, 10, 0, models.ServiceLevelLow)
	assert.Error(t, err)
	_, err = PlanInventory(flat, -1, 3, models.ServiceLevelLow)
	assert.Error(t, err)
}

func TestPlanProfit(t *testing.T) {
	points := []models.ForecastPoint{
		{Date: "2024-03-01", LowerBound: 8, PredictedQuantity: 10, UpperBound: 12},
		{Date: "2024-03-02", LowerBound: 15, PredictedQuantity: 20, UpperBound: 25},
	}

	t.Run("黒字", func(t *testing.T) {
		// 固定費700/週 → 1日100
		plan, err := PlanProfit(points, 40, 100, 700)
		require.NoError(t, err)
		require.Len(t, plan.Daily, 2)
		assert.Equal(t, models.ProfitDay{
			Date: "2024-03-01", Units: 10, Revenue: 1000, VariableCost: 400, FixedCost: 100,
			Profit: 500, ProfitLow: 380, ProfitHigh: 620,
		}, plan.Daily[0])
		assert.Equal(t, 1100.0, plan.Daily[1].Profit)

		assert.Equal(t, 30.0, plan.TotalUnits)
		assert.Equal(t, 3000.0, plan.TotalRevenue)
		assert.Equal(t, 1200.0, plan.TotalVariableCost)
		assert.Equal(t, 200.0, plan.TotalFixedCost)
		assert.Equal(t, 1600.0, plan.TotalProfit)
		assert.Equal(t, 1180.0, plan.ProfitLow)
		assert.Equal(t, 2020.0, plan.ProfitHigh)
		assert.Equal(t, 60.0, plan.UnitMargin)
		assert.Equal(t, 53.33, plan.MarginPct)
		require.NotNil(t, plan.BreakEvenUnits)
		assert.Equal(t, 4, *plan.BreakEvenUnits)
		assert.Equal(t, 2, plan.ProfitableDays)
		assert.Equal(t, models.ProfitProfitable, plan.Status)
	})

	t.Run("原価割れ", func(t *testing.T) {
		plan, err := PlanProfit(points, 40, 30, 0)
		require.NoError(t, err)
		assert.Equal(t, -300.0, plan.TotalProfit)
		assert.Equal(t, -33.33, plan.MarginPct)
		assert.Nil(t, plan.BreakEvenUnits)
		assert.Zero(t, plan.ProfitableDays)
		assert.Equal(t, models.ProfitLoss, plan.Status)
	})

	t.Run("入力検証", func(t *testing.T) {
		_, err := PlanProfit(points, -1, 100, 0)
		assert.Error(t, err)
		_, err = PlanProfit(points, 10, 0, 0)
		assert.Error(t, err)
		_, err = PlanProfit(points, 10, 100, -5)
		assert.Error(t, err)
	})
}

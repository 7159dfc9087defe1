package services

import (
	"fmt"
	"sort"

	"market-pulse-api/pkg/models"
)

const recommendationHorizon = 7

// recommendationInput is the evaluated horizon shared by every rule.
type recommendationInput struct {
	points    []models.BlendedPoint
	values    []float64
	total     float64
	trend     string
	peakIndex int
	momentum  models.MomentumSignal
	burst     models.BurstSignal
}

func (in *recommendationInput) avgDaily() float64 {
	return in.total / float64(len(in.values))
}

// recommendationRule pairs a guard with the recommendation it produces.
type recommendationRule struct {
	kind  models.RecommendationType
	match func(in *recommendationInput) bool
	build func(in *recommendationInput) models.Recommendation
}

// recommendationRules are evaluated in order; the first match wins.
var recommendationRules = []recommendationRule{
	{
		kind: models.RecommendScaleUp,
		match: func(in *recommendationInput) bool {
			return in.burst.Level == models.BurstCritical &&
				in.trend == models.TrendIncreasing &&
				in.points[0].Confidence == models.ConfidenceHigh
		},
		build: buildScaleUp,
	},
	{
		kind: models.RecommendPeakStrategy,
		match: func(in *recommendationInput) bool {
			peak := in.values[in.peakIndex]
			return in.peakIndex < len(in.values)-2 && in.values[len(in.values)-1] < peak*0.75
		},
		build: buildPeakStrategy,
	},
	{
		kind: models.RecommendIntervention,
		match: func(in *recommendationInput) bool {
			return in.momentum.Status == models.MomentumDeclining && in.trend == models.TrendDecreasing
		},
		build: buildIntervention,
	},
	{
		kind: models.RecommendOptimize,
		match: func(in *recommendationInput) bool {
			return in.momentum.Status == models.MomentumStable && in.points[0].Confidence == models.ConfidenceHigh
		},
		build: buildOptimize,
	},
	{
		kind:  models.RecommendStandard,
		match: func(*recommendationInput) bool { return true },
		build: buildStandard,
	},
}

// GenerateRecommendations evaluates the first seven blended days against the signals and
// returns the matching recommendation list sorted by priority.
func GenerateRecommendations(points []models.BlendedPoint, momentum models.MomentumSignal, burst models.BurstSignal) []models.Recommendation {
	if len(points) == 0 {
		return []models.Recommendation{}
	}
	points = points[:min(len(points), recommendationHorizon)]
	in := &recommendationInput{points: points, momentum: momentum, burst: burst}
	in.values = make([]float64, len(points))
	for i, p := range points {
		in.values[i] = p.PredictedQuantity
		if p.PredictedQuantity > in.values[in.peakIndex] {
			in.peakIndex = i
		}
	}
	in.total = calculateSum(in.values)
	in.trend = trendDirection(in.values[0], in.values[len(in.values)-1])

	var recs []models.Recommendation
	for _, rule := range recommendationRules {
		if rule.match(in) {
			rec := rule.build(in)
			rec.Type = rule.kind
			recs = append(recs, rec)
			break
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority.Rank() < recs[j].Priority.Rank()
	})
	return recs
}

func buildScaleUp(in *recommendationInput) models.Recommendation {
	target := int(in.total * 1.3)
	return models.Recommendation{
		Priority:    models.PriorityUrgent,
		Icon:        "🚀",
		Title:       "急上昇チャンスを検知",
		Message:     "販売が急増しており、今後7日間も増加が続く見込みです。",
		Action:      fmt.Sprintf("今後7日分として %d 個の在庫を準備してください（+30%%バッファ）。", target),
		StockTarget: target,
		Reasoning: []string{
			fmt.Sprintf("急増スコア: 平常時の %.1f 倍", in.burst.Score),
			fmt.Sprintf("モメンタム: %+.0f%%", (in.momentum.Combined-1)*100),
			fmt.Sprintf("予測トレンド: %s", in.trend),
			fmt.Sprintf("信頼度: %s", in.points[0].Confidence),
		},
	}
}

func buildPeakStrategy(in *recommendationInput) models.Recommendation {
	p := in.peakIndex
	peak := in.values[p]
	before := in.values[:p+1]
	after := in.values[p+1:]

	stockBefore := int(calculateSum(before) * 1.2)
	stockAfter := int(calculateSum(after))
	totalSmart := stockBefore + stockAfter
	totalNaive := int(in.total * 1.3)
	savings := totalNaive - totalSmart
	percentage := 0
	if totalNaive > 0 {
		percentage = int(float64(savings) / float64(totalNaive) * 100)
	}
	drop := int((1 - in.values[len(in.values)-1]/peak) * 100)
	peakPoint := in.points[p]

	daysBefore := make([]int, 0, len(before))
	for d := 1; d <= p+1; d++ {
		daysBefore = append(daysBefore, d)
	}
	daysAfter := make([]int, 0, len(after))
	for d := p + 2; d <= len(in.values); d++ {
		daysAfter = append(daysAfter, d)
	}

	return models.Recommendation{
		Priority: models.PriorityHigh,
		Icon:     "🎯",
		Title:    "2段階戦略: ピークを検知",
		Message:  fmt.Sprintf("%d日目（%s）にピークを迎え、その後 %d%% 減少する見込みです。", p+1, peakPoint.DayName, drop),
		Phases: []models.StockPhase{
			{
				PhaseName:   fmt.Sprintf("フェーズ1: ピークまで (1〜%d日目)", p+1),
				StockNeeded: stockBefore,
				DailyAvg:    stockBefore / len(before),
				Advice:      fmt.Sprintf("生産を増やしてください。目標合計 %d 個。", stockBefore),
				Days:        daysBefore,
			},
			{
				PhaseName:   fmt.Sprintf("フェーズ2: ピーク後 (%d〜%d日目)", p+2, len(in.values)),
				StockNeeded: stockAfter,
				DailyAvg:    stockAfter / len(after),
				Advice:      fmt.Sprintf("生産を抑えてください。合計 %d 個で十分です。", stockAfter),
				Warning:     "ピーク後の過剰生産はロスにつながります。",
				Days:        daysAfter,
			},
		},
		Savings: &models.StockSavings{
			Amount:     savings,
			TotalSmart: totalSmart,
			TotalNaive: totalNaive,
			Percentage: percentage,
		},
		PeakInfo: &models.PeakInfo{
			Date:     peakPoint.Date,
			DayName:  peakPoint.DayName,
			Quantity: int(peak),
			Index:    p + 1,
		},
		Reasoning: []string{
			fmt.Sprintf("ピーク: %d日目に %d 個", p+1, int(peak)),
			fmt.Sprintf("ピーク後の減少率: %d%%", drop),
			fmt.Sprintf("一律生産と比べて %d 個の削減", savings),
		},
	}
}

func buildIntervention(*recommendationInput) models.Recommendation {
	return models.Recommendation{
		Priority: models.PriorityPenting,
		Icon:     "⚠️",
		Title:    "モメンタム低下",
		Message:  "販売が減少しており、今後も減少が続く見込みです。",
		Action:   "減少を止めるためにプロモーションやセット販売を検討してください。",
		Suggestions: []string{
			"まとめ買い割引や15〜20%の値引きを実施する",
			"売れ筋商品とのセット販売を行う",
			"競合との価格を比較する",
			"顧客の声を集める",
		},
	}
}

func buildOptimize(in *recommendationInput) models.Recommendation {
	avg := in.avgDaily()
	buffer := int(avg * 3)
	return models.Recommendation{
		Priority:    models.PriorityRendah,
		Icon:        "✅",
		Title:       "需要は安定",
		Message:     "販売は安定しており予測しやすい状態です。",
		Action:      fmt.Sprintf("在庫水準を約 %d 個（3日分のバッファ）に維持してください。", buffer),
		StockTarget: buffer,
		DailyAvg:    roundTo(avg, 2),
		Reasoning: []string{
			fmt.Sprintf("1日あたりの予測: %d 個", int(avg)),
			"信頼度が高い",
			"過剰在庫は不要",
		},
	}
}

func buildStandard(in *recommendationInput) models.Recommendation {
	avg := in.avgDaily()
	return models.Recommendation{
		Priority:    models.PriorityMedium,
		Icon:        "📊",
		Title:       "標準予測",
		Message:     fmt.Sprintf("今後%d日間の需要予測: %d 個。", len(in.values), int(in.total)),
		Action:      fmt.Sprintf("1日平均 %d 個を小さめのバッファ付きで準備してください。", int(avg)),
		StockTarget: int(in.total),
		DailyAvg:    roundTo(avg, 2),
		Reasoning: []string{
			fmt.Sprintf("%d日間合計: %d 個", len(in.values), int(in.total)),
			fmt.Sprintf("1日平均: %d 個", int(avg)),
			fmt.Sprintf("トレンド: %s", in.trend),
		},
	}
}

package services

import (
	"fmt"
	"math"

	"market-pulse-api/pkg/models"
)

// reviewPeriodDays is how far past the lead time an order should cover.
const reviewPeriodDays = 7

// serviceLevelZ は欠品許容度ごとの安全係数（片側正規分布のz値）
var serviceLevelZ = map[string]float64{
	models.ServiceLevelLow:      1.28,
	models.ServiceLevelMedium:   1.65,
	models.ServiceLevelHigh:     2.05,
	models.ServiceLevelCritical: 2.33,
}

// PlanInventory computes safety stock, reorder point and order quantity from a daily demand
// forecast.
func PlanInventory(demand []float64, currentStock float64, leadTimeDays int, serviceLevel string) (models.InventoryPlan, error) {
	z, ok := serviceLevelZ[serviceLevel]
	if !ok {
		return models.InventoryPlan{}, fmt.Errorf("service_level は low/medium/high/critical のいずれかを指定してください: %q", serviceLevel)
	}
	if leadTimeDays < 1 || leadTimeDays > 30 {
		return models.InventoryPlan{}, fmt.Errorf("lead_time_days は1〜30の範囲で指定してください: %d", leadTimeDays)
	}
	if currentStock < 0 {
		return models.InventoryPlan{}, fmt.Errorf("current_stock に負の値は指定できません")
	}

	avg := calculateMean(demand)
	std := calculateStandardDeviation(demand)
	lead := float64(leadTimeDays)

	safety := math.Ceil(z * std * math.Sqrt(lead))
	reorder := math.Ceil(avg*lead + safety)
	order := math.Max(0, math.Ceil(avg*(lead+reviewPeriodDays)+safety-currentStock))

	cover := 0.0
	if avg > 0 {
		cover = roundTo(currentStock/avg, 1)
	}

	status := models.InventoryOK
	switch {
	case currentStock < safety:
		status = models.InventoryCritical
	case currentStock <= reorder:
		status = models.InventoryReorder
	}

	return models.InventoryPlan{
		AvgDailyDemand: roundTo(avg, 2),
		DemandStd:      roundTo(std, 2),
		ServiceLevel:   serviceLevel,
		ZScore:         z,
		SafetyStock:    int(safety),
		ReorderPoint:   int(reorder),
		OrderQuantity:  int(order),
		DaysOfCover:    cover,
		Status:         status,
	}, nil
}

package services

import (
	"fmt"
	"math"

	"market-pulse-api/pkg/models"
)

// 週次の固定費は1日あたり1/7ずつ計上する
const daysPerWeek = 7

// PlanProfit projects revenue, cost and profit for each forecast day. Fixed costs are spread
// evenly per day; break-even is the horizon's unit count needed to cover them.
func PlanProfit(points []models.ForecastPoint, costPerUnit, pricePerUnit, fixedCostsWeekly float64) (models.ProfitPlan, error) {
	if costPerUnit < 0 {
		return models.ProfitPlan{}, fmt.Errorf("cost_per_unit に負の値は指定できません")
	}
	if pricePerUnit <= 0 {
		return models.ProfitPlan{}, fmt.Errorf("price_per_unit は正の値で指定してください")
	}
	if fixedCostsWeekly < 0 {
		return models.ProfitPlan{}, fmt.Errorf("fixed_costs_weekly に負の値は指定できません")
	}

	margin := pricePerUnit - costPerUnit
	fixedDaily := fixedCostsWeekly / daysPerWeek
	plan := models.ProfitPlan{Daily: make([]models.ProfitDay, 0, len(points))}

	var units, revenue, variable, fixed, profit, low, high float64
	for _, p := range points {
		dayRevenue := p.PredictedQuantity * pricePerUnit
		dayVariable := p.PredictedQuantity * costPerUnit
		dayProfit := dayRevenue - dayVariable - fixedDaily
		dayLow := p.LowerBound*margin - fixedDaily
		dayHigh := p.UpperBound*margin - fixedDaily

		plan.Daily = append(plan.Daily, models.ProfitDay{
			Date:         p.Date,
			Units:        p.PredictedQuantity,
			Revenue:      roundTo(dayRevenue, 2),
			VariableCost: roundTo(dayVariable, 2),
			FixedCost:    roundTo(fixedDaily, 2),
			Profit:       roundTo(dayProfit, 2),
			ProfitLow:    roundTo(dayLow, 2),
			ProfitHigh:   roundTo(dayHigh, 2),
		})
		if dayProfit > 0 {
			plan.ProfitableDays++
		}
		units += p.PredictedQuantity
		revenue += dayRevenue
		variable += dayVariable
		fixed += fixedDaily
		profit += dayProfit
		low += dayLow
		high += dayHigh
	}

	plan.TotalUnits = roundTo(units, 2)
	plan.TotalRevenue = roundTo(revenue, 2)
	plan.TotalVariableCost = roundTo(variable, 2)
	plan.TotalFixedCost = roundTo(fixed, 2)
	plan.TotalProfit = roundTo(profit, 2)
	plan.ProfitLow = roundTo(low, 2)
	plan.ProfitHigh = roundTo(high, 2)
	plan.UnitMargin = roundTo(margin, 2)
	if revenue > 0 {
		plan.MarginPct = roundTo(profit/revenue*100, 2)
	}
	if margin > 0 {
		be := int(math.Ceil(fixed / margin))
		plan.BreakEvenUnits = &be
	}
	plan.Status = models.ProfitLoss
	if profit >= 0 {
		plan.Status = models.ProfitProfitable
	}
	return plan, nil
}

package handlers

import (
	"net/http"

	"market-pulse-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// dashboardPeriods は集計期間の指定と時間数の対応です。
var dashboardPeriods = map[string]int{
	"1h":  1,
	"24h": 24,
	"7d":  24 * 7,
}

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	Service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{
		Service: service,
	}
}

// GetLogs は集計されたログデータを返します。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	period := c.DefaultQuery("period", "24h")
	hours, ok := dashboardPeriods[period]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "period は 1h / 24h / 7d のいずれかです"})
		return
	}
	respondData(c, gin.H{"period": period, "dashboard": h.Service.GetDashboardData(hours)})
}

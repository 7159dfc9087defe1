package handlers

import (
	"net/http"

	"market-pulse-api/pkg/models"
	"market-pulse-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxUploadBytes はアップロードファイルの上限サイズ
const maxUploadBytes = 32 << 20

// ForecastHandler 需要予測ハンドラー
type ForecastHandler struct {
	service *services.ForecastService
	log     zerolog.Logger
}

// NewForecastHandler 新しい需要予測ハンドラーを作成
func NewForecastHandler(service *services.ForecastService, log zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{service: service, log: log}
}

// RegisterRoutes は /api/v1/ml 配下のルートを登録します。
func (h *ForecastHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/train", h.Train)
	rg.POST("/train/upload", h.TrainUpload)
	rg.GET("/forecast", h.Forecast)
	rg.POST("/forecast-hybrid", h.Hybrid)
	rg.POST("/predict-universal", h.PredictUniversal)
	rg.POST("/inventory/optimize", h.OptimizeInventory)
	rg.POST("/profit/forecast", h.ForecastProfit)
	rg.GET("/report/weekly", h.WeeklyReport)
	rg.GET("/models", h.ListModels)
	rg.GET("/cache/stats", h.CacheStats)
	rg.POST("/cache/clear", h.ClearCache)
}

// Train 販売履歴から製品のモデルを学習
func (h *ForecastHandler) Train(c *gin.Context) {
	var req models.TrainRequest
	if !bindJSON(c, &req) {
		return
	}
	meta, err := h.service.TrainFromRecords(c.Request.Context(), req.ProductID, req.SalesData)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, meta)
}

// TrainUpload アップロードされた .xlsx / .csv の全製品を学習
func (h *ForecastHandler) TrainUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	imported, err := services.ParseSalesFile(file, fileHeader.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info().
		Str("file", fileHeader.Filename).
		Int("rows", imported.Rows).
		Int("products", len(imported.Products)).
		Int("errors", imported.ErrorCount).
		Msg("📂 売上ファイルを読み込みました")

	products := imported.Products
	if only := c.PostForm("product_id"); only != "" {
		obs, ok := products[only]
		if !ok {
			respondError(c, &models.SchemaError{Field: "product_id", Reason: "ファイルに該当する製品がありません"})
			return
		}
		products = map[string][]models.SalesObservation{only: obs}
	}

	result, err := h.service.TrainBatch(c.Request.Context(), products)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, gin.H{"import": imported, "training": result})
}

// Forecast 学習済みモデルで予測
func (h *ForecastHandler) Forecast(c *gin.Context) {
	var req models.ForecastRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.service.Forecast(c.Request.Context(), req.ProductID, req.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, result)
}

// Hybrid ルールベース予測とMLの加重ブレンド
func (h *ForecastHandler) Hybrid(c *gin.Context) {
	var req models.HybridRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Hybrid(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, result)
}

// PredictUniversal モデル有無にかかわらず送られた販売データから予測
func (h *ForecastHandler) PredictUniversal(c *gin.Context) {
	var req models.UniversalRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.PredictUniversal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, result)
}

// OptimizeInventory 在庫最適化
func (h *ForecastHandler) OptimizeInventory(c *gin.Context) {
	var req models.InventoryRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.OptimizeInventory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, result)
}

// ForecastProfit 利益予測
func (h *ForecastHandler) ForecastProfit(c *gin.Context) {
	var req models.ProfitRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.ForecastProfit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, result)
}

// WeeklyReport 週次レポート
func (h *ForecastHandler) WeeklyReport(c *gin.Context) {
	var req models.ReportRequest
	if !bindQuery(c, &req) {
		return
	}
	report, err := h.service.WeeklyReport(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, report)
}

// ListModels 保存済みモデルの一覧
func (h *ForecastHandler) ListModels(c *gin.Context) {
	list, err := h.service.ListModels(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, gin.H{"models": list, "count": len(list)})
}

// CacheStats モデルキャッシュの統計
func (h *ForecastHandler) CacheStats(c *gin.Context) {
	respondData(c, h.service.CacheStats())
}

// ClearCache モデルキャッシュを空にする
func (h *ForecastHandler) ClearCache(c *gin.Context) {
	h.service.ClearCache()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "キャッシュをクリアしました"})
}

package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync/atomic"

	config "market-pulse-api/configs"
	"market-pulse-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminHandler は管理者向け操作のハンドラです。
// メンテナンスモード中は予測APIが503を返します。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	service     *services.ForecastService
	log         zerolog.Logger
	maintenance atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, service *services.ForecastService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		service:       service,
		log:           log,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes は /api/v1/admin 配下のルートを登録します。
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.GetHealthStatus)
	rg.POST("/maintenance/start", h.StartMaintenance)
	rg.POST("/maintenance/stop", h.StopMaintenance)
	rg.POST("/models/:product_id/evict", h.EvictModel)
}

// authorize checks the body credentials. An unset admin password disables every admin action.
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Username and password are required"})
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) == 1
	if h.AdminPassword == "" || !userOK || !passOK {
		h.log.Warn().Str("path", c.Request.URL.Path).Msg("管理者認証に失敗しました")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	h.log.Info().Msg("🔧 メンテナンスモードを開始しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	h.log.Info().Msg("メンテナンスモードを終了しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode stopped"})
}

// EvictModel は保存済みモデルとキャッシュを削除します。
func (h *AdminHandler) EvictModel(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	if err := h.service.EvictModel(c.Request.Context(), c.Param("product_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "モデルを削除しました"})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"isMaintenanceMode": h.maintenance.Load(),
		"cache":             h.service.CacheStats(),
	})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "market-pulse-api"})
}

// MaintenanceGuard はメンテナンス中に管理系以外のAPIを503で止めるミドルウェアです。
// /health と /metrics は対象外です。
func (h *AdminHandler) MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if h.maintenance.Load() && strings.HasPrefix(path, "/api/v1/") && !strings.HasPrefix(path, "/api/v1/admin") {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Server is in maintenance mode"})
			return
		}
		c.Next()
	}
}

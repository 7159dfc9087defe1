package handler

import (
	"net/http"
	"os"
	"sync"

	config "market-pulse-api/configs"
	"market-pulse-api/pkg/logger"
	"market-pulse-api/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// サーバーレス環境で書き込み可能なのは /tmp のみ
const serverlessModelDir = "/tmp/market-pulse/models"

var (
	app      *gin.Engine
	setupErr error
	once     sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		if os.Getenv("MODEL_DIR") == "" {
			cfg.ModelDir = serverlessModelDir
		}
		cfg.ModelStore = "file"

		log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			log = zerolog.New(os.Stderr).With().Timestamp().Logger()
			log.Warn().Err(err).Msg("ログ設定が不正なため既定の設定を使用します")
		}
		if err := cfg.Validate(); err != nil {
			setupErr = err
			log.Error().Err(err).Msg("設定の検証に失敗しました")
			return
		}
		gin.SetMode(gin.ReleaseMode)

		// ファイルストアはクローズ不要
		router, _, err := server.New(cfg, log, prometheus.NewRegistry())
		if err != nil {
			setupErr = err
			log.Error().Err(err).Msg("アプリケーションの初期化に失敗しました")
			return
		}
		log.Info().Str("model_dir", cfg.ModelDir).Msg("🟢 serverless app initialized")
		app = router
	})
	return app, setupErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	app, err := setupApp()
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"service unavailable"}`))
		return
	}
	app.ServeHTTP(w, r)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	config "market-pulse-api/configs"
	"market-pulse-api/pkg/logger"
	"market-pulse-api/pkg/models"
	"market-pulse-api/pkg/server"
	"market-pulse-api/pkg/services"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// trainingLog は logs/training_<timestamp>.json に書き出す実行記録です。
type trainingLog struct {
	RunAt    time.Time                `json:"run_at"`
	File     string                   `json:"file"`
	Store    string                   `json:"store"`
	Import   *services.SalesImport    `json:"import"`
	Result   *models.BatchTrainResult `json:"result"`
	Duration string                   `json:"duration"`
}

func main() {
	file := flag.String("file", "", "sales file (.csv or .xlsx)")
	logDir := flag.String("log-dir", "logs", "directory for the training run log")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.LoadConfig()
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: train -file sales.csv")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("設定の検証に失敗しました")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *file, *logDir); err != nil {
		log.Error().Err(err).Msg("一括学習に失敗しました")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, path, logDir string) error {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ファイルを開けませんでした: %w", err)
	}
	defer f.Close()

	imported, err := services.ParseSalesFile(f, filepath.Base(path))
	if err != nil {
		return err
	}
	log.Info().
		Str("file", path).
		Int("rows", imported.Rows).
		Int("products", len(imported.Products)).
		Int("errors", imported.ErrorCount).
		Msg("📂 売上ファイルを読み込みました")

	repo, closeStore, err := server.OpenRepository(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("モデルストアのクローズに失敗しました")
		}
	}()

	svc := services.NewForecastService(repo, nil, server.ForecastConfig(cfg), log, nil)

	result, err := svc.TrainBatch(ctx, imported.Products)
	if err != nil {
		return err
	}
	printSummary(result)

	logPath, err := writeRunLog(logDir, trainingLog{
		RunAt:    start.UTC(),
		File:     path,
		Store:    cfg.ModelStore,
		Import:   imported,
		Result:   result,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})
	if err != nil {
		return err
	}
	log.Info().Str("path", logPath).Msg("学習ログを保存しました")
	return nil
}

func printSummary(r *models.BatchTrainResult) {
	fmt.Println("==============================")
	fmt.Println(" 学習サマリー")
	fmt.Println("==============================")
	fmt.Printf(" 成功:   %d\n", len(r.Trained))
	fmt.Printf(" スキップ: %d\n", len(r.Skipped))
	fmt.Printf(" 失敗:   %d\n", len(r.Failed))
	if len(r.Trained) > 0 {
		fmt.Printf(" 平均検証MAE: %.4f\n", r.AvgValMAE)
	}
	for _, s := range r.Skipped {
		fmt.Printf("  - skip %s: %s\n", s.ProductID, s.Reason)
	}
	for _, s := range r.Failed {
		fmt.Printf("  - fail %s: %s\n", s.ProductID, s.Reason)
	}
}

// writeRunLog writes the run record and returns its path.
func writeRunLog(dir string, entry trainingLog) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ログディレクトリを作成できませんでした: %w", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("training_%s.json", entry.RunAt.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("学習ログの書き込みに失敗しました: %w", err)
	}
	return path, nil
}

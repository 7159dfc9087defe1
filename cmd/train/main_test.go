package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	config "market-pulse-api/configs"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSalesCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("日付,製品ID,販売数\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		d := start.AddDate(0, 0, i).Format("2006-01-02")
		fmt.Fprintf(&b, "%s,P001,%d\n", d, 50+i%7)
	}
	b.WriteString("2024-01-01,P002,3\n")
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunTrainsAndWritesLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoadConfig()
	cfg.ModelStore = "file"
	cfg.ModelDir = filepath.Join(dir, "models")
	logDir := filepath.Join(dir, "logs")

	require.NoError(t, run(context.Background(), cfg, zerolog.Nop(), writeSalesCSV(t, dir), logDir))

	// モデルファイルが保存されている
	_, err := os.Stat(filepath.Join(cfg.ModelDir, "xgboost_P001.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "training_"))

	data, err := os.ReadFile(filepath.Join(logDir, entries[0].Name()))
	require.NoError(t, err)
	var entry struct {
		Result struct {
			Trained []json.RawMessage `json:"trained"`
			Skipped []struct {
				ProductID string `json:"product_id"`
			} `json:"skipped"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Len(t, entry.Result.Trained, 1)
	require.Len(t, entry.Result.Skipped, 1)
	assert.Equal(t, "P002", entry.Result.Skipped[0].ProductID)
}

func TestRunMissingFile(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.ModelDir = t.TempDir()
	err := run(context.Background(), cfg, zerolog.Nop(), filepath.Join(t.TempDir(), "nope.csv"), t.TempDir())
	assert.Error(t, err)
}

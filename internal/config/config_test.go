package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load()
}

func TestLoad_WithDefaults(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Results", cfg.Sheets.ResultsWorksheet)
	assert.Equal(t, "Runs", cfg.Sheets.ConfigWorksheet)
	assert.Equal(t, "freqtradeorg/freqtrade:stable", cfg.Docker.Image)
	assert.Equal(t, "/freqtrade/user_data", cfg.Docker.ContainerUserDataPath)
	assert.Equal(t, "MultiMetricHyperOptLoss", cfg.Hyperopt.DefaultLossFunction)
	assert.Equal(t, "6", cfg.Hyperopt.DefaultJobs)
	assert.False(t, cfg.Report.PassthroughMetrics)
	assert.False(t, cfg.Archive.Enabled)

	// Default schema covers context, strategy and metric fields.
	assert.Contains(t, cfg.Schema.ContextFields, "Run #")
	assert.Contains(t, cfg.Schema.ContextFields, "random-state")
	assert.Contains(t, cfg.Schema.StrategyFields, "EMA_1D_1")
	assert.Contains(t, cfg.Schema.MetricFields, "Trades #")
	assert.Equal(t, []string{"ema_slow_5m"}, cfg.Schema.StrategyAliases["EMA_slow1_5m"])
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHEETS_RESULTS_SPREADSHEET_ID", "sheet-id-123")
	t.Setenv("DOCKER_IMAGE", "freqtradeorg/freqtrade:2024.6")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok-abc")
	t.Setenv("ARCHIVE_DB_PASSWORD", "secret")

	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sheet-id-123", cfg.Sheets.ResultsSpreadsheetID)
	assert.Equal(t, "freqtradeorg/freqtrade:2024.6", cfg.Docker.Image)
	assert.Equal(t, "tok-abc", cfg.Telegram.BotToken)
	assert.Equal(t, "secret", cfg.Archive.Password)
}

func TestLoad_InvalidSettleDelay(t *testing.T) {
	t.Setenv("HYPEROPT_SETTLE_DELAY", "five seconds")

	_, err := loadClean(t)
	assert.Error(t, err)
}

func TestSettleDelayDuration(t *testing.T) {
	c := HyperoptConfig{SettleDelay: "5s"}
	assert.Equal(t, "5s", c.SettleDelayDuration().String())

	empty := HyperoptConfig{}
	assert.Zero(t, empty.SettleDelayDuration())

	bad := HyperoptConfig{SettleDelay: "nope"}
	assert.Zero(t, bad.SettleDelayDuration())
}

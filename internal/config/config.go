package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Docker   DockerConfig   `mapstructure:"docker"`
	Hyperopt HyperoptConfig `mapstructure:"hyperopt"`
	Report   ReportConfig   `mapstructure:"report"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type SheetsConfig struct {
	CredentialsFile      string `mapstructure:"credentials_file"`
	ResultsSpreadsheetID string `mapstructure:"results_spreadsheet_id"`
	ResultsWorksheet     string `mapstructure:"results_worksheet"`
	ConfigSpreadsheetID  string `mapstructure:"config_spreadsheet_id"`
	ConfigWorksheet      string `mapstructure:"config_worksheet"`
}

type DockerConfig struct {
	Image                 string `mapstructure:"image"`
	HostUserDataPath      string `mapstructure:"host_user_data_path"`
	ContainerUserDataPath string `mapstructure:"container_user_data_path"`
	DefaultConfig         string `mapstructure:"default_config"`
}

type HyperoptConfig struct {
	ResultsDir          string `mapstructure:"results_dir"`
	ShowOutputFile      string `mapstructure:"show_output_file"`
	DefaultLossFunction string `mapstructure:"default_loss_function"`
	DefaultJobs         string `mapstructure:"default_jobs"`
	SettleDelay         string `mapstructure:"settle_delay"`
}

type ReportConfig struct {
	PassthroughMetrics bool `mapstructure:"passthrough_metrics"`
}

// SchemaConfig defines the record schema: the ordered field lists and the
// alias chains used to resolve strategy fields from parameter blocks.
type SchemaConfig struct {
	ContextFields   []string            `mapstructure:"context_fields"`
	StrategyFields  []string            `mapstructure:"strategy_fields"`
	MetricFields    []string            `mapstructure:"metric_fields"`
	StrategyAliases map[string][]string `mapstructure:"strategy_aliases"`
}

type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password" json:"-" yaml:"-"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}
	if err := viper.BindEnv("archive.password", "ARCHIVE_DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind ARCHIVE_DB_PASSWORD environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if len(config.Schema.ContextFields) == 0 &&
		len(config.Schema.StrategyFields) == 0 &&
		len(config.Schema.MetricFields) == 0 {
		return nil, errors.New("schema field lists are empty")
	}

	if config.Hyperopt.SettleDelay != "" {
		if _, err := time.ParseDuration(config.Hyperopt.SettleDelay); err != nil {
			return nil, fmt.Errorf("invalid hyperopt settle delay: %w", err)
		}
	}

	return &config, nil
}

// SettleDelayDuration returns the parsed settle delay, zero when unset.
func (c *HyperoptConfig) SettleDelayDuration() time.Duration {
	if c.SettleDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(c.SettleDelay)
	if err != nil {
		return 0
	}
	return d
}

func setDefaults() {
	viper.SetDefault("log_level", "info")

	// Sheets
	viper.SetDefault("sheets.credentials_file", "credentials.json")
	viper.SetDefault("sheets.results_spreadsheet_id", "")
	viper.SetDefault("sheets.results_worksheet", "Results")
	viper.SetDefault("sheets.config_spreadsheet_id", "")
	viper.SetDefault("sheets.config_worksheet", "Runs")

	// Docker
	viper.SetDefault("docker.image", "freqtradeorg/freqtrade:stable")
	viper.SetDefault("docker.host_user_data_path", "./user_data")
	viper.SetDefault("docker.container_user_data_path", "/freqtrade/user_data")
	viper.SetDefault("docker.default_config", "config.json")

	// Hyperopt
	viper.SetDefault("hyperopt.results_dir", "./user_data/hyperopt_results")
	viper.SetDefault("hyperopt.show_output_file", "hyperopt_show_output.txt")
	viper.SetDefault("hyperopt.default_loss_function", "MultiMetricHyperOptLoss")
	viper.SetDefault("hyperopt.default_jobs", "6")
	viper.SetDefault("hyperopt.settle_delay", "5s")

	// Report
	viper.SetDefault("report.passthrough_metrics", false)

	// Schema
	viper.SetDefault("schema.context_fields", []string{
		"Date and Time", "Run #", "Strategy", "Config", "Epochs",
		"random-state", "Timerange", "Pairs", "loss_function",
		"Leverage", "% per trade",
	})
	viper.SetDefault("schema.strategy_fields", []string{
		"EMA_1D_1", "EMA_1D_2", "EMA_1H_1", "EMA_1H_2",
		"EMA_fast1_5m", "EMA_fast2_5m", "EMA_slow1_5m", "EMA_slow2_5m",
		"Entry_volume_1H", "Entry_volume_5m",
		"max_scale_in", "Scale_in_addition", "sl_volume", "tp_volume",
	})
	viper.SetDefault("schema.metric_fields", []string{
		"Trades #", "% Win", "Avg. Profit %", "Profit %", "Duration min", "DrawDown %",
	})
	viper.SetDefault("schema.strategy_aliases", map[string][]string{
		"EMA_slow1_5m":    {"ema_slow_5m"},
		"Entry_volume_1H": {"long_volume_threshold_1h", "short_volume_threshold_1h"},
		"Entry_volume_5m": {"long_volume_threshold_5m", "short_volume_threshold_5m"},
		"max_scale_in":    {"max_scale_ins"},
		"sl_volume":       {"long_sl_volume_threshold_exit", "short_sl_volume_threshold_exit"},
		"tp_volume":       {"long_tp_volume_threshold_exit", "short_tp_volume_threshold_exit"},
	})

	// Archive
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.host", "localhost")
	viper.SetDefault("archive.port", 5432)
	viper.SetDefault("archive.user", "postgres")
	viper.SetDefault("archive.password", "postgres")
	viper.SetDefault("archive.dbname", "hyperbatch")
	viper.SetDefault("archive.sslmode", "disable")

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")
}

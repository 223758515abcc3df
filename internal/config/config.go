package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Merge   MergeConfig   `yaml:"merge" mapstructure:"merge"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig locates the unified dataset and its reference-code file.
type DatasetConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	ReferencePath string `yaml:"reference_path" mapstructure:"reference_path"`
}

// MergeConfig configures batch validation behavior.
type MergeConfig struct {
	Mode    string   `yaml:"mode" mapstructure:"mode"`       // strict or lenient
	Pillars []string `yaml:"pillars" mapstructure:"pillars"` // accepted pillar tokens
}

// StoreConfig configures the merge-run audit log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read-only dataset API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// ExportConfig configures spreadsheet export.
type ExportConfig struct {
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.path", "data/raw/ethiopia_fi_unified_data.csv")
	v.SetDefault("dataset.reference_path", "data/raw/indicator_reference.csv")
	v.SetDefault("merge.mode", "strict")
	v.SetDefault("merge.pillars", []string{"ACCESS", "USAGE", "QUALITY"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fidata.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("export.sheet_name", "unified_data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration required for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Dataset.Path == "" {
		problems = append(problems, "dataset.path is required")
	}

	switch mode {
	case "merge", "validate":
		if c.Dataset.ReferencePath == "" {
			problems = append(problems, "dataset.reference_path is required")
		}
		if c.Merge.Mode != "strict" && c.Merge.Mode != "lenient" {
			problems = append(problems, "merge.mode must be strict or lenient")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "export", "status", "runs":
		// dataset.path alone is enough
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

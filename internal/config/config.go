// Package config loads citydb settings from config.yaml and the environment.
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
	Input     string        `yaml:"input" mapstructure:"input"`
	OutputDir string        `yaml:"output_dir" mapstructure:"output_dir"`
	Indent    int           `yaml:"indent" mapstructure:"indent"`
	Regions   RegionsConfig `yaml:"regions" mapstructure:"regions"`
	Verify    VerifyConfig  `yaml:"verify" mapstructure:"verify"`
	Log       LogConfig     `yaml:"log" mapstructure:"log"`
}

// RegionsConfig configures region table cleanup.
type RegionsConfig struct {
	Dedupe bool `yaml:"dedupe" mapstructure:"dedupe"`
}

// VerifyConfig configures the verify command.
type VerifyConfig struct {
	GeohashPrecision int `yaml:"geohash_precision" mapstructure:"geohash_precision"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CITYDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input", "vendor/worldcities.csv")
	v.SetDefault("output_dir", "db")
	v.SetDefault("indent", 4)
	v.SetDefault("regions.dedupe", false)
	v.SetDefault("verify.geohash_precision", 9)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Config file is optional.
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

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	var problems []string
	if c.Input == "" {
		problems = append(problems, "input is required")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is required")
	}
	if c.Indent < 0 {
		problems = append(problems, "indent must be >= 0")
	}
	if c.Verify.GeohashPrecision < 1 || c.Verify.GeohashPrecision > 12 {
		problems = append(problems, "verify.geohash_precision must be between 1 and 12")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/toolchain"
)

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	Enabled bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ExecutionConfig holds the session engine's windows and limits.
type ExecutionConfig struct {
	CompileTimeout time.Duration `mapstructure:"compile_timeout"`
	StartSettle    time.Duration `mapstructure:"start_settle"`
	StartWindow    time.Duration `mapstructure:"start_window"`
	InputSettle    time.Duration `mapstructure:"input_settle"`
	InputWindow    time.Duration `mapstructure:"input_window"`
	StopGrace      time.Duration `mapstructure:"stop_grace"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
	FeedPoll       time.Duration `mapstructure:"feed_poll"`
	FlushTimeout   time.Duration `mapstructure:"flush_timeout"`
	OutputBuffer   int           `mapstructure:"output_buffer"`
	WorkspaceRoot  string        `mapstructure:"workspace_root"`
}

type Config struct {
	Server         ServerConfig    `mapstructure:"server"`
	Storage        StorageConfig   `mapstructure:"storage"`
	Log            LogConfig       `mapstructure:"log"`
	Execution      ExecutionConfig `mapstructure:"execution"`
	ToolchainsFile string          `mapstructure:"toolchains_file"`
}

// Load reads runbox.yaml from path, or from . and $HOME/.runbox when path
// is empty. A missing search-path config is not an error; defaults apply.
// Any key can be overridden with a RUNBOX_ environment variable, e.g.
// RUNBOX_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("runbox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.runbox")
	}

	v.SetEnvPrefix("RUNBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	t := runner.DefaultTiming()

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".runbox", "runbox.db"))
	v.SetDefault("storage.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("execution.compile_timeout", t.CompileTimeout)
	v.SetDefault("execution.start_settle", t.StartSettle)
	v.SetDefault("execution.start_window", t.StartWindow)
	v.SetDefault("execution.input_settle", t.InputSettle)
	v.SetDefault("execution.input_window", t.InputWindow)
	v.SetDefault("execution.stop_grace", t.StopGrace)
	v.SetDefault("execution.reap_interval", t.ReapInterval)
	v.SetDefault("execution.feed_poll", t.FeedPoll)
	v.SetDefault("execution.flush_timeout", t.FlushTimeout)
	v.SetDefault("execution.output_buffer", t.OutputBuffer)
	v.SetDefault("execution.workspace_root", "")
	v.SetDefault("toolchains_file", "")
}

// Timing converts the execution settings for the session engine.
func (e ExecutionConfig) Timing() runner.Timing {
	return runner.Timing{
		CompileTimeout: e.CompileTimeout,
		StartSettle:    e.StartSettle,
		StartWindow:    e.StartWindow,
		InputSettle:    e.InputSettle,
		InputWindow:    e.InputWindow,
		StopGrace:      e.StopGrace,
		ReapInterval:   e.ReapInterval,
		FeedPoll:       e.FeedPoll,
		FlushTimeout:   e.FlushTimeout,
		OutputBuffer:   e.OutputBuffer,
	}
}

// Toolchains returns the built-in table, merged with ToolchainsFile if set.
func (c *Config) Toolchains() (toolchain.Table, error) {
	table := toolchain.Default()
	if c.ToolchainsFile == "" {
		return table, nil
	}
	override, err := toolchain.LoadFile(c.ToolchainsFile)
	if err != nil {
		return nil, err
	}
	return table.Merge(override), nil
}

// Logger builds a zap logger at the configured level.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

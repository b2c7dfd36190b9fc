// Package config loads the pipes configuration through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"nickandperla.net/pipes/internal/eval"
)

// Config is the complete pipes configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Store  StoreConfig  `mapstructure:"store"`
	Engine EngineConfig `mapstructure:"engine"`
	Macros MacrosConfig `mapstructure:"macros"`
	Files  FilesConfig  `mapstructure:"files"`
	LLM    LLMConfig    `mapstructure:"llm"`
}

// DefaultJSTimeout bounds a single js pipe invocation.
const DefaultJSTimeout = 5 * time.Second

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// StoreConfig selects the macro store.
type StoreConfig struct {
	// Driver is memory, sqlite or bolt.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// EngineConfig holds the evaluator limits.
type EngineConfig struct {
	MaxChars      int `mapstructure:"max_chars"`
	MaxMacroDepth int `mapstructure:"max_macro_depth"`
	GroupWorkers  int `mapstructure:"group_workers"`
	// Seed makes runs reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`
	// JSTimeout bounds each js pipe call, e.g. "5s".
	JSTimeout time.Duration `mapstructure:"js_timeout"`
}

// FilesConfig roots the file source and the write spout. Paths in scripts
// cannot leave Root.
type FilesConfig struct {
	Root string `mapstructure:"root"`
}

// MacrosConfig points at a YAML file of macros imported on startup.
type MacrosConfig struct {
	File string `mapstructure:"file"`
}

// LLMConfig enables the llm pipe when URL is set.
type LLMConfig struct {
	URL            string `mapstructure:"url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir(), "macros.db"),
		},
		Engine: EngineConfig{
			MaxChars:      eval.DefaultMaxChars,
			MaxMacroDepth: eval.DefaultMaxMacroDepth,
			GroupWorkers:  eval.DefaultGroupWorkers,
			JSTimeout:     DefaultJSTimeout,
		},
		Files: FilesConfig{
			Root: FilesDir(),
		},
		LLM: LLMConfig{
			TimeoutSeconds: 120,
		},
	}
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	d := Default()
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("store.driver", d.Store.Driver)
	viper.SetDefault("store.path", d.Store.Path)
	viper.SetDefault("engine.max_chars", d.Engine.MaxChars)
	viper.SetDefault("engine.max_macro_depth", d.Engine.MaxMacroDepth)
	viper.SetDefault("engine.group_workers", d.Engine.GroupWorkers)
	viper.SetDefault("engine.seed", d.Engine.Seed)
	viper.SetDefault("engine.js_timeout", d.Engine.JSTimeout)
	viper.SetDefault("files.root", d.Files.Root)
	viper.SetDefault("macros.file", d.Macros.File)
	viper.SetDefault("llm.url", d.LLM.URL)
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSeconds)
}

// Init points viper at the config file and the environment. An empty
// cfgFile searches the config directory and the working directory for
// config.yaml. A missing file is not an error.
func Init(cfgFile string) error {
	SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(Dir())
		viper.AddConfigPath(".")
	}

	// PIPES_ENGINE_MAX_CHARS for engine.max_chars
	viper.SetEnvPrefix("PIPES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "reading config")
	}
	return nil
}

// Load reads the configuration from viper and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "bolt":
		if c.Store.Path == "" {
			return errors.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	default:
		return errors.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	if c.Engine.MaxMacroDepth < 1 {
		return errors.New("engine.max_macro_depth must be at least 1")
	}
	if c.Engine.GroupWorkers < 1 {
		return errors.New("engine.group_workers must be at least 1")
	}
	if c.Engine.JSTimeout <= 0 {
		return errors.New("engine.js_timeout must be positive")
	}
	if c.Files.Root == "" {
		return errors.New("files.root is required")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must not be negative")
	}
	return nil
}

// Dir returns the pipes config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pipes")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pipes"
	}
	return filepath.Join(home, ".config", "pipes")
}

// FilesDir is the default root for script file access.
func FilesDir() string {
	return filepath.Join(Dir(), "files")
}

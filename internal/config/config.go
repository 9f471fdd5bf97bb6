package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const appName = "xpilot"

// Config holds all application configuration
type Config struct {
	Version  int            `mapstructure:"version" toml:"version"`
	Logger   LoggerConfig   `mapstructure:"logger" toml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" toml:"browser"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" toml:"timeouts"`
	Humanize HumanizeConfig `mapstructure:"humanize" toml:"humanize"`
	Paths    PathsConfig    `mapstructure:"paths" toml:"paths"`
	Schedule ScheduleConfig `mapstructure:"schedule" toml:"schedule"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level" toml:"level"`
	Format      string `mapstructure:"format" toml:"format"`
	ServiceName string `mapstructure:"service_name" toml:"service_name"`
	LogFile     string `mapstructure:"log_file" toml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" toml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" toml:"max_age"`
	Compress    bool   `mapstructure:"compress" toml:"compress"`
	AddSource   bool   `mapstructure:"add_source" toml:"add_source"`
}

type BrowserConfig struct {
	Headless     bool   `mapstructure:"headless" toml:"headless"`
	UserAgent    string `mapstructure:"user_agent" toml:"user_agent"`
	WindowWidth  int    `mapstructure:"window_width" toml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" toml:"window_height"`
	ExecPath     string `mapstructure:"exec_path" toml:"exec_path"`
	Locale       string `mapstructure:"locale" toml:"locale"`
}

type TimeoutsConfig struct {
	Selector   time.Duration `mapstructure:"selector" toml:"selector"`
	Navigation time.Duration `mapstructure:"navigation" toml:"navigation"`
	Media      time.Duration `mapstructure:"media" toml:"media"`
	VideoMedia time.Duration `mapstructure:"video_media" toml:"video_media"`
	Gate       time.Duration `mapstructure:"gate" toml:"gate"`
	Login      time.Duration `mapstructure:"login" toml:"login"`
	Settle     time.Duration `mapstructure:"settle" toml:"settle"`
	Completion time.Duration `mapstructure:"completion" toml:"completion"`
	Action     time.Duration `mapstructure:"action" toml:"action"`
}

type HumanizeConfig struct {
	Enabled       bool          `mapstructure:"enabled" toml:"enabled"`
	KeystrokeMin  time.Duration `mapstructure:"keystroke_min" toml:"keystroke_min"`
	KeystrokeMax  time.Duration `mapstructure:"keystroke_max" toml:"keystroke_max"`
	PauseMin      time.Duration `mapstructure:"pause_min" toml:"pause_min"`
	PauseMax      time.Duration `mapstructure:"pause_max" toml:"pause_max"`
	HesitateRatio float64       `mapstructure:"hesitate_ratio" toml:"hesitate_ratio"`
}

type PathsConfig struct {
	Sessions    string `mapstructure:"sessions" toml:"sessions"`
	Diagnostics string `mapstructure:"diagnostics" toml:"diagnostics"`
	Media       string `mapstructure:"media" toml:"media"`
	Registry    string `mapstructure:"registry" toml:"registry"`
}

type ScheduleConfig struct {
	SessionSweep string        `mapstructure:"session_sweep" toml:"session_sweep"`
	Timezone     string        `mapstructure:"timezone" toml:"timezone"`
	WarnWithin   time.Duration `mapstructure:"warn_within" toml:"warn_within"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", 1)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", appName)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.add_source", false)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 820)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.locale", "en-US")

	v.SetDefault("timeouts.selector", "30s")
	v.SetDefault("timeouts.navigation", "60s")
	v.SetDefault("timeouts.media", "180s")
	v.SetDefault("timeouts.video_media", "240s")
	v.SetDefault("timeouts.gate", "120s")
	v.SetDefault("timeouts.login", "45s")
	v.SetDefault("timeouts.settle", "2s")
	v.SetDefault("timeouts.completion", "20s")
	v.SetDefault("timeouts.action", "10m")

	v.SetDefault("humanize.enabled", true)
	v.SetDefault("humanize.keystroke_min", "60ms")
	v.SetDefault("humanize.keystroke_max", "170ms")
	v.SetDefault("humanize.pause_min", "200ms")
	v.SetDefault("humanize.pause_max", "700ms")
	v.SetDefault("humanize.hesitate_ratio", 0.08)

	v.SetDefault("paths.sessions", "")
	v.SetDefault("paths.diagnostics", "")
	v.SetDefault("paths.media", "")
	v.SetDefault("paths.registry", "")

	v.SetDefault("schedule.session_sweep", "0 */6 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.warn_within", "72h")
}

// Default returns a Config with sensible defaults
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return cfg
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	if dir := os.Getenv("XPILOT_HOME"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	if dir := os.Getenv("XPILOT_HOME"); dir != "" {
		return filepath.Join(dir, "cache"), nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from the given file, or the default location when path is
// empty. A missing file yields defaults; XPILOT_* environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("XPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths fills empty path settings with locations under the config and
// cache directories.
func (c *Config) resolvePaths() error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	cacheDir, err := CacheDir()
	if err != nil {
		return err
	}
	if c.Paths.Sessions == "" {
		c.Paths.Sessions = filepath.Join(configDir, "sessions")
	}
	if c.Paths.Registry == "" {
		c.Paths.Registry = filepath.Join(configDir, "accounts.db")
	}
	if c.Paths.Diagnostics == "" {
		c.Paths.Diagnostics = filepath.Join(cacheDir, "diagnostics")
	}
	if c.Paths.Media == "" {
		c.Paths.Media = filepath.Join(cacheDir, "media")
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	t := c.Timeouts
	for name, d := range map[string]time.Duration{
		"selector": t.Selector, "navigation": t.Navigation, "media": t.Media,
		"video_media": t.VideoMedia, "gate": t.Gate, "login": t.Login,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	if t.Settle < 0 {
		return fmt.Errorf("timeouts.settle must not be negative")
	}
	h := c.Humanize
	if h.KeystrokeMax < h.KeystrokeMin || h.PauseMax < h.PauseMin {
		return fmt.Errorf("humanize ranges must have max >= min")
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to the given path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

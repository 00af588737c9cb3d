// Package config loads layered settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lvcoi/ytdl-here/internal/clipwatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
)

const (
	AppName   = "ytdl-here"
	EnvPrefix = "YTDL_HERE"
)

// Config is the resolved runtime configuration.
type Config struct {
	Dir               string
	Engine            string
	YtDlpPath         string
	ClipboardInterval time.Duration
	EditCooldown      time.Duration
	NoClipboard       bool
	Plain             bool
	LogFile           string
	LogLevel          string
	HistoryDB         string
	NoHistory         bool
	FetchTimeout      time.Duration
	AudioMP3          bool
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDir, DefaultDownloadDir())
	v.SetDefault(KeyEngine, EngineYtDlp)
	v.SetDefault(KeyYtDlpPath, "")
	v.SetDefault(KeyClipboardInterval, clipwatch.DefaultInterval)
	v.SetDefault(KeyEditCooldown, clipwatch.DefaultCooldown)
	v.SetDefault(KeyNoClipboard, false)
	v.SetDefault(KeyPlain, false)
	v.SetDefault(KeyLogFile, filepath.Join(stateDir(), AppName+".log"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyHistoryDB, filepath.Join(stateDir(), "history.db"))
	v.SetDefault(KeyNoHistory, false)
	v.SetDefault(KeyFetchTimeout, 2*time.Minute)
	v.SetDefault(KeyAudioMP3, false)
}

// RegisterFlags adds the persistent flags and binds each to v.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String(KeyConfigFile, "", "config file (default "+DefaultConfigFile()+")")
	fs.StringP(KeyDir, "d", DefaultDownloadDir(), "download directory")
	fs.String(KeyEngine, EngineYtDlp, "extraction engine: ytdlp or native")
	fs.String(KeyYtDlpPath, "", "path to the yt-dlp executable")
	fs.Duration(KeyClipboardInterval, clipwatch.DefaultInterval, "clipboard poll interval")
	fs.Duration(KeyEditCooldown, clipwatch.DefaultCooldown, "clipboard pause after editing the URL field")
	fs.Bool(KeyNoClipboard, false, "do not watch the clipboard")
	fs.Bool(KeyPlain, false, "use the line-oriented interface")
	fs.String(KeyLogFile, filepath.Join(stateDir(), AppName+".log"), "log file for the interactive interface")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyHistoryDB, filepath.Join(stateDir(), "history.db"), "job history database")
	fs.Bool(KeyNoHistory, false, "do not record job history")
	fs.Duration(KeyFetchTimeout, 2*time.Minute, "timeout for a single format listing")
	fs.Bool(KeyAudioMP3, false, "convert audio-only downloads to tagged mp3 (native engine)")

	for _, key := range []string{
		KeyDir, KeyEngine, KeyYtDlpPath, KeyClipboardInterval, KeyEditCooldown,
		KeyNoClipboard, KeyPlain, KeyLogFile, KeyLogLevel, KeyHistoryDB,
		KeyNoHistory, KeyFetchTimeout, KeyAudioMP3,
	} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return fmt.Errorf("binding flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the optional config file and resolves all settings. A missing
// default config file is not an error; a missing explicit one is.
func Load(v *viper.Viper, configFile string) (Config, error) {
	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile()
	}
	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, engine.Wrap(engine.CategoryConfig, fmt.Errorf("reading config %s: %w", configFile, err))
		}
	} else if explicit {
		return Config{}, engine.Wrap(engine.CategoryConfig, fmt.Errorf("config file %s: %w", configFile, err))
	}

	cfg := Config{
		Dir:               expandHome(v.GetString(KeyDir)),
		Engine:            strings.ToLower(strings.TrimSpace(v.GetString(KeyEngine))),
		YtDlpPath:         expandHome(v.GetString(KeyYtDlpPath)),
		ClipboardInterval: v.GetDuration(KeyClipboardInterval),
		EditCooldown:      v.GetDuration(KeyEditCooldown),
		NoClipboard:       v.GetBool(KeyNoClipboard),
		Plain:             v.GetBool(KeyPlain),
		LogFile:           expandHome(v.GetString(KeyLogFile)),
		LogLevel:          v.GetString(KeyLogLevel),
		HistoryDB:         expandHome(v.GetString(KeyHistoryDB)),
		NoHistory:         v.GetBool(KeyNoHistory),
		FetchTimeout:      v.GetDuration(KeyFetchTimeout),
		AudioMP3:          v.GetBool(KeyAudioMP3),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Engine {
	case EngineYtDlp, EngineNative:
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineYtDlp, EngineNative))
	}
	if c.Dir == "" {
		errs = append(errs, errors.New("download directory must not be empty"))
	}
	if c.ClipboardInterval <= 0 {
		errs = append(errs, fmt.Errorf("clipboard interval must be positive, got %s", c.ClipboardInterval))
	}
	if c.EditCooldown < 0 {
		errs = append(errs, fmt.Errorf("edit cooldown must not be negative, got %s", c.EditCooldown))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must not be negative, got %s", c.FetchTimeout))
	}
	if len(errs) > 0 {
		return engine.Wrap(engine.CategoryConfig, errors.Join(errs...))
	}
	return nil
}

// DefaultDownloadDir is ~/Downloads, or the working directory when the home
// directory is unknown.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

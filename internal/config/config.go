package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"studyledger/internal/ledger"
	"studyledger/internal/storage"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "ledger.db"
	DefaultDataDirName    = "data"
	AppDirName            = "studyledger"

	// EnvConfigPath overrides the config location when --config is not given.
	EnvConfigPath = "STUDYLEDGER_CONFIG"
)

type Keymap struct {
	Quit     string `toml:"quit"`
	Add      string `toml:"add"`
	Up       string `toml:"up"`
	Down     string `toml:"down"`
	Complete string `toml:"complete"`
	Delete   string `toml:"delete"`
	Edit     string `toml:"edit"`
	Confirm  string `toml:"confirm"`
	Cancel   string `toml:"cancel"`
	NextView string `toml:"next_view"`
	Filter   string `toml:"filter"`

	TimerReset string `toml:"timer_reset"`
	TimerMode  string `toml:"timer_mode"`
}

type Config struct {
	Backend         string `toml:"backend"`
	DBPath          string `toml:"db_path"`
	DataDir         string `toml:"data_dir"`
	DefaultCurrency string `toml:"default_currency"`
	DefaultFilter   string `toml:"default_filter"`
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
	Keys            Keymap `toml:"keys"`
}

// ResolveConfigPath picks the config file: the explicit flag value, then
// $STUDYLEDGER_CONFIG, then the user config directory, then the working directory.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppDirName, DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the config at path, writing the defaults there first if
// the file does not exist. Relative storage paths are resolved against the
// directory holding the config file.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg.resolve(path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.resolve(path), nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case storage.KindSQLite, storage.KindFile, storage.KindMemory:
	default:
		return fmt.Errorf("backend must be sqlite, file or memory, got %q", c.Backend)
	}
	switch strings.ToLower(c.DefaultFilter) {
	case "all", "":
	default:
		if _, err := ledger.ParseFrequency(c.DefaultFilter); err != nil {
			return fmt.Errorf("default_filter: %w", err)
		}
	}
	return nil
}

// StoragePath returns the location handed to storage.Open for the configured backend.
func (c Config) StoragePath() string {
	if strings.EqualFold(c.Backend, storage.KindFile) {
		return c.DataDir
	}
	return c.DBPath
}

func (c Config) resolve(path string) Config {
	base := filepath.Dir(path)
	if c.DBPath == "" {
		c.DBPath = DefaultDBName
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDirName
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = ledger.DefaultCurrency
	}
	c.Backend = strings.ToLower(c.Backend)
	c.DBPath = relativeTo(base, c.DBPath)
	c.DataDir = relativeTo(base, c.DataDir)
	if c.LogFile != "" {
		c.LogFile = relativeTo(base, c.LogFile)
	}
	c.Keys = c.Keys.withDefaults(defaultConfig().Keys)
	return c
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(base, p)
}

func (k Keymap) withDefaults(d Keymap) Keymap {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&k.Quit, d.Quit)
	fill(&k.Add, d.Add)
	fill(&k.Up, d.Up)
	fill(&k.Down, d.Down)
	fill(&k.Complete, d.Complete)
	fill(&k.Delete, d.Delete)
	fill(&k.Edit, d.Edit)
	fill(&k.Confirm, d.Confirm)
	fill(&k.Cancel, d.Cancel)
	fill(&k.NextView, d.NextView)
	fill(&k.Filter, d.Filter)
	fill(&k.TimerReset, d.TimerReset)
	fill(&k.TimerMode, d.TimerMode)
	return k
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		Backend:         storage.KindSQLite,
		DBPath:          DefaultDBName,
		DataDir:         DefaultDataDirName,
		DefaultCurrency: ledger.DefaultCurrency,
		DefaultFilter:   "all",
		LogLevel:        "warn",
		Keys: Keymap{
			Quit:     "q",
			Add:      "a",
			Up:       "k",
			Down:     "j",
			Complete: " ",
			Delete:   "d",
			Edit:     "e",
			Confirm:  "enter",
			Cancel:   "esc",
			NextView: "tab",
			Filter:   "f",

			TimerReset: "r",
			TimerMode:  "m",
		},
	}
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the config path passed on the command line.
const EnvPath = "ITEMFORGE_CONFIG"

// Server holds all configuration for the item server.
type Server struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Itemization Itemization    `yaml:"itemization"`
	Database    DatabaseConfig `yaml:"database"`
	Feed        Feed           `yaml:"feed"`
	Persistence Persistence    `yaml:"persistence"`
	Ground      Ground         `yaml:"ground"`
}

// Itemization configures the loot engine.
type Itemization struct {
	CatalogPath       string `yaml:"catalog_path"`
	MaxItemLevel      int32  `yaml:"max_item_level"`
	MaxPendingChanges int    `yaml:"max_pending_changes"`
	DefaultMagicFind  int32  `yaml:"default_magic_find"`
	Seed              uint64 `yaml:"seed"` // 0 = global entropy
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Feed configures the websocket replica feed.
type Feed struct {
	Enabled       bool          `yaml:"enabled"`
	BindAddress   string        `yaml:"bind_address"`
	Port          int           `yaml:"port"`
	SendQueueSize int           `yaml:"send_queue_size"` // per-client outbox capacity
	WriteTimeout  time.Duration `yaml:"write_timeout"`   // per-write deadline
}

// Addr returns host:port for the HTTP listener.
func (f Feed) Addr() string {
	return fmt.Sprintf("%s:%d", f.BindAddress, f.Port)
}

// Persistence configures periodic inventory flushes.
type Persistence struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Ground configures dropped item lifetime.
type Ground struct {
	ExpireAfter   time.Duration `yaml:"expire_after"`   // 0 = drops never expire
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel: "info",
		Itemization: Itemization{
			CatalogPath:       "config/catalog.yaml",
			MaxItemLevel:      99,
			MaxPendingChanges: 32,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "itemforge",
			Password: "itemforge",
			DBName:   "itemforge",
			SSLMode:  "disable",
		},
		Feed: Feed{
			Enabled:       true,
			BindAddress:   "0.0.0.0",
			Port:          8080,
			SendQueueSize: 64,
			WriteTimeout:  5 * time.Second,
		},
		Persistence: Persistence{
			FlushInterval: 10 * time.Second,
		},
		Ground: Ground{
			ExpireAfter:   60 * time.Second,
			SweepInterval: 5 * time.Second,
		},
	}
}

// LoadServer loads server config from a YAML file. ITEMFORGE_CONFIG, when
// set, takes precedence over path. If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	if env := os.Getenv(EnvPath); env != "" {
		path = env
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (s Server) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/logger"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/ratelimit"
)

// Source names used as keys of the rate_limits block.
const (
	SourceActive     = "secop_active"
	SourceHistorical = "secop_historical"
)

// Storage backends for snapshots.
const (
	StorageFilesystem = "filesystem"
	StorageMinio      = "minio"
	StorageSQLite     = "sqlite"
)

// Config is the process configuration loaded from config.yaml.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Log        logger.Config  `yaml:"log"`
	Sources    SourcesConfig  `yaml:"sources"`
	Refresh    RefreshConfig  `yaml:"refresh"`
	Storage    StorageConfig  `yaml:"storage"`
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`
	Notify     NotifyConfig   `yaml:"notify"`
	SearchFile string         `yaml:"search_file"`

	ratelimit.SourceConfigs `yaml:",inline"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SourcesConfig struct {
	ActiveURL     string        `yaml:"active_url"`
	HistoricalURL string        `yaml:"historical_url"`
	AppToken      string        `yaml:"app_token"`
	PageSize      int           `yaml:"page_size"`
	Workers       int           `yaml:"workers"`
	Timeout       time.Duration `yaml:"timeout"`
}

type RefreshConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart bool          `yaml:"run_on_start"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir"`
	Minio   MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type DatabaseConfig struct {
	Path  string `yaml:"path"`
	Debug bool   `yaml:"debug"`
}

type RedisConfig struct {
	URL     string        `yaml:"url"`
	LockTTL time.Duration `yaml:"lock_ttl"`
}

type NotifyConfig struct {
	Recipients []string       `yaml:"recipients"`
	Email      EmailConfig    `yaml:"email"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether SMTP credentials are present.
func (e EmailConfig) Enabled() bool {
	return e.Username != "" && e.Password != ""
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Log:    logger.Config{Level: "info", Format: "text"},
		Sources: SourcesConfig{
			ActiveURL:     "https://www.datos.gov.co/resource/p6dx-8zbt.json",
			HistoricalURL: "https://www.datos.gov.co/resource/jbjy-vk9h.json",
			PageSize:      1000,
			Workers:       5,
			Timeout:       60 * time.Second,
		},
		Refresh:    RefreshConfig{Interval: 6 * time.Hour},
		Storage:    StorageConfig{Backend: StorageFilesystem, Dir: "data"},
		Database:   DatabaseConfig{Path: "secop.db"},
		Redis:      RedisConfig{LockTTL: 30 * time.Minute},
		Notify:     NotifyConfig{Email: EmailConfig{Host: "smtp.gmail.com", Port: 587}},
		SearchFile: "search.yaml",
		SourceConfigs: ratelimit.SourceConfigs{RateLimits: map[string]ratelimit.Config{
			SourceActive:     {Strategy: ratelimit.StrategyFixedDelay, FixedDelay: 200 * time.Millisecond},
			SourceHistorical: {Strategy: ratelimit.StrategyFixedDelay, FixedDelay: 200 * time.Millisecond},
		}},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if cfg.Sources.PageSize <= 0 {
		cfg.Sources.PageSize = def.Sources.PageSize
	}
	if cfg.Sources.Workers <= 0 {
		cfg.Sources.Workers = def.Sources.Workers
	}
	if cfg.Sources.Timeout <= 0 {
		cfg.Sources.Timeout = def.Sources.Timeout
	}
	if cfg.Refresh.Interval <= 0 {
		cfg.Refresh.Interval = def.Refresh.Interval
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = def.Storage.Dir
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = def.Redis.LockTTL
	}
	if cfg.Notify.Email.Host == "" {
		cfg.Notify.Email.Host = def.Notify.Email.Host
	}
	if cfg.Notify.Email.Port == 0 {
		cfg.Notify.Email.Port = def.Notify.Email.Port
	}
	if cfg.Notify.Email.From == "" {
		cfg.Notify.Email.From = cfg.Notify.Email.Username
	}
	if cfg.SearchFile == "" {
		cfg.SearchFile = def.SearchFile
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = def.RateLimits
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Sources.ActiveURL, "SECOP_ACTIVE_URL")
	setString(&cfg.Sources.HistoricalURL, "SECOP_HISTORICAL_URL")
	setString(&cfg.Sources.AppToken, "SECOP_APP_TOKEN")
	setString(&cfg.Storage.Backend, "SECOP_STORAGE_BACKEND")
	setString(&cfg.Storage.Dir, "SECOP_STORAGE_DIR")
	setString(&cfg.Database.Path, "SECOP_DB_PATH")
	setString(&cfg.SearchFile, "SECOP_SEARCH_FILE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Notify.Email.Username, "SMTP_USERNAME")
	setString(&cfg.Notify.Email.Password, "SMTP_PASSWORD")
	setString(&cfg.Notify.Telegram.Token, "TELEGRAM_BOT_TOKEN")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SECOP_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Interval = d
		}
	}
	if v := os.Getenv("NOTIFY_RECIPIENTS"); v != "" {
		cfg.Notify.Recipients = splitList(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

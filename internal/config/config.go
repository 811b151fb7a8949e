// Package config loads and validates the twice process configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// CacheType selects the C1 cache backend implementation.
type CacheType string

const (
	// CacheInternal is the process-local in-memory backend.
	CacheInternal CacheType = "internal"
	// CacheMemcache is the remote K/V backend.
	CacheMemcache CacheType = "memcache"
)

// Profile selects the DB upstream driver between an embedded lite mode
// and a standard Postgres-backed deployment.
type Profile string

const (
	// ProfileLite runs against an embedded pure-Go SQLite database.
	ProfileLite Profile = "lite"
	// ProfileStandard runs against Postgres.
	ProfileStandard Profile = "standard"
)

// Config is the fully resolved process configuration.
type Config struct {
	Port      string `mapstructure:"port" validate:"required"`
	Interface string `mapstructure:"interface"`

	BackendAppserver string `mapstructure:"backend_appserver" validate:"required,hostname_port"`
	BackendMemcache  string `mapstructure:"backend_memcache"`

	Profile Profile  `mapstructure:"profile" validate:"required,oneof=lite standard"`
	DB      DBConfig `mapstructure:"backend_db"`

	CacheType   CacheType `mapstructure:"cache_type" validate:"required,oneof=internal memcache"`
	CacheServer string    `mapstructure:"cache_server"`
	CachePool   int       `mapstructure:"cache_pool" validate:"gte=0"`

	MemoryLimitMB int `mapstructure:"memory_limit" validate:"gte=0"`

	TemplateRegex string `mapstructure:"template_regex" validate:"required"`

	PurgeHeader   string `mapstructure:"purge_header" validate:"required"`
	CacheHeader   string `mapstructure:"cache_header" validate:"required"`
	TwiceHeader   string `mapstructure:"twice_header" validate:"required"`
	CookiesHeader string `mapstructure:"cookies_header" validate:"required"`

	RewriteHost string `mapstructure:"rewrite_host"`

	HashLangHeader  string `mapstructure:"hash_lang_header"`
	HashLangDefault string `mapstructure:"hash_lang_default"`

	SessionCookie   string `mapstructure:"session_cookie"`
	LoginGatedKinds string `mapstructure:"login_gated_kinds"`

	OriginTimeout time.Duration `mapstructure:"origin_timeout"`

	Log     LogConfig     `mapstructure:"log"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Refresh RefreshConfig `mapstructure:"refresh"`
}

// DBConfig configures the relational DB upstream.
type DBConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Name        string `mapstructure:"name"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PoolMinConn int32  `mapstructure:"pool_min"`
	PoolMaxConn int32  `mapstructure:"pool_max"`
}

// LogConfig configures structured logging and file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AdminConfig configures the operator-facing admin plane (metrics,
// swagger docs, event-stream websocket) — additive, never on the
// client-facing request path.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RefreshConfig throttles background soft-stale refresh fan-out.
type RefreshConfig struct {
	MaxRatePerSecond float64 `mapstructure:"max_rate_per_second"`
	Burst            int     `mapstructure:"burst"`
}

// Load reads configuration from path (if non-empty) plus environment
// variables (TWICE_ prefix), applies defaults, and validates the result.
// Repeated keys in the underlying file are "last wins" — viper's native
// behavior, chosen over concatenating repeated values together.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TWICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("interface", "0.0.0.0")
	v.SetDefault("profile", ProfileLite)
	v.SetDefault("cache_type", CacheInternal)
	v.SetDefault("cache_pool", 10)
	v.SetDefault("memory_limit", 256)
	v.SetDefault("template_regex", `<%%\s+(.*?)\s+%%>`)
	v.SetDefault("purge_header", "X-Purge")
	v.SetDefault("cache_header", "X-Twice-Control")
	v.SetDefault("twice_header", "X-Twice")
	v.SetDefault("cookies_header", "X-Twice-Vary")
	v.SetDefault("origin_timeout", 5*time.Second)
	v.SetDefault("session_cookie", "twice_session")
	v.SetDefault("login_gated_kinds", "favorite,subscription")
	v.SetDefault("backend_db.sqlite_path", "./twice.db")
	v.SetDefault("backend_db.pool_min", 1)
	v.SetDefault("backend_db.pool_max", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.addr", ":9090")
	v.SetDefault("refresh.max_rate_per_second", 50.0)
	v.SetDefault("refresh.burst", 20)
}

// Validate reports every configuration violation via validator/v10 struct
// tags, plus the cross-field checks tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if c.CacheType == CacheMemcache && c.CacheServer == "" {
		return fmt.Errorf("config: cache_server is required when cache_type=memcache")
	}
	if c.Profile == ProfileStandard && c.DB.Host == "" {
		return fmt.Errorf("config: backend_db.host is required for the standard profile")
	}
	return nil
}

// Package config loads and validates the core's configuration surface
// from file, environment, and CLI flags using viper, with validation
// patterned on the teacher's EnvConfig/Validator idiom.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration surface (spec §6).
type Config struct {
	Locale     LocaleConfig
	Theme      ThemeConfig
	Store      StoreConfig
	Content    ContentConfig
	HotStoreTTL map[string]time.Duration
	Plugins    PluginsConfig
	Auth       AuthConfig
	Validation ValidationConfig
	Cache      CacheConfig
	Log        LogConfig
	Server     ServerConfig
}

type LocaleConfig struct {
	Default   string
	Supported []string
}

type ThemeConfig struct {
	Active   string
	Contexts []string
}

type StoreConfig struct {
	DurableURL string
	HotURL     string
}

type ContentConfig struct {
	ThemesDir string
}

type PluginsConfig struct {
	Isolation string // none | process | container
	Limits    PluginLimits
}

type PluginLimits struct {
	Memory int64
	Fuel   int64
	WallS  time.Duration
}

type AuthConfig struct {
	SessionTTL     time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Argon2Memory   uint32
	Argon2Time     uint32
}

type ValidationConfig struct {
	SecurityChecks bool
	MaxUploadSize  int64
	AllowedMIME    []string
}

type CacheConfig struct {
	ResponseEnabled bool
	ResponseVary    []string
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string
	AllowedOrigins  []string
	RateLimit       float64 // requests/sec per client identity, 0 = no limit
}

// Loader wraps a viper instance bound to an injectable filesystem, so tests
// can supply an in-memory afero.Fs instead of touching disk.
type Loader struct {
	v  *viper.Viper
	fs afero.Fs
}

// NewLoader builds a Loader with defaults set and REED_-prefixed
// environment variables enabled.
func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix("REED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return &Loader{v: v, fs: fs}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("locale.default", "en")
	v.SetDefault("locale.supported", []string{"en"})
	v.SetDefault("theme.active", "default")
	v.SetDefault("theme.contexts", []string{})
	v.SetDefault("store.durable.url", "postgres://localhost:5432/reed")
	v.SetDefault("store.hot.url", "redis://localhost:6379/0")
	v.SetDefault("content.themes_dir", "./themes")
	v.SetDefault("plugins.isolation", "none")
	v.SetDefault("plugins.limits.memory", 64*1024*1024)
	v.SetDefault("plugins.limits.fuel", 10_000_000)
	v.SetDefault("plugins.limits.wall_s", "30s")
	v.SetDefault("auth.session.ttl", "168h")
	v.SetDefault("auth.token.access_ttl", "15m")
	v.SetDefault("auth.token.refresh_ttl", "720h")
	v.SetDefault("auth.password.argon2.mem", 65536)
	v.SetDefault("auth.password.argon2.t", 3)
	v.SetDefault("validation.security_checks", true)
	v.SetDefault("validation.file_upload.max_size", 10*1024*1024)
	v.SetDefault("validation.file_upload.allowed_mime", []string{"image/png", "image/jpeg", "image/webp"})
	v.SetDefault("cache.response.enabled", true)
	v.SetDefault("cache.response.vary", []string{"locale", "theme"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 0.0)
}

// SetConfigFile points the loader at an explicit path (used by --config).
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// AddConfigPath adds a directory searched for a `reed.yaml`/`reed.json`
// config file when no explicit path was given.
func (l *Loader) AddConfigPath(path string) {
	l.v.SetConfigName("reed")
	l.v.AddConfigPath(path)
}

// BindPFlags binds a cobra command's persistent flags into the viper
// instance. In viper's precedence order a set flag outranks env, file and
// defaults; a flag is only consulted under the key it is bound to, which is
// its own flag name.
func (l *Loader) BindPFlags(flags *pflag.FlagSet) error {
	return l.v.BindPFlags(flags)
}

// ReadInConfig loads the config file, if one was found; a missing file is
// not an error (defaults + env + flags still apply).
func (l *Loader) ReadInConfig() error {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Load resolves and validates the full Config.
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{
		Locale: LocaleConfig{
			Default:   l.v.GetString("locale.default"),
			Supported: l.v.GetStringSlice("locale.supported"),
		},
		Theme: ThemeConfig{
			Active:   l.v.GetString("theme.active"),
			Contexts: l.v.GetStringSlice("theme.contexts"),
		},
		Store: StoreConfig{
			DurableURL: l.v.GetString("store.durable.url"),
			HotURL:     l.v.GetString("store.hot.url"),
		},
		Content: ContentConfig{
			ThemesDir: l.v.GetString("content.themes_dir"),
		},
		HotStoreTTL: ttlOverrides(l.v),
		Plugins: PluginsConfig{
			Isolation: l.v.GetString("plugins.isolation"),
			Limits: PluginLimits{
				Memory: l.v.GetInt64("plugins.limits.memory"),
				Fuel:   l.v.GetInt64("plugins.limits.fuel"),
				WallS:  l.v.GetDuration("plugins.limits.wall_s"),
			},
		},
		Auth: AuthConfig{
			SessionTTL:   l.v.GetDuration("auth.session.ttl"),
			AccessTTL:    l.v.GetDuration("auth.token.access_ttl"),
			RefreshTTL:   l.v.GetDuration("auth.token.refresh_ttl"),
			Argon2Memory: uint32(l.v.GetUint32("auth.password.argon2.mem")),
			Argon2Time:   uint32(l.v.GetUint32("auth.password.argon2.t")),
		},
		Validation: ValidationConfig{
			SecurityChecks: l.v.GetBool("validation.security_checks"),
			MaxUploadSize:  l.v.GetInt64("validation.file_upload.max_size"),
			AllowedMIME:    l.v.GetStringSlice("validation.file_upload.allowed_mime"),
		},
		Cache: CacheConfig{
			ResponseEnabled: l.v.GetBool("cache.response.enabled"),
			ResponseVary:    l.v.GetStringSlice("cache.response.vary"),
		},
		Log: LogConfig{
			Level:  l.v.GetString("log.level"),
			Format: l.v.GetString("log.format"),
		},
		Server: ServerConfig{
			Port:            l.v.GetInt("server.port"),
			Host:            l.v.GetString("server.host"),
			ReadTimeout:     l.v.GetDuration("server.read_timeout"),
			WriteTimeout:    l.v.GetDuration("server.write_timeout"),
			ShutdownTimeout: l.v.GetDuration("server.shutdown_timeout"),
			BodyLimit:       l.v.GetString("server.body_limit"),
			AllowedOrigins:  l.v.GetStringSlice("server.allowed_origins"),
			RateLimit:       l.v.GetFloat64("server.rate_limit"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ttlOverrides collects hot_store.ttl.<class> entries into a map keyed by
// class name.
func ttlOverrides(v *viper.Viper) map[string]time.Duration {
	out := map[string]time.Duration{}
	raw, ok := v.Get("hot_store.ttl").(map[string]interface{})
	if !ok {
		return out
	}
	for class, val := range raw {
		switch t := val.(type) {
		case string:
			if d, err := time.ParseDuration(t); err == nil {
				out[class] = d
			} else if secs, err := time.ParseDuration(t + "s"); err == nil {
				out[class] = secs
			}
		case int:
			out[class] = time.Duration(t) * time.Second
		case int64:
			out[class] = time.Duration(t) * time.Second
		case float64:
			out[class] = time.Duration(t) * time.Second
		}
	}
	return out
}

// Validator accumulates validation errors, matching the teacher's
// fail-together-not-fail-fast configuration checking style.
type Validator struct {
	errors []string
}

func (val *Validator) require(field string, ok bool, format string, args ...interface{}) {
	if !ok {
		val.errors = append(val.errors, fmt.Sprintf(format, args...))
		_ = field
	}
}

func (val *Validator) oneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	val.errors = append(val.errors, fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value))
}

func validate(cfg *Config) error {
	v := &Validator{}
	v.require("locale.default", cfg.Locale.Default != "", "locale.default is required")
	v.require("server.port", cfg.Server.Port > 0 && cfg.Server.Port < 65536, "server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	v.oneOf("log.level", cfg.Log.Level, "debug", "info", "warn", "error", "fatal")
	v.oneOf("log.format", cfg.Log.Format, "text", "json")
	v.oneOf("plugins.isolation", cfg.Plugins.Isolation, "none", "process", "container")
	v.require("store.durable.url", cfg.Store.DurableURL != "", "store.durable.url is required")
	v.require("store.hot.url", cfg.Store.HotURL != "", "store.hot.url is required")

	if len(v.errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
	}
	return nil
}

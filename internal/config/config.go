// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/token-scanner/internal/utils/logger"
)

type Config struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	RPCURL          string   `mapstructure:"rpc_url"`
	PrivilegedUsers []string `mapstructure:"privileged_users"`

	Discovery DiscoveryConfig          `mapstructure:"discovery"`
	Cache     CacheConfig              `mapstructure:"cache"`
	Session   SessionConfig            `mapstructure:"session"`
	Throttle  ThrottleConfig           `mapstructure:"throttle"`
	Gates     map[string]time.Duration `mapstructure:"gates"`
	HTTP      HTTPConfig               `mapstructure:"http"`
	Detail    DetailConfig             `mapstructure:"detail"`

	Birdeye       ProviderConfig `mapstructure:"birdeye"`
	DexScreener   ProviderConfig `mapstructure:"dexscreener"`
	GeckoTerminal ProviderConfig `mapstructure:"geckoterminal"`
	Jupiter       ProviderConfig `mapstructure:"jupiter"`

	Log logger.Config `mapstructure:"log"`
}

type DiscoveryConfig struct {
	Limit    int `mapstructure:"limit"`
	RawLimit int `mapstructure:"raw_limit"`
}

type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Backend  string        `mapstructure:"backend"` // memory | redis
	RedisURL string        `mapstructure:"redis_url"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ThrottleConfig struct {
	Cooldown           time.Duration `mapstructure:"cooldown"`
	PrivilegedCooldown time.Duration `mapstructure:"privileged_cooldown"`
	Driver             string        `mapstructure:"driver"` // sqlite | postgres
	DSN                string        `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	LightTimeout    time.Duration `mapstructure:"light_timeout"`
	MaxTries        uint          `mapstructure:"max_tries"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

type DetailConfig struct {
	MaxInFlight int `mapstructure:"max_inflight"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

const (
	DefaultListenAddr         = ":8080"
	DefaultRPCURL             = "https://api.mainnet-beta.solana.com"
	DefaultDiscoveryLimit     = 8
	DefaultRawLimit           = 50
	DefaultCacheTTL           = 15 * time.Second
	DefaultSessionTTL         = 300 * time.Second
	DefaultCooldown           = 30 * time.Second
	DefaultPrivilegedCooldown = 10 * time.Second
	DefaultHTTPTimeout        = 12 * time.Second
	DefaultLightTimeout       = 5 * time.Second
	DefaultMaxTries           = 2
	DefaultBreakerFailures    = 5
	DefaultBreakerOpenFor     = 30 * time.Second
	DefaultMaxInFlight        = 4
)

const envPrefix = "TOKEN_SCANNER"

// DefaultGates is the minimum spacing between calls per provider class.
var DefaultGates = map[string]time.Duration{
	"birdeye":       1100 * time.Millisecond,
	"dexscreener":   time.Second,
	"geckoterminal": 2 * time.Second,
	"rpc":           100 * time.Millisecond,
	"jupiter":       250 * time.Millisecond,
}

// LoadConfig reads path (JSON or YAML) when given, then defaults and TOKEN_SCANNER_* env.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"listen_addr":                  DefaultListenAddr,
		"rpc_url":                      DefaultRPCURL,
		"privileged_users":             []string{},
		"discovery.limit":              DefaultDiscoveryLimit,
		"discovery.raw_limit":          DefaultRawLimit,
		"cache.ttl":                    DefaultCacheTTL,
		"cache.backend":                "memory",
		"cache.redis_url":              "",
		"session.ttl":                  DefaultSessionTTL,
		"throttle.cooldown":            DefaultCooldown,
		"throttle.privileged_cooldown": DefaultPrivilegedCooldown,
		"throttle.driver":              "sqlite",
		"throttle.dsn":                 "scanner.db",
		"http.timeout":                 DefaultHTTPTimeout,
		"http.light_timeout":           DefaultLightTimeout,
		"http.max_tries":               DefaultMaxTries,
		"http.breaker_failures":        DefaultBreakerFailures,
		"http.breaker_open_for":        DefaultBreakerOpenFor,
		"detail.max_inflight":          DefaultMaxInFlight,
		"birdeye.api_key":              "",
		"birdeye.base_url":             "https://public-api.birdeye.so",
		"dexscreener.base_url":         "https://api.dexscreener.com",
		"geckoterminal.base_url":       "https://api.geckoterminal.com",
		"jupiter.base_url":             "https://lite-api.jup.ag",
		"log.level":                    "",
		"log.file":                     logger.DefaultConfig().LogFile,
		"log.max_size":                 logger.DefaultConfig().MaxSize,
		"log.max_age":                  logger.DefaultConfig().MaxAge,
		"log.max_backups":              logger.DefaultConfig().MaxBackups,
		"log.compress":                 logger.DefaultConfig().Compress,
		"log.development":              false,
	}
	for name, spacing := range DefaultGates {
		defaults["gates."+name] = spacing
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if err := cfg.Log.Validate(); err != nil {
		return err
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	for name, p := range map[string]ProviderConfig{
		"birdeye":       cfg.Birdeye,
		"dexscreener":   cfg.DexScreener,
		"geckoterminal": cfg.GeckoTerminal,
		"jupiter":       cfg.Jupiter,
	} {
		if err := validateURLWithCache(p.BaseURL, "http"); err != nil {
			return errors.New("invalid " + name + " base_url")
		}
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if err := validateURLWithCache(cfg.Cache.RedisURL, "redis"); err != nil {
			return errors.New("cache.redis_url must be a redis:// URL")
		}
	default:
		return errors.New("cache.backend must be memory or redis")
	}
	switch cfg.Throttle.Driver {
	case "sqlite", "postgres":
	default:
		return errors.New("throttle.driver must be sqlite or postgres")
	}
	if cfg.Throttle.DSN == "" {
		return errors.New("missing throttle.dsn")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.Discovery.Limit <= 0 {
		return errors.New("invalid discovery.limit")
	}
	if cfg.Discovery.RawLimit < cfg.Discovery.Limit {
		return errors.New("discovery.raw_limit must not be below discovery.limit")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("invalid cache.ttl")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("invalid session.ttl")
	}
	if cfg.Throttle.Cooldown < 0 || cfg.Throttle.PrivilegedCooldown < 0 {
		return errors.New("invalid throttle cooldown")
	}
	if cfg.HTTP.Timeout <= 0 || cfg.HTTP.LightTimeout <= 0 {
		return errors.New("invalid http timeout")
	}
	if cfg.HTTP.MaxTries == 0 {
		return errors.New("invalid http.max_tries")
	}
	if cfg.Detail.MaxInFlight <= 0 {
		return errors.New("invalid detail.max_inflight")
	}
	for name, spacing := range cfg.Gates {
		if spacing < 0 {
			return errors.New("invalid gate spacing for " + name)
		}
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	envUsers := v.GetString("PRIVILEGED_USERS")
	if envUsers != "" {
		var users []string
		for _, u := range strings.Split(envUsers, ",") {
			clean := strings.TrimSpace(u)
			if clean != "" {
				users = append(users, clean)
			}
		}
		if len(users) > 0 {
			cfg.PrivilegedUsers = users
		}
	}
	return nil
}

// Package config loads application configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Solana   SolanaConfig   `yaml:"solana"`
	Rates    RatesConfig    `yaml:"rates"`
	Tips     TipsConfig     `yaml:"tips"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs the
// service on the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SolanaConfig points at the RPC node used for transaction verification.
type SolanaConfig struct {
	RPCURL     string        `yaml:"rpc_url"`
	Commitment string        `yaml:"commitment"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RatesConfig controls the SOL/USD rate source and cache.
type RatesConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RedisAddr       string        `yaml:"redis_addr"`
}

// TipsConfig holds tipping policy.
type TipsConfig struct {
	AdminWallets []string `yaml:"admin_wallets"`
	TipJarLimit  float64  `yaml:"tip_jar_limit"`
}

// LoggingConfig mirrors pkg/logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
			Timeout:    15 * time.Second,
		},
		Rates: RatesConfig{
			Endpoint:        "https://api.jup.ag/price/v2",
			RefreshInterval: 30 * time.Second,
			CacheTTL:        time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the given YAML file (optional), then
// applies environment overrides. A .env file in the working directory is
// loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Server.Port <= 0 {
		return Config{}, fmt.Errorf("server port must be positive")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TIPPIT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TIPPIT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		cfg.Solana.RPCURL = v
	}
	if v := os.Getenv("SOLANA_COMMITMENT"); v != "" {
		cfg.Solana.Commitment = v
	}
	if v := os.Getenv("RATES_ENDPOINT"); v != "" {
		cfg.Rates.Endpoint = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Rates.RedisAddr = v
	}
	if v := os.Getenv("ADMIN_WALLETS"); v != "" {
		wallets := strings.Split(v, ",")
		cfg.Tips.AdminWallets = cfg.Tips.AdminWallets[:0]
		for _, w := range wallets {
			if w = strings.TrimSpace(w); w != "" {
				cfg.Tips.AdminWallets = append(cfg.Tips.AdminWallets, w)
			}
		}
	}
	if v := os.Getenv("TIP_JAR_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit > 0 {
			cfg.Tips.TipJarLimit = limit
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Address returns the host:port the HTTP server binds to.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

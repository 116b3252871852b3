// Package config loads daemon configuration from a YAML file, a .env file
// and PARTYBID_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"partybid/internal/domain"
	"partybid/internal/market"
	"partybid/internal/pool"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PARTYBID_"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config models partyd.yaml.
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	Log        LogConfig     `yaml:"log"`
	Storage    StorageConfig `yaml:"storage"`
	Market     MarketConfig  `yaml:"market"`
	Keeper     KeeperConfig  `yaml:"keeper"`
	Feed       FeedConfig    `yaml:"feed"`
	Pools      []PoolSpec    `yaml:"pools"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// StorageConfig selects where pool projections are indexed.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn,omitempty"` // optional event analytics
	Migrate       bool   `yaml:"migrate"`
}

// MarketConfig points at the JSON-RPC relay fronting the auction markets.
type MarketConfig struct {
	RPCURL     string        `yaml:"rpc_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// KeeperConfig controls outcome polling.
type KeeperConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// FeedConfig controls the websocket event feed.
type FeedConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// PoolSpec declares one pool. Amounts and ids are decimal strings.
type PoolSpec struct {
	ID                      string `yaml:"id"`
	Admin                   string `yaml:"admin"`
	Address                 string `yaml:"address"`
	MarketKind              string `yaml:"market_kind"`
	MarketAddress           string `yaml:"market_address"`
	AuctionID               string `yaml:"auction_id,omitempty"`
	NFTContract             string `yaml:"nft_contract,omitempty"`
	TokenID                 string `yaml:"token_id,omitempty"`
	TokenScale              string `yaml:"token_scale,omitempty"`
	AcceptLateContributions bool   `yaml:"accept_late_contributions"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr: ":9090",
		Log:        LogConfig{Level: "info"},
		Storage:    StorageConfig{Backend: BackendMemory},
		Market:     MarketConfig{Timeout: 30 * time.Second, MaxRetries: 3},
		Keeper:     KeeperConfig{Interval: 15 * time.Second},
		Feed:       FeedConfig{SendBuffer: 256, PingInterval: 30 * time.Second},
	}
}

// Load reads path (optional) over the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("LISTEN_ADDR", &c.ListenAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)
	str("MARKET_RPC_URL", &c.Market.RPCURL)

	if v, ok := lookup(EnvPrefix + "LOG_DEVELOPMENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_DEVELOPMENT: %w", EnvPrefix, err)
		}
		c.Log.Development = b
	}
	if v, ok := lookup(EnvPrefix + "KEEPER_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sKEEPER_INTERVAL: %w", EnvPrefix, err)
		}
		c.Keeper.Interval = d
	}
	return nil
}

// Validate reports every missing or malformed field.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if len(c.Pools) > 0 && c.Market.RPCURL == "" {
		errs = append(errs, errors.New("market.rpc_url is required when pools are configured"))
	}
	if c.Keeper.Interval <= 0 {
		errs = append(errs, errors.New("keeper.interval must be positive"))
	}

	seen := make(map[string]struct{}, len(c.Pools))
	for i, p := range c.Pools {
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("pools[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = struct{}{}
		if _, err := p.Gateway(); err != nil {
			errs = append(errs, fmt.Errorf("pools[%d]: %w", i, err))
		}
		if _, err := p.Pool(); err != nil {
			errs = append(errs, fmt.Errorf("pools[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Gateway builds the market gateway configuration of the pool.
func (p PoolSpec) Gateway() (market.GatewayConfig, error) {
	var cfg market.GatewayConfig
	var err error

	cfg.Kind = market.Kind(strings.ToLower(p.MarketKind))
	if cfg.Market, err = address("market_address", p.MarketAddress); err != nil {
		return cfg, err
	}
	if cfg.Self, err = address("address", p.Address); err != nil {
		return cfg, err
	}
	if cfg.Target.AuctionID, err = optionalAmount("auction_id", p.AuctionID); err != nil {
		return cfg, err
	}
	if cfg.Target.TokenID, err = optionalAmount("token_id", p.TokenID); err != nil {
		return cfg, err
	}
	if p.NFTContract != "" {
		if cfg.Target.NFTContract, err = address("nft_contract", p.NFTContract); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Pool builds the pool configuration.
func (p PoolSpec) Pool() (pool.Config, error) {
	var cfg pool.Config
	if p.ID == "" {
		return cfg, errors.New("id is required")
	}
	admin, err := address("admin", p.Admin)
	if err != nil {
		return cfg, err
	}
	scale, err := optionalAmount("token_scale", p.TokenScale)
	if err != nil {
		return cfg, err
	}
	if scale != nil && scale.IsZero() {
		return cfg, errors.New("token_scale must be positive")
	}
	cfg.ID = p.ID
	cfg.Admin = admin
	cfg.TokenScale = scale
	cfg.AcceptLateContributions = p.AcceptLateContributions
	return cfg, nil
}

func address(field, s string) (common.Address, error) {
	a, err := domain.ParseAddress(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return a, nil
}

func optionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := domain.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding
// variables already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

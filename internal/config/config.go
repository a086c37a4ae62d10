package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string
	Env  string

	Store     string
	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret        string
	ServiceJWTSecret string

	BlackjackRTPBps  int64
	MinBet           int64
	MaxBet           int64
	EscrowStake      bool
	HouseAccount     int64
	HouseSeedBalance int64

	ComputeMode    string
	ComputeURL     string
	CallbackURL    string
	ComputeWorkers int
	StepTimeout    time.Duration

	LogLevel string
	LogFile  string
}

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	ComputeLocal  = "local"
	ComputeRemote = "remote"

	MinStepTimeout = time.Second
)

func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		Store:            strings.ToLower(getEnv("STORE", StoreRedis)),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:        getEnv("REDIS_PASS", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		ServiceJWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
		ComputeMode:      strings.ToLower(getEnv("COMPUTE_MODE", ComputeLocal)),
		ComputeURL:       getEnv("COMPUTE_URL", ""),
		CallbackURL:      getEnv("CALLBACK_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.BlackjackRTPBps, err = getInt64("BLACKJACK_RTP_BPS", 9950); err != nil {
		return nil, err
	}
	if cfg.MinBet, err = getInt64("MIN_BET", 1); err != nil {
		return nil, err
	}
	if cfg.MaxBet, err = getInt64("MAX_BET", 10000); err != nil {
		return nil, err
	}
	if cfg.EscrowStake, err = getBool("ESCROW_STAKE", false); err != nil {
		return nil, err
	}
	if cfg.HouseAccount, err = getInt64("HOUSE_ACCOUNT", 0); err != nil {
		return nil, err
	}
	if cfg.HouseSeedBalance, err = getInt64("HOUSE_SEED_BALANCE", 100000000); err != nil {
		return nil, err
	}
	if cfg.ComputeWorkers, err = getInt("COMPUTE_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.StepTimeout, err = getDuration("STEP_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.BlackjackRTPBps < 8000 || c.BlackjackRTPBps > 10000 {
		return fmt.Errorf("BLACKJACK_RTP_BPS must be between 8000 and 10000, got %d", c.BlackjackRTPBps)
	}
	if c.MinBet < 1 || c.MaxBet < c.MinBet {
		return fmt.Errorf("invalid bet bounds: min %d max %d", c.MinBet, c.MaxBet)
	}
	switch c.Store {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	switch c.ComputeMode {
	case ComputeLocal:
	case ComputeRemote:
		if c.ComputeURL == "" || c.CallbackURL == "" {
			return fmt.Errorf("COMPUTE_URL and CALLBACK_URL are required in remote compute mode")
		}
		if c.ServiceJWTSecret == "" {
			return fmt.Errorf("SERVICE_JWT_SECRET is required in remote compute mode")
		}
	default:
		return fmt.Errorf("unknown COMPUTE_MODE %q", c.ComputeMode)
	}
	if c.StepTimeout < MinStepTimeout {
		return fmt.Errorf("STEP_TIMEOUT must be at least %s, got %s", MinStepTimeout, c.StepTimeout)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

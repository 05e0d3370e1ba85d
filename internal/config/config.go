// Package config loads the service configuration from the environment.
// A .env file in the working directory is picked up automatically.
package config

import (
	"fmt"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// --- HTTP ---
	Port        int    `envconfig:"PORT" default:"8080"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppLogJSON  bool   `envconfig:"APP_LOG_JSON" default:"false"`

	// --- Database ---
	DBHost     string `envconfig:"BLUEPRINT_DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"BLUEPRINT_DB_PORT" default:"5432"`
	DBUser     string `envconfig:"BLUEPRINT_DB_USERNAME" default:"postgres"`
	DBPassword string `envconfig:"BLUEPRINT_DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"BLUEPRINT_DB_DATABASE" default:"crashdb"`
	DBSchema   string `envconfig:"BLUEPRINT_DB_SCHEMA" default:"public"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`

	// --- Redis ---
	RedisAddr     string `envconfig:"REDIS_URL" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	GameConfig

	// --- Settlement ---
	SettlementWorkers   int           `envconfig:"SETTLEMENT_WORKERS" default:"4"`
	SettlementQueueSize int           `envconfig:"SETTLEMENT_QUEUE_SIZE" default:"1024"`
	SettlementTimeout   time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"3s"`
	SettlementMaxRetry  time.Duration `envconfig:"SETTLEMENT_MAX_RETRY" default:"30s"`
	ReconcileSchedule   string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 1m"`
}

// GameConfig holds the round timing and payout parameters.
type GameConfig struct {
	TickInterval      time.Duration `envconfig:"TICK_INTERVAL" default:"100ms"`
	WaitingDuration   time.Duration `envconfig:"WAITING_DURATION" default:"5s"`
	CountdownDuration time.Duration `envconfig:"COUNTDOWN_DURATION" default:"3s"`
	CrashedDelay      time.Duration `envconfig:"CRASHED_DELAY" default:"2s"`
	LateBetWindow     time.Duration `envconfig:"LATE_BET_WINDOW" default:"2s"`

	Increment     float64 `envconfig:"MULTIPLIER_INCREMENT" default:"0.01"`
	HouseEdge     float64 `envconfig:"HOUSE_EDGE" default:"0.01"`
	MaxMultiplier float64 `envconfig:"MAX_MULTIPLIER" default:"1000000"`
	MinBet        float64 `envconfig:"MIN_BET_AMOUNT" default:"1"`
	MaxBet        float64 `envconfig:"MAX_BET_AMOUNT" default:"10000"`

	SyntheticWagers int `envconfig:"SYNTHETIC_WAGERS" default:"6"`
}

// Default returns the configuration with every default applied and no
// environment overrides.
func Default() GameConfig {
	return GameConfig{
		TickInterval:      100 * time.Millisecond,
		WaitingDuration:   5 * time.Second,
		CountdownDuration: 3 * time.Second,
		CrashedDelay:      2 * time.Second,
		LateBetWindow:     2 * time.Second,
		Increment:         0.01,
		HouseEdge:         0.01,
		MaxMultiplier:     1000000,
		MinBet:            1,
		MaxBet:            10000,
		SyntheticWagers:   6,
	}
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSchema)
}

func (g GameConfig) Validate() error {
	if g.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be > 0")
	}
	if g.Increment <= 0 {
		return fmt.Errorf("MULTIPLIER_INCREMENT must be > 0")
	}
	if g.HouseEdge < 0 || g.HouseEdge >= 1 {
		return fmt.Errorf("HOUSE_EDGE must be in [0, 1)")
	}
	if g.MaxMultiplier < 1 {
		return fmt.Errorf("MAX_MULTIPLIER must be >= 1")
	}
	if g.MinBet <= 0 || g.MaxBet < g.MinBet {
		return fmt.Errorf("invalid MIN_BET_AMOUNT/MAX_BET_AMOUNT")
	}
	if g.LateBetWindow < 0 || g.SyntheticWagers < 0 {
		return fmt.Errorf("LATE_BET_WINDOW and SYNTHETIC_WAGERS must not be negative")
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.GameConfig.Validate(); err != nil {
		return err
	}
	if c.SettlementWorkers <= 0 || c.SettlementQueueSize <= 0 {
		return fmt.Errorf("SETTLEMENT_WORKERS and SETTLEMENT_QUEUE_SIZE must be > 0")
	}
	return nil
}

// Load reads environment variables into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

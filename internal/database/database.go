package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
)

// Service wraps the Postgres pool shared by the wallet and the ledger.
type Service interface {
	Pool() *pgxpool.Pool
	// Health returns a map of health status information.
	Health() map[string]string
	Close() error
}

type service struct {
	pool *pgxpool.Pool
	name string
}

func New(ctx context.Context, cfg *config.Config) (Service, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.WithFields(log.Fields{
		"host":     cfg.DBHost,
		"database": cfg.DBName,
	}).Info("[DB] Connected to PostgreSQL")
	return &service{pool: pool, name: cfg.DBName}, nil
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.WithError(err).Error("[DB] Health check failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)

	// Evaluate stats to provide a health message
	if poolStats.TotalConns() > 0 && poolStats.AcquiredConns() == poolStats.MaxConns() {
		stats["message"] = "The database pool is exhausted, indicating potential contention."
	}
	if poolStats.EmptyAcquireCount() > 1000 {
		stats["message"] = "Many acquires had to wait for a connection, consider raising DB_MAX_CONNS."
	}

	return stats
}

// Close closes the pool.
func (s *service) Close() error {
	log.WithField("database", s.name).Info("[DB] Disconnected from database")
	s.pool.Close()
	return nil
}

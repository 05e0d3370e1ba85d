package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
	"github.com/Solutionsguy/jet2-sub000/internal/game"
)

const (
	roundKeyPrefix = "crash:round:"
	deferredKey    = "crash:credits:deferred"
	roundTTL       = 7 * 24 * time.Hour
)

// ErrRoundNotFound is returned when a round is not (or no longer) archived.
var ErrRoundNotFound = errors.New("round not found")

type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error

	SaveRound(ctx context.Context, rec game.RoundRecord) error
	GetRound(ctx context.Context, roundID string) (game.RoundRecord, error)
	DeferCredit(ctx context.Context, c game.Credit) error
	PopDeferred(ctx context.Context, limit int) ([]game.Credit, error)
}

type service struct {
	client *redis.Client
}

// New connects to Redis. It returns an error when the server cannot be
// reached so the caller can decide to run without it.
func New(cfg *config.Config) (Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	log.WithField("addr", cfg.RedisAddr).Info("[CACHE] Redis connected successfully")
	return &service{client: client}, nil
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	if n, err := s.client.LLen(ctx, deferredKey).Result(); err == nil {
		stats["deferred_credits"] = strconv.FormatInt(n, 10)
	}

	return stats
}

func (s *service) Close() error {
	log.Info("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

func roundKey(roundID string) string {
	return roundKeyPrefix + roundID
}

// SaveRound archives a finished round so its draw can be verified later.
func (s *service) SaveRound(ctx context.Context, rec game.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal round %s: %w", rec.RoundID, err)
	}
	return s.client.Set(ctx, roundKey(rec.RoundID), data, roundTTL).Err()
}

func (s *service) GetRound(ctx context.Context, roundID string) (game.RoundRecord, error) {
	var rec game.RoundRecord
	data, err := s.client.Get(ctx, roundKey(roundID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, ErrRoundNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode round %s: %w", roundID, err)
	}
	return rec, nil
}

// DeferCredit parks a credit at the tail of the deferred list.
func (s *service) DeferCredit(ctx context.Context, c game.Credit) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, deferredKey, data).Err()
}

// PopDeferred removes up to limit credits from the head of the list.
// Entries that cannot be decoded are logged and dropped.
func (s *service) PopDeferred(ctx context.Context, limit int) ([]game.Credit, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LPopCount(ctx, deferredKey, limit).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	credits := make([]game.Credit, 0, len(raw))
	for _, item := range raw {
		var c game.Credit
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			log.WithError(err).WithField("raw", item).Error("[CACHE] Dropping undecodable deferred credit")
			continue
		}
		credits = append(credits, c)
	}
	return credits, nil
}

package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
	"github.com/Solutionsguy/jet2-sub000/internal/game"
)

// GameService is the round API the handlers call. *game.Manager implements it.
type GameService interface {
	PlaceBet(ctx context.Context, req game.PlaceRequest) (game.PlaceResult, error)
	Cancel(ctx context.Context, ownerID, wagerID string) (game.Wager, error)
	CancelAll(ctx context.Context, ownerID string) ([]game.Wager, error)
	CashOut(ctx context.Context, ownerID, wagerID string) (game.CashoutResult, error)
	RecordIntent(ctx context.Context, req game.IntentRequest) error
	Sync(ctx context.Context) (game.Snapshot, error)
}

// RoundStore looks up archived rounds for verification.
type RoundStore interface {
	GetRound(ctx context.Context, roundID string) (game.RoundRecord, error)
}

type Wallets interface {
	Balance(ctx context.Context, ownerID string) (float64, error)
	Deposit(ctx context.Context, ownerID string, amount float64) (float64, error)
}

type HealthChecker interface {
	Health() map[string]string
}

type Deps struct {
	Game    GameService
	Hub     *game.Hub
	Rounds  RoundStore
	Wallets Wallets
	// Health is keyed by component name, e.g. "database".
	Health map[string]HealthChecker
}

type FiberServer struct {
	*fiber.App

	cfg     config.GameConfig
	game    GameService
	hub     *game.Hub
	rounds  RoundStore
	wallets Wallets
	health  map[string]HealthChecker
}

func New(cfg config.GameConfig, deps Deps) *FiberServer {
	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crash",
			AppName:       "crash",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		cfg:     cfg,
		game:    deps.Game,
		hub:     deps.Hub,
		rounds:  deps.Rounds,
		wallets: deps.Wallets,
		health:  deps.Health,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			// The socket upgrade and health checks are not rate limited.
			return c.Path() == "/ws" || c.Path() == "/health"
		},
	}))
	server.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	server.RegisterFiberRoutes()
	return server
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *FiberServer) Shutdown(timeout time.Duration) error {
	log.Info("[SERVER] Shutting down...")
	return s.App.ShutdownWithTimeout(timeout)
}

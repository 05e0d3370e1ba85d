package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Solutionsguy/jet2-sub000/internal/cache"
	"github.com/Solutionsguy/jet2-sub000/internal/game"
	"github.com/Solutionsguy/jet2-sub000/internal/ledger"
)

const REQUEST_TIMEOUT = 5 * time.Second

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	api.Get("/game/state", s.getGameStateHandler)
	api.Post("/game/intent", s.intentHandler)
	api.Post("/game/bet", s.placeBetHandler)
	api.Post("/game/cancel", s.cancelHandler)
	api.Post("/game/cashout", s.cashoutHandler)

	api.Get("/rounds/:roundId", s.getRoundHandler)

	api.Get("/wallet/:ownerId", s.getBalanceHandler)
	api.Post("/wallet/:ownerId/deposit", s.depositHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidStake),
		errors.Is(err, game.ErrInvalidAutoCashout),
		errors.Is(err, game.ErrMissingWagerID),
		errors.Is(err, game.ErrInsufficientFunds):
		return fiber.StatusBadRequest
	case errors.Is(err, game.ErrNotOwner):
		return fiber.StatusForbidden
	case errors.Is(err, game.ErrWagerNotFound),
		errors.Is(err, cache.ErrRoundNotFound),
		errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrDuplicateWager),
		errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrNotActive):
		return fiber.StatusConflict
	case errors.Is(err, game.ErrQueueFull),
		errors.Is(err, game.ErrTimeout),
		errors.Is(err, game.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func unavailable(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), REQUEST_TIMEOUT)
}

package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Solutionsguy/jet2-sub000/internal/game"
)

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{}
	for name, checker := range s.health {
		if checker != nil {
			health[name] = checker.Health()
		}
	}
	clients := 0
	if s.hub != nil {
		clients = s.hub.GetClientCount()
	}
	health["game"] = fiber.Map{
		"status":            "running",
		"connected_clients": clients,
	}
	return c.JSON(health)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	snap, err := s.game.Sync(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(snap)
}

func (s *FiberServer) intentHandler(c *fiber.Ctx) error {
	var req game.IntentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerID == "" {
		return badRequest(c, "owner_id is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.game.RecordIntent(ctx, req); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var req game.PlaceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerID == "" {
		return badRequest(c, "owner_id is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := s.game.PlaceBet(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	if res.Ignored {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": false,
			"ignored": true,
			"message": "betting window closed, stake refunded",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"wager":   res.Wager,
		"balance": res.Balance,
	})
}

// cancelHandler withdraws one wager, or all of the owner's wagers when no
// wager_id is given.
func (s *FiberServer) cancelHandler(c *fiber.Ctx) error {
	var req game.CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerID == "" {
		return badRequest(c, "owner_id is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if req.WagerID == "" {
		wagers, err := s.game.CancelAll(ctx, req.OwnerID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "cancelled": wagers})
	}

	w, err := s.game.Cancel(ctx, req.OwnerID, req.WagerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "cancelled": []game.Wager{w}})
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerID == "" || req.WagerID == "" {
		return badRequest(c, "owner_id and wager_id are required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := s.game.CashOut(ctx, req.OwnerID, req.WagerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"wager_id":   res.WagerID,
		"multiplier": res.Multiplier,
		"payout":     res.Payout,
	})
}

// getRoundHandler returns an archived round with its revealed seed and
// whether the seed reproduces the published crash point.
func (s *FiberServer) getRoundHandler(c *fiber.Ctx) error {
	if s.rounds == nil {
		return unavailable(c, "round archive unavailable")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	rec, err := s.rounds.GetRound(ctx, c.Params("roundId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"round":    rec,
		"verified": game.VerifyRound(rec, s.cfg.HouseEdge, s.cfg.MaxMultiplier),
	})
}

func (s *FiberServer) getBalanceHandler(c *fiber.Ctx) error {
	if s.wallets == nil {
		return unavailable(c, "wallets unavailable")
	}
	ownerID := c.Params("ownerId")

	ctx, cancel := requestContext(c)
	defer cancel()

	balance, err := s.wallets.Balance(ctx, ownerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"owner_id": ownerID,
		"balance":  balance,
	})
}

// depositHandler tops up a wallet (for testing/admin).
func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	if s.wallets == nil {
		return unavailable(c, "wallets unavailable")
	}
	ownerID := c.Params("ownerId")

	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	balance, err := s.wallets.Deposit(ctx, ownerID, body.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"owner_id": ownerID,
		"balance":  balance,
	})
}

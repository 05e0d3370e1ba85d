package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/game"
)

// clientMessage is everything a socket client can send. Which fields are
// read depends on Type.
type clientMessage struct {
	Type             string  `json:"type"`
	WagerID          string  `json:"wager_id,omitempty"`
	Stake            float64 `json:"stake,omitempty"`
	AutoCashout      float64 `json:"auto_cashout,omitempty"`
	AvailableBalance float64 `json:"available_balance,omitempty"`
	DisplayName      string  `json:"display_name,omitempty"`
	AvatarRef        string  `json:"avatar_ref,omitempty"`
	SectionID        string  `json:"section_id,omitempty"`
}

// wsReply answers one client message on that client's socket only.
type wsReply struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id", "anonymous")
	entry := log.WithField("user_id", userID)
	entry.Debug("[WS] New connection")

	client := s.hub.RegisterClient(conn, userID)
	defer s.hub.UnregisterClient(client)

	if snap, err := s.game.Sync(context.Background()); err == nil {
		client.Send(game.Wrap(snap))
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			entry.WithError(err).Debug("[WS] Read error")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if out := s.handleClientMessage(userID, message); out != nil {
			client.Send(out)
		}
	}
}

// handleClientMessage runs one client request and returns what to send back.
func (s *FiberServer) handleClientMessage(userID string, raw []byte) interface{} {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return wsReply{Type: "error", Message: "invalid message"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), REQUEST_TIMEOUT)
	defer cancel()

	switch msg.Type {
	case "intent":
		err := s.game.RecordIntent(ctx, game.IntentRequest{
			OwnerID:          userID,
			Stake:            msg.Stake,
			AvailableBalance: msg.AvailableBalance,
		})
		return result("intent_result", nil, err)

	case "place_bet":
		res, err := s.game.PlaceBet(ctx, game.PlaceRequest{
			OwnerID:     userID,
			WagerID:     msg.WagerID,
			DisplayName: msg.DisplayName,
			AvatarRef:   msg.AvatarRef,
			SectionID:   msg.SectionID,
			Stake:       msg.Stake,
			AutoCashout: msg.AutoCashout,
		})
		if err == nil && res.Ignored {
			return wsReply{Type: "bet_result", Message: "betting window closed, stake refunded", Data: res}
		}
		return result("bet_result", res, err)

	case "cancel":
		if msg.WagerID == "" {
			wagers, err := s.game.CancelAll(ctx, userID)
			return result("cancel_result", wagers, err)
		}
		w, err := s.game.Cancel(ctx, userID, msg.WagerID)
		return result("cancel_result", []game.Wager{w}, err)

	case "cashout":
		res, err := s.game.CashOut(ctx, userID, msg.WagerID)
		return result("cashout_result", res, err)

	case "sync":
		snap, err := s.game.Sync(ctx)
		if err != nil {
			return result("sync", nil, err)
		}
		return game.Wrap(snap)

	case "ping":
		return map[string]string{"type": "pong"}

	default:
		return wsReply{Type: "error", Message: "unknown message type: " + msg.Type}
	}
}

func result(kind string, data interface{}, err error) wsReply {
	if err != nil {
		return wsReply{Type: kind, Message: err.Error()}
	}
	return wsReply{Type: kind, Success: true, Data: data}
}

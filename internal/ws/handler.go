package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/types"
)

var errUnknownType = errors.New("unknown type")

type Options struct {
	// DefaultBet is used when a drop arrives without a bet.
	DefaultBet     int
	OriginPatterns []string
	Logger         *zap.Logger
}

// Handler streams lobby snapshots to the client and feeds its input back
// into the lobby.
func Handler(lb *lobby.Lobby, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Snapshot, 8)
		clientID := uuid.NewString()
		log := log.With(zap.String("client", clientID))

		select {
		case lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}:
		case <-lb.Done():
			conn.Close(websocket.StatusGoingAway, "match closed")
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-lb.Done():
			}
		}()
		log.Debug("client joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				write(writeCtx, conn, types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.State})
			}
			// Dropped as a slow client, or the lobby stopped.
			conn.Close(websocket.StatusTryAgainLater, "snapshot stream ended")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			build, err := toLobbyMsg(cm, opts.DefaultBet)
			if err == nil {
				err = lb.Ask(r.Context(), build)
			}
			if err != nil {
				write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: err.Error()})
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

// toLobbyMsg validates client input and returns a builder for Lobby.Ask.
func toLobbyMsg(m types.ClientMessage, defaultBet int) (func(chan error) lobby.Msg, error) {
	switch m.Type {
	case "drop":
		bet := m.Bet
		if bet == 0 {
			bet = defaultBet
		}
		return func(r chan error) lobby.Msg { return lobby.Drop{Bet: bet, Reply: r} }, nil
	case "boost":
		b, err := engine.ParseBoost(m.Direction)
		if err != nil {
			return nil, err
		}
		return func(r chan error) lobby.Msg { return lobby.BoostInput{Boost: b, Reply: r} }, nil
	case "reset":
		return func(r chan error) lobby.Msg { return lobby.ResetInput{Reply: r} }, nil
	case "setBalance":
		team, err := engine.ParseTeam(m.Team)
		if err != nil {
			return nil, err
		}
		return func(r chan error) lobby.Msg { return lobby.SetBalance{Team: team, Amount: m.Amount, Reply: r} }, nil
	case "team":
		team, err := engine.ParseTeam(m.Team)
		if err != nil {
			return nil, err
		}
		return func(r chan error) lobby.Msg { return lobby.SelectTeam{Team: team, Reply: r} }, nil
	default:
		return nil, errUnknownType
	}
}

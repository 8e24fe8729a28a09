package types

import "github.com/DoyleJ11/plinko-sync/internal/lobby"

// ClientMessage is input from a WebSocket client.
type ClientMessage struct {
	Type      string `json:"type"` // "drop" | "boost" | "reset" | "setBalance" | "team"
	Bet       int    `json:"bet,omitempty"`
	Direction string `json:"direction,omitempty"`
	Team      string `json:"team,omitempty"`
	Amount    int    `json:"amount,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	State   *lobby.State `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Version    int         `json:"version"`
	NumClients int         `json:"clients"`
	State      lobby.State `json:"state"`
}

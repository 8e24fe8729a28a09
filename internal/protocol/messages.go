// Package protocol defines the messages two peers exchange over the game
// channel and their JSON encoding. Every message is a single object with a
// "type" field; ballDrop, boost and gameState carry their payload under
// "data", teamSelection carries its teams inline.
package protocol

import "github.com/DoyleJ11/plinko-sync/internal/engine"

type Type string

const (
	TypeTeamSelection Type = "teamSelection"
	TypeBallDrop      Type = "ballDrop"
	TypeBoost         Type = "boost"
	TypeGameState     Type = "gameState"
	TypeReset         Type = "reset"
	TypeDisconnect    Type = "disconnect"
)

// Message is one of the types below; the set is closed.
type Message interface {
	Kind() Type
	isMatchMessage()
}

// TeamSelection is sent once by the host after it picks a side.
type TeamSelection struct {
	HostTeam engine.Team
	JoinTeam engine.Team
}

// BallDrop starts a round on the joiner with the host's ball ids.
type BallDrop struct {
	Bet        int
	RedBallID  string
	BlueBallID string
	// Timestamp is informational, milliseconds since the epoch.
	Timestamp int64
}

type Boost struct {
	Boost  engine.Boost
	BallID string
}

// GameState is a full overwrite of the host's balances.
type GameState struct {
	Balances engine.Balances
}

type Reset struct{}

type Disconnect struct{}

func (TeamSelection) Kind() Type { return TypeTeamSelection }
func (BallDrop) Kind() Type      { return TypeBallDrop }
func (Boost) Kind() Type         { return TypeBoost }
func (GameState) Kind() Type     { return TypeGameState }
func (Reset) Kind() Type         { return TypeReset }
func (Disconnect) Kind() Type    { return TypeDisconnect }

func (TeamSelection) isMatchMessage() {}
func (BallDrop) isMatchMessage()      {}
func (Boost) isMatchMessage()         {}
func (GameState) isMatchMessage()     {}
func (Reset) isMatchMessage()         {}
func (Disconnect) isMatchMessage()    {}

// Round converts a drop into the engine's round description.
func (m BallDrop) Round() engine.Round {
	return engine.Round{Bet: m.Bet, RedBallID: m.RedBallID, BlueBallID: m.BlueBallID}
}

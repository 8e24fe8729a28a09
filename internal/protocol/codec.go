package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
)

var ErrMalformed = errors.New("malformed message")
var ErrUnknownType = errors.New("unknown message type")

type envelope struct {
	Type     Type            `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	HostTeam string          `json:"hostTeam,omitempty"`
	JoinTeam string          `json:"joinTeam,omitempty"`
}

// Payloads use pointers so a missing field can be told apart from a zero.
type ballDropData struct {
	Bet        *int    `json:"bet"`
	RedBallID  *string `json:"redBallId"`
	BlueBallID *string `json:"blueBallId"`
	Timestamp  int64   `json:"timestamp"`
}

type boostData struct {
	Direction *string `json:"direction"`
	BallID    *string `json:"ballId"`
	Team      *string `json:"team"`
}

type gameStateData struct {
	RedBalance  *int `json:"redBalance"`
	BlueBalance *int `json:"blueBalance"`
	Pot         *int `json:"pot"`
	HouseTotal  *int `json:"houseTotal"`
}

func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind()}

	var data any
	switch m := m.(type) {
	case TeamSelection:
		env.HostTeam = string(m.HostTeam)
		env.JoinTeam = string(m.JoinTeam)
	case BallDrop:
		data = ballDropData{Bet: &m.Bet, RedBallID: &m.RedBallID, BlueBallID: &m.BlueBallID, Timestamp: m.Timestamp}
	case Boost:
		dir := m.Boost.String()
		team := string(m.Boost.Team)
		data = boostData{Direction: &dir, BallID: &m.BallID, Team: &team}
	case GameState:
		b := m.Balances
		data = gameStateData{RedBalance: &b.Red, BlueBalance: &b.Blue, Pot: &b.Pot, HouseTotal: &b.House}
	case Reset, Disconnect:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses one inbound message. Errors wrap ErrMalformed or
// ErrUnknownType; the caller is expected to drop the message.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeTeamSelection:
		host, err := engine.ParseTeam(env.HostTeam)
		if err != nil {
			return nil, malformed(env.Type, err.Error())
		}
		join, err := engine.ParseTeam(env.JoinTeam)
		if err != nil {
			return nil, malformed(env.Type, err.Error())
		}
		if join != host.Opponent() {
			return nil, malformed(env.Type, "teams are not complementary")
		}
		return TeamSelection{HostTeam: host, JoinTeam: join}, nil

	case TypeBallDrop:
		var d ballDropData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		if d.Bet == nil || d.RedBallID == nil || d.BlueBallID == nil {
			return nil, malformed(env.Type, "missing field")
		}
		if *d.Bet < 1 || *d.RedBallID == "" || *d.BlueBallID == "" {
			return nil, malformed(env.Type, "invalid field")
		}
		return BallDrop{Bet: *d.Bet, RedBallID: *d.RedBallID, BlueBallID: *d.BlueBallID, Timestamp: d.Timestamp}, nil

	case TypeBoost:
		var d boostData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		if d.Direction == nil || d.BallID == nil || d.Team == nil || *d.BallID == "" {
			return nil, malformed(env.Type, "missing field")
		}
		b, err := engine.ParseBoost(*d.Direction)
		if err != nil {
			return nil, malformed(env.Type, err.Error())
		}
		if string(b.Team) != *d.Team {
			return nil, malformed(env.Type, "direction does not match team")
		}
		return Boost{Boost: b, BallID: *d.BallID}, nil

	case TypeGameState:
		var d gameStateData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		if d.RedBalance == nil || d.BlueBalance == nil || d.Pot == nil || d.HouseTotal == nil {
			return nil, malformed(env.Type, "missing field")
		}
		return GameState{Balances: engine.Balances{
			Red:   *d.RedBalance,
			Blue:  *d.BlueBalance,
			Pot:   *d.Pot,
			House: *d.HouseTotal,
		}}, nil

	case TypeReset:
		return Reset{}, nil

	case TypeDisconnect:
		return Disconnect{}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func unmarshalData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return malformed(env.Type, "missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return malformed(env.Type, err.Error())
	}
	return nil
}

func malformed(t Type, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, t, reason)
}

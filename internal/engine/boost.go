package engine

import (
	"errors"
	"fmt"
)

var ErrUnknownDirection = errors.New("unknown boost direction")

type Direction string

const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
	DirUp    Direction = "up"
	DirDown  Direction = "down"
)

// Boost is a one-shot impulse request for a team's ball. On the wire it is
// encoded as "<r|b>_<direction>", e.g. "r_left".
type Boost struct {
	Team      Team
	Direction Direction
}

func ParseBoost(code string) (Boost, error) {
	var b Boost
	if len(code) < 3 || code[1] != '_' {
		return b, fmt.Errorf("%w: %q", ErrUnknownDirection, code)
	}

	switch code[0] {
	case 'r':
		b.Team = TeamRed
	case 'b':
		b.Team = TeamBlue
	default:
		return b, fmt.Errorf("%w: %q", ErrUnknownDirection, code)
	}

	switch d := Direction(code[2:]); d {
	case DirLeft, DirRight, DirUp, DirDown:
		b.Direction = d
	default:
		return Boost{}, fmt.Errorf("%w: %q", ErrUnknownDirection, code)
	}
	return b, nil
}

func (b Boost) String() string {
	if b.Team == TeamNone {
		return string(b.Direction)
	}
	return string(b.Team[0]) + "_" + string(b.Direction)
}

func (b Boost) impulse() (dvx, dvy float64) {
	switch b.Direction {
	case DirLeft:
		return -BoostForce, 0
	case DirRight:
		return BoostForce, 0
	case DirUp:
		return 0, -BoostForce
	case DirDown:
		return 0, BoostForce
	}
	return 0, 0
}

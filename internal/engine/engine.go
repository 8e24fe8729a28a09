package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidBet = errors.New("bet must be at least 1")
var ErrInvalidAmount = errors.New("balance cannot be negative")
var ErrRoundActive = errors.New("round already in progress")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrNoBoostableBall = errors.New("no boostable ball in the boost zone")
var ErrUnknownBall = errors.New("unknown or landed ball")
var ErrBoostUsed = errors.New("ball already boosted")
var ErrUnknownTeam = errors.New("unknown team")
var ErrWrongTeam = errors.New("boost team does not own that ball")

type Team string

const (
	TeamNone Team = ""
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamNone
	}
}

func ParseTeam(s string) (Team, error) {
	switch Team(s) {
	case TeamRed, TeamBlue:
		return Team(s), nil
	default:
		return TeamNone, fmt.Errorf("%w: %q", ErrUnknownTeam, s)
	}
}

const (
	// FrameTime is one fixed physics step (60 Hz).
	FrameTime     = time.Second / 60
	maxFrameDelta = 100 * time.Millisecond
)

// Round is one pair of balls, one per team, dropped with the same bet.
type Round struct {
	Bet        int    `json:"bet"`
	RedBallID  string `json:"redBallId"`
	BlueBallID string `json:"blueBallId"`
}

type Landing struct {
	Ball      Ball
	SlotIndex int
	// Settled is false on mirror engines, which leave payouts to the
	// authoritative side.
	Settled  bool
	Event    Event
	Balances Balances
}

type Options struct {
	// Authoritative engines own the balances: they deduct bets and pay out
	// landings. Mirrors only move balls and wait for balance syncs.
	Authoritative bool
	Rand          *rand.Rand
	NewID         func(Team) string
}

type Engine struct {
	authoritative bool
	rng           *rand.Rand
	newID         func(Team) string

	balances Balances
	balls    []*Ball
	round    Round
	acc      time.Duration
}

func New(opts Options) *Engine {
	e := &Engine{
		authoritative: opts.Authoritative,
		rng:           opts.Rand,
		newID:         opts.NewID,
		balances:      InitialBalances(),
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.newID == nil {
		e.newID = func(t Team) string { return string(t) + "-" + uuid.NewString() }
	}
	return e
}

func (e *Engine) Authoritative() bool     { return e.authoritative }
func (e *Engine) SetAuthoritative(a bool) { e.authoritative = a }
func (e *Engine) Balances() Balances      { return e.balances }
func (e *Engine) Round() Round            { return e.round }
func (e *Engine) RoundActive() bool       { return len(e.balls) > 0 }

// SetBalances overwrites every balance field at once.
func (e *Engine) SetBalances(b Balances) { e.balances = b }

// SetBalance is the house override for a single team.
func (e *Engine) SetBalance(team Team, amount int) error {
	if team != TeamRed && team != TeamBlue {
		return ErrUnknownTeam
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	e.balances.set(team, amount)
	return nil
}

// Balls returns copies of the balls still in flight, in spawn order.
func (e *Engine) Balls() []Ball {
	out := make([]Ball, 0, len(e.balls))
	for _, b := range e.balls {
		out = append(out, *b)
	}
	return out
}

func (e *Engine) CanDrop(bet int) error {
	if bet < 1 {
		return ErrInvalidBet
	}
	if e.RoundActive() {
		return ErrRoundActive
	}
	for _, t := range []Team{TeamRed, TeamBlue} {
		if e.balances.Of(t) < bet {
			return fmt.Errorf("%w: %s team ran out of money", ErrInsufficientFunds, t)
		}
	}
	return nil
}

// Drop starts a round: both teams pay the bet and one ball each is spawned
// with freshly minted ids.
func (e *Engine) Drop(bet int) (Round, error) {
	if err := e.CanDrop(bet); err != nil {
		return Round{}, err
	}
	e.balances.Red -= bet
	e.balances.Blue -= bet

	r := Round{Bet: bet, RedBallID: e.newID(TeamRed), BlueBallID: e.newID(TeamBlue)}
	e.spawn(r)
	return r, nil
}

// Spawn mirrors a round started elsewhere, reusing its ball ids. Balances
// are left alone.
func (e *Engine) Spawn(r Round) error {
	if r.Bet < 1 {
		return ErrInvalidBet
	}
	if r.RedBallID == "" || r.BlueBallID == "" {
		return ErrUnknownBall
	}
	if e.RoundActive() {
		return ErrRoundActive
	}
	e.spawn(r)
	return nil
}

func (e *Engine) spawn(r Round) {
	e.round = r
	e.acc = 0
	e.balls = []*Ball{
		e.newBall(r.RedBallID, TeamRed, BoardWidth/2-spawnGap),
		e.newBall(r.BlueBallID, TeamBlue, BoardWidth/2+spawnGap),
	}
}

func (e *Engine) newBall(id string, team Team, x float64) *Ball {
	return &Ball{
		ID:     id,
		Team:   team,
		X:      x,
		Y:      spawnY,
		VX:     (e.rng.Float64() - 0.5) * 2,
		Active: true,
	}
}

// Boost applies a local boost to the first eligible ball of b.Team and
// returns its id.
func (e *Engine) Boost(b Boost) (string, error) {
	for _, ball := range e.balls {
		if !ball.Active || ball.Boosted || ball.Team != b.Team || !ball.inBoostBand() {
			continue
		}
		e.kick(ball, b)
		return ball.ID, nil
	}
	return "", ErrNoBoostableBall
}

// ApplyBoost applies a boost that was already accepted by the peer. The
// boost must name the ball's own team. A ball gets at most one boost;
// repeats return ErrBoostUsed and change nothing.
func (e *Engine) ApplyBoost(ballID string, b Boost) error {
	ball := e.find(ballID)
	if ball == nil || !ball.Active {
		return ErrUnknownBall
	}
	if ball.Team != b.Team {
		return ErrWrongTeam
	}
	if ball.Boosted {
		return ErrBoostUsed
	}
	e.kick(ball, b)
	return nil
}

func (e *Engine) kick(ball *Ball, b Boost) {
	dvx, dvy := b.impulse()
	ball.VX += dvx
	ball.VY += dvy
	ball.Boosted = true
}

// Advance runs as many fixed steps as dt covers. Leftover time carries to
// the next call; a single call never simulates more than 100ms.
func (e *Engine) Advance(dt time.Duration) []Landing {
	if !e.RoundActive() {
		e.acc = 0
		return nil
	}
	e.acc += min(dt, maxFrameDelta)

	var out []Landing
	for e.acc >= FrameTime && e.RoundActive() {
		out = append(out, e.Step()...)
		e.acc -= FrameTime
	}
	return out
}

// Step runs one fixed frame for every ball in flight.
func (e *Engine) Step() []Landing {
	var out []Landing
	for _, b := range slices.Clone(e.balls) {
		if b.step() {
			out = append(out, e.land(b, SlotIndexAt(b.X)))
		}
	}
	return out
}

// Land settles a ball into a specific slot without simulating the fall.
func (e *Engine) Land(ballID string, slotIndex int) (Landing, error) {
	ball := e.find(ballID)
	if ball == nil || !ball.Active {
		return Landing{}, ErrUnknownBall
	}
	if slotIndex < 0 || slotIndex >= len(Slots) {
		return Landing{}, fmt.Errorf("slot %d out of range", slotIndex)
	}
	return e.land(ball, slotIndex), nil
}

func (e *Engine) land(ball *Ball, slotIndex int) Landing {
	ball.Active = false
	e.balls = slices.DeleteFunc(e.balls, func(b *Ball) bool { return b == ball })

	l := Landing{Ball: *ball, SlotIndex: slotIndex}
	if e.authoritative {
		evt, next := Settle(e.balances, Slots[slotIndex], ball.Team, e.round.Bet)
		evt.SlotIndex = slotIndex
		e.balances = next
		l.Settled = true
		l.Event = evt
	}
	l.Balances = e.balances
	return l
}

// Reset clears the board and restores starting balances. The house total
// survives resets.
func (e *Engine) Reset() {
	house := e.balances.House
	e.Abort()
	e.balances = InitialBalances()
	e.balances.House = house
}

// Abort drops any balls in flight without paying anything out.
func (e *Engine) Abort() {
	e.balls = nil
	e.round = Round{}
	e.acc = 0
}

func (e *Engine) find(id string) *Ball {
	for _, b := range e.balls {
		if b.ID == id {
			return b
		}
	}
	return nil
}

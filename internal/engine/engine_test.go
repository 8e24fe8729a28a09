package engine

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(authoritative bool) *Engine {
	n := 0
	return New(Options{
		Authoritative: authoritative,
		Rand:          rand.New(rand.NewPCG(1, 2)),
		NewID: func(t Team) string {
			n++
			return string(t) + "-" + string(rune('0'+n))
		},
	})
}

func TestDropValidation(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(e *Engine)
		bet     int
		wantErr error
	}{
		{name: "zero bet", bet: 0, wantErr: ErrInvalidBet},
		{name: "red broke", setup: func(e *Engine) { e.SetBalances(Balances{Red: 50, Blue: 500}) }, bet: 100, wantErr: ErrInsufficientFunds},
		{name: "blue broke", setup: func(e *Engine) { e.SetBalances(Balances{Red: 500, Blue: 99}) }, bet: 100, wantErr: ErrInsufficientFunds},
		{name: "round active", setup: func(e *Engine) { _, _ = e.Drop(10) }, bet: 10, wantErr: ErrRoundActive},
		{name: "all in", bet: 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(true)
			if tc.setup != nil {
				tc.setup(e)
			}
			before := e.Balances()
			_, err := e.Drop(tc.bet)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				assert.Equal(t, before, e.Balances())
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDropDeductsAndSpawnsBothBalls(t *testing.T) {
	e := newTestEngine(true)

	r, err := e.Drop(100)
	require.NoError(t, err)

	assert.Equal(t, 400, e.Balances().Red)
	assert.Equal(t, 400, e.Balances().Blue)
	assert.NotEqual(t, r.RedBallID, r.BlueBallID)

	balls := e.Balls()
	require.Len(t, balls, 2)
	assert.Equal(t, TeamRed, balls[0].Team)
	assert.Equal(t, r.RedBallID, balls[0].ID)
	assert.Equal(t, 280.0, balls[0].X)
	assert.Equal(t, TeamBlue, balls[1].Team)
	assert.Equal(t, 320.0, balls[1].X)
}

func TestSpawnMirrorsWithoutTouchingBalances(t *testing.T) {
	e := newTestEngine(false)

	err := e.Spawn(Round{Bet: 100, RedBallID: "r1", BlueBallID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, InitialBalances(), e.Balances())
	assert.True(t, e.RoundActive())

	err = e.Spawn(Round{Bet: 100, RedBallID: "r2", BlueBallID: "b2"})
	assert.ErrorIs(t, err, ErrRoundActive)
	assert.Equal(t, "r1", e.Balls()[0].ID)
}

func TestBoostOnlyInsideBand(t *testing.T) {
	e := newTestEngine(true)
	_, err := e.Drop(10)
	require.NoError(t, err)

	// Balls spawn above the band.
	_, err = e.Boost(Boost{Team: TeamRed, Direction: DirLeft})
	require.ErrorIs(t, err, ErrNoBoostableBall)

	e.balls[0].Y = 200
	vx := e.balls[0].VX
	id, err := e.Boost(Boost{Team: TeamRed, Direction: DirLeft})
	require.NoError(t, err)
	assert.Equal(t, e.balls[0].ID, id)
	assert.InDelta(t, vx-BoostForce, e.balls[0].VX, 1e-9)

	_, err = e.Boost(Boost{Team: TeamRed, Direction: DirLeft})
	assert.ErrorIs(t, err, ErrNoBoostableBall)
}

func TestApplyBoostIsIdempotent(t *testing.T) {
	e := newTestEngine(false)
	require.NoError(t, e.Spawn(Round{Bet: 10, RedBallID: "r1", BlueBallID: "b1"}))

	before := e.Balls()[1]
	require.NoError(t, e.ApplyBoost("b1", Boost{Team: TeamBlue, Direction: DirUp}))
	once := e.Balls()[1]
	assert.InDelta(t, before.VY-BoostForce, once.VY, 1e-9)

	err := e.ApplyBoost("b1", Boost{Team: TeamBlue, Direction: DirUp})
	assert.ErrorIs(t, err, ErrBoostUsed)
	assert.Equal(t, once, e.Balls()[1])

	assert.ErrorIs(t, e.ApplyBoost("nope", Boost{Team: TeamBlue, Direction: DirUp}), ErrUnknownBall)
}

func TestApplyBoostRejectsOtherTeamsBall(t *testing.T) {
	e := newTestEngine(false)
	require.NoError(t, e.Spawn(Round{Bet: 10, RedBallID: "r1", BlueBallID: "b1"}))
	before := e.Balls()

	assert.ErrorIs(t, e.ApplyBoost("b1", Boost{Team: TeamRed, Direction: DirUp}), ErrWrongTeam)
	assert.ErrorIs(t, e.ApplyBoost("r1", Boost{Team: TeamBlue, Direction: DirLeft}), ErrWrongTeam)
	assert.Equal(t, before, e.Balls())
}

func TestLandSettlesOnlyWhenAuthoritative(t *testing.T) {
	host := newTestEngine(true)
	host.SetBalances(Balances{Red: 500, Blue: 500, Pot: 80})
	r, err := host.Drop(100)
	require.NoError(t, err)

	l, err := host.Land(r.RedBallID, 0)
	require.NoError(t, err)
	assert.True(t, l.Settled)
	assert.Equal(t, EvtJackpot, l.Event.Type)
	assert.Equal(t, 580, host.Balances().Red)
	assert.Equal(t, 0, host.Balances().Pot)

	mirror := newTestEngine(false)
	require.NoError(t, mirror.Spawn(r))
	l, err = mirror.Land(r.RedBallID, 0)
	require.NoError(t, err)
	assert.False(t, l.Settled)
	assert.Equal(t, InitialBalances(), mirror.Balances())

	_, err = mirror.Land(r.RedBallID, 0)
	assert.ErrorIs(t, err, ErrUnknownBall)
}

func TestAdvanceEventuallyLandsBothBalls(t *testing.T) {
	e := newTestEngine(true)
	_, err := e.Drop(100)
	require.NoError(t, err)

	var landings []Landing
	for i := 0; i < 20000 && e.RoundActive(); i++ {
		landings = append(landings, e.Advance(FrameTime)...)
	}
	require.False(t, e.RoundActive(), "balls never came to rest")
	require.Len(t, landings, 2)

	for _, l := range landings {
		assert.True(t, l.Settled)
		assert.GreaterOrEqual(t, l.SlotIndex, 0)
		assert.Less(t, l.SlotIndex, len(Slots))
	}
}

func TestAdvanceClampsLongFrames(t *testing.T) {
	e := newTestEngine(true)
	_, err := e.Drop(10)
	require.NoError(t, err)

	y := e.Balls()[0].Y
	e.Advance(10 * time.Second)
	// At most 100ms worth of frames ran.
	assert.Less(t, e.Balls()[0].Y-y, 10.0)
}

func TestResetKeepsHouse(t *testing.T) {
	e := newTestEngine(true)
	e.SetBalances(Balances{Red: 10, Blue: 900, Pot: 60, House: 12})
	_, err := e.Drop(5)
	require.NoError(t, err)

	e.Reset()
	assert.Equal(t, Balances{Red: 500, Blue: 500, Pot: 0, House: 12}, e.Balances())
	assert.False(t, e.RoundActive())
}

func TestSetBalance(t *testing.T) {
	e := newTestEngine(true)
	require.NoError(t, e.SetBalance(TeamBlue, 1200))
	assert.Equal(t, 1200, e.Balances().Blue)
	assert.ErrorIs(t, e.SetBalance(TeamRed, -1), ErrInvalidAmount)
	assert.ErrorIs(t, e.SetBalance(TeamNone, 1), ErrUnknownTeam)
}

func TestParseBoost(t *testing.T) {
	for _, code := range []string{"r_left", "r_right", "r_up", "r_down", "b_left", "b_right", "b_up", "b_down"} {
		b, err := ParseBoost(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, b.String())
	}

	for _, bad := range []string{"", "r", "x_left", "r_sideways", "rleft", "red_left"} {
		_, err := ParseBoost(bad)
		assert.ErrorIs(t, err, ErrUnknownDirection, bad)
	}
}

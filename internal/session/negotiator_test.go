package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/protocol"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

// Channel watchers outlive some tests; keep their info logs off t.Log.
func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

type pair struct {
	host, join   *Session
	hostN, joinN *Negotiator
}

func newPair(t *testing.T) pair {
	t.Helper()
	d := transport.NewLoopbackDialer()
	p := pair{host: New(RoleHost), join: New(RoleJoiner)}
	p.hostN = NewNegotiator(p.host, d, testLogger(t))
	p.joinN = NewNegotiator(p.join, d, testLogger(t))
	return p
}

func connect(t *testing.T, p pair) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	offer, err := p.hostN.StartHosting(ctx)
	require.NoError(t, err)
	answer, err := p.joinN.AcceptOffer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, p.hostN.CompleteHandshake(ctx, answer))
	require.NoError(t, p.joinN.AwaitConnected(ctx))
}

func recvMessage(t *testing.T, ch transport.Channel) protocol.Message {
	t.Helper()
	select {
	case raw := <-ch.Incoming():
		m, err := protocol.Decode(raw)
		require.NoError(t, err)
		return m
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
		return nil
	}
}

type failingDialer struct{}

func (failingDialer) NewPeer() (transport.Peer, error) { return nil, errors.New("no ice agent") }

func TestHandshake_BothSidesConnectWithComplementaryTeams(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	offer, err := p.hostN.StartHosting(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateHosting, p.host.State())

	answer, err := p.joinN.AcceptOffer(ctx, offer)
	require.NoError(t, err)
	assert.Equal(t, StateJoining, p.join.State())

	require.NoError(t, p.hostN.CompleteHandshake(ctx, answer))
	require.NoError(t, p.joinN.AwaitConnected(ctx))
	assert.Equal(t, StateConnected, p.host.State())
	assert.Equal(t, StateConnected, p.join.State())
	assert.False(t, p.host.Ready(), "no teams yet")

	require.NoError(t, p.hostN.SelectTeam(engine.TeamBlue))
	sel, ok := recvMessage(t, p.join.Channel()).(protocol.TeamSelection)
	require.True(t, ok)
	p.join.AssignTeams(sel.JoinTeam, sel.HostTeam)

	assert.Equal(t, engine.TeamBlue, p.host.MyTeam())
	assert.Equal(t, engine.TeamRed, p.join.MyTeam())
	assert.Equal(t, p.host.MyTeam(), p.join.OpponentTeam())
	assert.Equal(t, p.join.MyTeam(), p.host.OpponentTeam())
	assert.True(t, p.host.IsMyTeam(engine.TeamBlue))
	assert.False(t, p.host.IsMyTeam(engine.TeamRed))
	assert.True(t, p.host.Ready())
	assert.True(t, p.join.Ready())

	assert.ErrorIs(t, p.hostN.SelectTeam(engine.TeamRed), ErrWrongState)
}

func TestAcceptOffer_InvalidTokenLeavesSessionIdle(t *testing.T) {
	p := newPair(t)

	_, err := p.joinN.AcceptOffer(context.Background(), "definitely not a token")
	assert.ErrorIs(t, err, ErrInvalidOffer)
	assert.Equal(t, StateIdle, p.join.State())
	assert.Nil(t, p.join.Channel())
}

func TestCompleteHandshake_Failures(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	offer, err := p.hostN.StartHosting(ctx)
	require.NoError(t, err)

	err = p.hostN.CompleteHandshake(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	assert.Equal(t, StateHosting, p.host.State())

	// Well formed, but answers nothing this host offered.
	stray, err := transport.EncodeToken(transport.Description{Type: transport.SDPAnswer, SDP: "loopback-answer-999"})
	require.NoError(t, err)
	err = p.hostN.CompleteHandshake(ctx, stray)
	assert.ErrorIs(t, err, ErrHandshake)
	assert.Equal(t, StateHosting, p.host.State())

	// The first offer is still good.
	answer, err := p.joinN.AcceptOffer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, p.hostN.CompleteHandshake(ctx, answer))
	assert.Equal(t, StateConnected, p.host.State())

	err = p.hostN.CompleteHandshake(ctx, answer)
	assert.ErrorIs(t, err, ErrHandshake)
}

func TestWrongRoleIsRejected(t *testing.T) {
	p := newPair(t)
	ctx := context.Background()

	_, err := p.joinN.StartHosting(ctx)
	assert.ErrorIs(t, err, ErrNegotiation)
	assert.ErrorIs(t, err, ErrWrongRole)

	_, err = p.hostN.AcceptOffer(ctx, "x")
	assert.ErrorIs(t, err, ErrWrongRole)

	assert.ErrorIs(t, p.joinN.SelectTeam(engine.TeamRed), ErrWrongRole)
}

func TestStartHosting_DialFailureKeepsPriorState(t *testing.T) {
	s := New(RoleHost)
	n := NewNegotiator(s, failingDialer{}, testLogger(t))

	_, err := n.StartHosting(context.Background())
	assert.ErrorIs(t, err, ErrNegotiation)
	assert.Equal(t, StateIdle, s.State())
}

func TestSelectTeamRequiresConnection(t *testing.T) {
	p := newPair(t)
	_, err := p.hostN.StartHosting(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, p.hostN.SelectTeam(engine.TeamRed), ErrWrongState)
	assert.Equal(t, engine.TeamNone, p.host.MyTeam())
}

func TestTransportLossDisconnectsBothSides(t *testing.T) {
	p := newPair(t)
	connect(t, p)
	require.NoError(t, p.hostN.SelectTeam(engine.TeamRed))

	require.NoError(t, p.join.Channel().Close())

	require.Eventually(t, func() bool {
		return p.host.State() == StateDisconnected && p.join.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, engine.TeamNone, p.host.MyTeam())
	assert.Nil(t, p.host.Channel())
	assert.ErrorIs(t, p.host.Send(protocol.Reset{}), ErrNotConnected)
	assert.NotEmpty(t, p.host.Info().Error)
}

func TestRetryAfterDisconnect(t *testing.T) {
	p := newPair(t)
	connect(t, p)

	require.NoError(t, p.host.Teardown(ErrTransportLost))
	assert.Equal(t, StateDisconnected, p.host.State())
	require.Eventually(t, func() bool { return p.join.State() == StateDisconnected }, time.Second, 5*time.Millisecond)

	connect(t, p)
	assert.Equal(t, StateConnected, p.host.State())
	assert.Equal(t, StateConnected, p.join.State())
}

func TestCancelReturnsToIdle(t *testing.T) {
	p := newPair(t)
	_, err := p.hostN.StartHosting(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.hostN.Cancel())
	assert.Equal(t, StateIdle, p.host.State())
	assert.Nil(t, p.host.Channel())
}

func TestLocalSession(t *testing.T) {
	s := New(RoleLocal)
	assert.False(t, s.IsMultiplayer())
	assert.False(t, s.IsGameHost())
	assert.True(t, s.IsMyTeam(engine.TeamRed))
	assert.True(t, s.IsMyTeam(engine.TeamBlue))
	assert.True(t, s.Ready())
	assert.ErrorIs(t, s.Send(protocol.Reset{}), ErrNotConnected)
}

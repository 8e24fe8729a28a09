package console

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/lobby"
	"github.com/DoyleJ11/plinko-sync/internal/session"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

// syncBuffer is written by the command loop and the snapshot follower at once.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	in   *io.PipeWriter
	out  *syncBuffer
	done chan error
}

func (h *harness) typeLine(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(h.in, line+"\n")
	require.NoError(t, err)
}

func (h *harness) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(h.out.String(), substr) },
		2*time.Second, 5*time.Millisecond, "output never contained %q:\n%s", substr, h.out.String())
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("console did not stop")
		return nil
	}
}

func start(t *testing.T, ctx context.Context, c *Console) *harness {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	h := &harness{in: w, out: &syncBuffer{}, done: make(chan error, 1)}
	c.In = r
	c.Out = h.out
	c.DefaultBet = 10
	c.Log = zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	go func() { h.done <- c.Run(ctx) }()
	return h
}

func newEngine(seed uint64) *engine.Engine {
	return engine.New(engine.Options{Rand: rand.New(rand.NewPCG(seed, seed+1))})
}

func TestConsole_LocalRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(session.RoleLocal)
	l := lobby.NewLobby(ctx, sess, newEngine(3), lobby.Options{})
	h := start(t, ctx, &Console{Lobby: l, Session: sess})

	h.waitFor(t, "local game")
	h.typeLine(t, "drop 20")
	h.typeLine(t, "status")
	h.waitFor(t, "red $480 | blue $480")

	h.typeLine(t, "drop")
	h.waitFor(t, engine.ErrRoundActive.Error())

	h.typeLine(t, "boost up")
	h.waitFor(t, "say which team")

	h.typeLine(t, "team red")
	h.waitFor(t, lobby.ErrNotHost.Error())

	h.typeLine(t, "quit")
	assert.NoError(t, h.wait(t))
}

func TestConsole_InputEndsBeforeHandshake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(session.RoleJoiner)
	neg := session.NewNegotiator(sess, transport.NewLoopbackDialer(), zap.NewNop())
	l := lobby.NewLobby(ctx, sess, newEngine(3), lobby.Options{Negotiator: neg})
	h := start(t, ctx, &Console{Lobby: l, Session: sess, Negotiator: neg})

	h.waitFor(t, "offer token")
	require.NoError(t, h.in.Close())
	assert.NoError(t, h.wait(t))
	assert.Equal(t, session.StateIdle, sess.State())
}

var tokenAfter = func(label string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(label) + `\s+(\S+)`)
}

func extract(t *testing.T, h *harness, re *regexp.Regexp) string {
	t.Helper()
	var token string
	require.Eventually(t, func() bool {
		m := re.FindStringSubmatch(h.out.String())
		if m == nil {
			return false
		}
		token = m[1]
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return token
}

func TestConsole_HostAndJoinExchangeTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := transport.NewLoopbackDialer()
	hostSess := session.New(session.RoleHost)
	joinSess := session.New(session.RoleJoiner)
	hostNeg := session.NewNegotiator(hostSess, d, zap.NewNop())
	joinNeg := session.NewNegotiator(joinSess, d, zap.NewNop())

	hostLobby := lobby.NewLobby(ctx, hostSess, newEngine(1), lobby.Options{Negotiator: hostNeg})
	joinLobby := lobby.NewLobby(ctx, joinSess, newEngine(2), lobby.Options{Negotiator: joinNeg})

	host := start(t, ctx, &Console{Lobby: hostLobby, Session: hostSess, Negotiator: hostNeg, HandshakeTimeout: time.Second})
	join := start(t, ctx, &Console{Lobby: joinLobby, Session: joinSess, Negotiator: joinNeg})

	offer := extract(t, host, tokenAfter("send this offer token to your opponent:"))

	join.typeLine(t, "not-a-token")
	join.waitFor(t, session.ErrInvalidOffer.Error())
	join.typeLine(t, offer)
	answer := extract(t, join, tokenAfter("send this answer token back to the host:"))

	host.typeLine(t, "garbage")
	host.waitFor(t, session.ErrInvalidAnswer.Error())
	host.typeLine(t, answer)
	host.waitFor(t, "pick your team")
	join.waitFor(t, "waiting for the host to pick teams")

	host.typeLine(t, "purple")
	host.waitFor(t, engine.ErrUnknownTeam.Error())
	host.typeLine(t, "Red")

	require.Eventually(t, joinSess.Ready, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, engine.TeamRed, hostSess.MyTeam())
	assert.Equal(t, engine.TeamBlue, joinSess.MyTeam())
	join.waitFor(t, "you are blue")

	join.typeLine(t, "drop 10")
	join.waitFor(t, lobby.ErrNotHost.Error())

	host.typeLine(t, "disconnect")
	join.waitFor(t, "connection: disconnected")

	host.typeLine(t, "quit")
	join.typeLine(t, "quit")
	assert.NoError(t, host.wait(t))
	assert.NoError(t, join.wait(t))
}

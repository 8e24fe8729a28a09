package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/match"
	"github.com/DoyleJ11/plinko-sync/internal/session"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

var ErrNotReady = errors.New("match not ready")
var ErrNotHost = errors.New("only the host can do that")
var ErrNotYourTeam = errors.New("not your team")
var ErrClosed = errors.New("lobby closed")
var ErrLocalMatch = errors.New("local match has no peer")

type Msg interface{ isLobbyMsg() }

// Local input. Reply, when set, must have room for one value.
type Drop struct {
	Bet   int
	Reply chan error
}

func (Drop) isLobbyMsg() {}

type BoostInput struct {
	Boost engine.Boost
	Reply chan error
}

func (BoostInput) isLobbyMsg() {}

type ResetInput struct{ Reply chan error }

func (ResetInput) isLobbyMsg() {}

// SetBalance is the house override.
type SetBalance struct {
	Team   engine.Team
	Amount int
	Reply  chan error
}

func (SetBalance) isLobbyMsg() {}

type SelectTeam struct {
	Team  engine.Team
	Reply chan error
}

func (SelectTeam) isLobbyMsg() {}

// Attach starts reading from a freshly connected channel.
type Attach struct{ Channel transport.Channel }

func (Attach) isLobbyMsg() {}

type Disconnect struct{ Reply chan error }

func (Disconnect) isLobbyMsg() {}

// Advance runs fixed physics steps right away instead of waiting for ticks.
type Advance struct{ Steps int }

func (Advance) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type inbound struct {
	ch   transport.Channel
	data []byte
}

func (inbound) isLobbyMsg() {}

type channelLost struct {
	ch  transport.Channel
	err error
}

func (channelLost) isLobbyMsg() {}

type State struct {
	Session   session.Info    `json:"session"`
	Balances  engine.Balances `json:"balances"`
	Round     engine.Round    `json:"round"`
	Balls     []engine.Ball   `json:"balls"`
	LastEvent *engine.Event   `json:"lastEvent,omitempty"`
}

type Snapshot struct {
	Version int
	State   State
}

type View struct {
	Version    int
	NumClients int
	State      State
}

type Options struct {
	// Negotiator is required for team selection; local play leaves it nil.
	Negotiator *session.Negotiator
	// TickInterval drives the physics; zero disables the ticker and leaves
	// stepping to Advance.
	TickInterval time.Duration
	Logger       *zap.Logger
}

// Lobby owns one match: the engine, the synchronizer and every write to the
// peer happen on its goroutine, between physics steps.
type Lobby struct {
	inbox     chan Msg
	sess      *session.Session
	neg       *session.Negotiator
	eng       *engine.Engine
	sync      *match.Synchronizer
	log       *zap.Logger
	channel   transport.Channel
	version   int
	lastEvent *engine.Event
	clients   map[string]chan Snapshot
	tick      time.Duration
	lastTick  time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, sess *session.Session, eng *engine.Engine, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("role", string(sess.Role())))
	eng.SetAuthoritative(!sess.IsMultiplayer() || sess.IsGameHost())

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		sess:    sess,
		neg:     opts.Negotiator,
		eng:     eng,
		sync:    match.NewSynchronizer(sess, match.EngineSimulation{Engine: eng}, log),
		log:     log,
		clients: make(map[string]chan Snapshot),
		tick:    opts.TickInterval,
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	var ticks <-chan time.Time
	if l.tick > 0 {
		t := time.NewTicker(l.tick)
		defer t.Stop()
		ticks = t.C
	}
	l.lastTick = time.Now()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case now := <-ticks:
			dt := now.Sub(l.lastTick)
			l.lastTick = now
			if !l.eng.RoundActive() {
				continue
			}
			l.settle(l.eng.Advance(dt))
			l.changed()

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- l.snapshot()

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case Drop:
				reply(msg.Reply, l.drop(msg.Bet))

			case BoostInput:
				reply(msg.Reply, l.boost(msg.Boost))

			case ResetInput:
				if err := l.canPlay(); err != nil {
					reply(msg.Reply, err)
					break
				}
				l.eng.Reset()
				l.lastEvent = nil
				l.sync.OnLocalReset()
				l.changed()
				reply(msg.Reply, nil)

			case SetBalance:
				reply(msg.Reply, l.setBalance(msg.Team, msg.Amount))

			case SelectTeam:
				if l.neg == nil {
					reply(msg.Reply, ErrNotHost)
					break
				}
				err := l.neg.SelectTeam(msg.Team)
				if err == nil {
					// Overrides made before the channel opened never reached the joiner.
					l.sync.OnBalancesChanged(l.eng.Balances())
					l.changed()
				}
				reply(msg.Reply, err)

			case Attach:
				l.channel = msg.Channel
				go l.pump(msg.Channel)
				l.changed()

			case Disconnect:
				if !l.sess.IsMultiplayer() {
					reply(msg.Reply, ErrLocalMatch)
					break
				}
				l.sync.Disconnect()
				l.channel = nil
				l.lastEvent = nil
				l.changed()
				reply(msg.Reply, nil)

			case Advance:
				for i := 0; i < msg.Steps && l.eng.RoundActive(); i++ {
					l.settle(l.eng.Step())
				}
				l.changed()

			case inbound:
				if msg.ch != l.channel {
					break
				}
				if l.sync.Handle(msg.data) {
					if l.sess.State() == session.StateDisconnected {
						l.channel = nil
					}
					l.changed()
				}

			case channelLost:
				if msg.ch != l.channel {
					break
				}
				l.channel = nil
				l.sync.OnTransportLost(msg.err)
				l.changed()

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) canPlay() error {
	if !l.sess.Ready() {
		return ErrNotReady
	}
	return nil
}

func (l *Lobby) drop(bet int) error {
	if err := l.canPlay(); err != nil {
		return err
	}
	if l.sess.IsMultiplayer() && !l.sess.IsGameHost() {
		return ErrNotHost
	}

	r, err := l.eng.Drop(bet)
	if err != nil {
		return err
	}
	l.log.Info("round started", zap.Int("bet", r.Bet), zap.String("red", r.RedBallID), zap.String("blue", r.BlueBallID))
	l.lastEvent = nil
	l.sync.OnLocalBallDrop(r)
	l.sync.OnBalancesChanged(l.eng.Balances())
	l.changed()
	return nil
}

func (l *Lobby) boost(b engine.Boost) error {
	if err := l.canPlay(); err != nil {
		return err
	}
	if !l.sess.IsMyTeam(b.Team) {
		return ErrNotYourTeam
	}

	id, err := l.eng.Boost(b)
	if err != nil {
		return err
	}
	l.sync.OnLocalBoost(id, b)
	l.changed()
	return nil
}

func (l *Lobby) setBalance(team engine.Team, amount int) error {
	if l.sess.IsMultiplayer() && !l.sess.IsGameHost() {
		return ErrNotHost
	}
	if err := l.eng.SetBalance(team, amount); err != nil {
		return err
	}
	l.sync.OnBalancesChanged(l.eng.Balances())
	l.changed()
	return nil
}

// settle reports payouts; the host pushes fresh balances after each one.
func (l *Lobby) settle(landings []engine.Landing) {
	for _, ld := range landings {
		if !ld.Settled {
			continue
		}
		evt := ld.Event
		l.lastEvent = &evt
		l.log.Info("ball landed",
			zap.String("ball", ld.Ball.ID),
			zap.String("team", string(ld.Ball.Team)),
			zap.Int("slot", ld.SlotIndex),
			zap.String("outcome", string(evt.Type)),
			zap.Int("amount", evt.Amount))
		l.sync.OnSlotLanding(ld.Balances)
	}
}

// pump forwards channel traffic into the inbox until the channel dies.
func (l *Lobby) pump(ch transport.Channel) {
	for {
		select {
		case data := <-ch.Incoming():
			if !l.post(inbound{ch: ch, data: data}) {
				return
			}
		case <-ch.Done():
			for {
				select {
				case data := <-ch.Incoming():
					if !l.post(inbound{ch: ch, data: data}) {
						return
					}
				default:
					l.post(channelLost{ch: ch, err: ch.Err()})
					return
				}
			}
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Lobby) post(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *Lobby) state() State {
	return State{
		Session:   l.sess.Info(),
		Balances:  l.eng.Balances(),
		Round:     l.eng.Round(),
		Balls:     l.eng.Balls(),
		LastEvent: l.lastEvent,
	}
}

func (l *Lobby) snapshot() Snapshot {
	return Snapshot{Version: l.version, State: l.state()}
}

func (l *Lobby) changed() {
	l.version++
	l.broadcast(l.snapshot())
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
		}
	}
}

func reply(ch chan error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// Inbox is where the console, the WebSocket layer and tests send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done closes once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Ask sends the message built around a fresh reply channel and waits for
// the answer.
func (l *Lobby) Ask(ctx context.Context, build func(reply chan error) Msg) error {
	r := make(chan error, 1)
	select {
	case l.inbox <- build(r):
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}

	select {
	case err := <-r:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}
}

// View fetches the current state.
func (l *Lobby) View(ctx context.Context) (View, error) {
	r := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: r}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, ErrClosed
	}

	select {
	case v := <-r:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, ErrClosed
	}
}

// Package match keeps two simulations in agreement. The host is the
// authority for round starts and balances; boosts and resets flow both ways.
package match

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/protocol"
	"github.com/DoyleJ11/plinko-sync/internal/session"
)

// Link is what the synchronizer needs from the session.
type Link interface {
	IsMultiplayer() bool
	IsGameHost() bool
	IsMyTeam(team engine.Team) bool
	Send(m protocol.Message) error
	AssignTeams(mine, opponent engine.Team)
	Teardown(reason error) error
}

// Simulation receives what the peer did.
type Simulation interface {
	HandleRemoteBallDrop(m protocol.BallDrop) error
	HandleRemoteBoost(m protocol.Boost) error
	HandleGameStateSync(b engine.Balances)
	HandleRemoteReset()
	HandleDisconnect()
}

type Synchronizer struct {
	link Link
	sim  Simulation
	log  *zap.Logger
	now  func() time.Time
}

func NewSynchronizer(link Link, sim Simulation, log *zap.Logger) *Synchronizer {
	return &Synchronizer{link: link, sim: sim, log: log, now: time.Now}
}

// OnLocalBallDrop announces a round the host just started.
func (s *Synchronizer) OnLocalBallDrop(r engine.Round) {
	if !s.link.IsMultiplayer() || !s.link.IsGameHost() {
		return
	}
	s.send(protocol.BallDrop{
		Bet:        r.Bet,
		RedBallID:  r.RedBallID,
		BlueBallID: r.BlueBallID,
		Timestamp:  s.now().UnixMilli(),
	})
}

func (s *Synchronizer) OnLocalBoost(ballID string, b engine.Boost) {
	if !s.link.IsMultiplayer() {
		return
	}
	s.send(protocol.Boost{Boost: b, BallID: ballID})
}

// OnSlotLanding pushes the host's balances after a payout.
func (s *Synchronizer) OnSlotLanding(b engine.Balances) {
	s.OnBalancesChanged(b)
}

// OnBalancesChanged pushes the host's full balance state.
func (s *Synchronizer) OnBalancesChanged(b engine.Balances) {
	if !s.link.IsMultiplayer() || !s.link.IsGameHost() {
		return
	}
	s.send(protocol.GameState{Balances: b})
}

func (s *Synchronizer) OnLocalReset() {
	if !s.link.IsMultiplayer() {
		return
	}
	s.send(protocol.Reset{})
}

// Disconnect tells the peer we are leaving, then tears down.
func (s *Synchronizer) Disconnect() {
	if s.link.IsMultiplayer() {
		s.send(protocol.Disconnect{})
	}
	s.teardown(errors.New("disconnected locally"))
}

// OnTransportLost handles the channel closing underneath us.
func (s *Synchronizer) OnTransportLost(cause error) {
	s.log.Warn("transport lost", zap.Error(cause))
	s.teardown(fmt.Errorf("%w: %w", session.ErrTransportLost, cause))
}

// Handle applies one inbound message. Anything malformed, unknown or sent
// by the wrong side is logged and dropped; it reports whether the message
// changed anything.
func (s *Synchronizer) Handle(raw []byte) bool {
	msg, err := protocol.Decode(raw)
	if err != nil {
		s.log.Debug("dropping inbound message", zap.Error(err), zap.Int("bytes", len(raw)))
		return false
	}

	host := s.link.IsGameHost()
	switch m := msg.(type) {
	case protocol.TeamSelection:
		if host {
			return s.ignore(m, "host picks its own team")
		}
		s.link.AssignTeams(m.JoinTeam, m.HostTeam)
		s.log.Info("teams assigned", zap.String("mine", string(m.JoinTeam)))
		return true

	case protocol.BallDrop:
		if host {
			return s.ignore(m, "only the host starts rounds")
		}
		if err := s.sim.HandleRemoteBallDrop(m); err != nil {
			s.log.Debug("ball drop not applied", zap.Error(err))
			return false
		}
		return true

	case protocol.Boost:
		// A peer only boosts its own team, never ours.
		if s.link.IsMyTeam(m.Boost.Team) {
			return s.ignore(m, "boost for our own team")
		}
		if err := s.sim.HandleRemoteBoost(m); err != nil {
			s.log.Debug("boost not applied", zap.String("ball", m.BallID), zap.Error(err))
			return false
		}
		return true

	case protocol.GameState:
		if host {
			return s.ignore(m, "host owns the balances")
		}
		s.sim.HandleGameStateSync(m.Balances)
		return true

	case protocol.Reset:
		s.sim.HandleRemoteReset()
		return true

	case protocol.Disconnect:
		s.log.Info("peer disconnected")
		s.teardown(fmt.Errorf("%w: peer left", session.ErrTransportLost))
		return true
	}
	return false
}

func (s *Synchronizer) send(m protocol.Message) {
	if err := s.link.Send(m); err != nil {
		s.log.Debug("outbound message dropped", zap.String("type", string(m.Kind())), zap.Error(err))
	}
}

func (s *Synchronizer) ignore(m protocol.Message, why string) bool {
	s.log.Debug("ignoring message", zap.String("type", string(m.Kind())), zap.String("reason", why))
	return false
}

func (s *Synchronizer) teardown(reason error) {
	if err := s.link.Teardown(reason); err != nil {
		s.log.Debug("teardown", zap.Error(err))
	}
	s.sim.HandleDisconnect()
}

package session

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/protocol"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

type Role string

const (
	RoleLocal  Role = "local"
	RoleHost   Role = "host"
	RoleJoiner Role = "join"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleLocal, RoleHost, RoleJoiner:
		return Role(s), true
	}
	return "", false
}

type State string

const (
	StateIdle         State = "idle"
	StateHosting      State = "hosting"
	StateJoining      State = "joining"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Session is this process's side of a match: its role, connection state,
// team assignment and the channel to the other peer.
type Session struct {
	mu           sync.RWMutex
	role         Role
	state        State
	myTeam       engine.Team
	opponentTeam engine.Team
	peer         transport.Peer
	channel      transport.Channel
	lastErr      error
}

func New(role Role) *Session {
	return &Session{role: role, state: StateIdle}
}

type Info struct {
	Role         Role        `json:"role"`
	State        State       `json:"state"`
	MyTeam       engine.Team `json:"myTeam,omitempty"`
	OpponentTeam engine.Team `json:"opponentTeam,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{Role: s.role, State: s.state, MyTeam: s.myTeam, OpponentTeam: s.opponentTeam}
	if s.lastErr != nil {
		info.Error = s.lastErr.Error()
	}
	return info
}

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) MyTeam() engine.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.myTeam
}

func (s *Session) OpponentTeam() engine.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opponentTeam
}

func (s *Session) IsMultiplayer() bool { return s.Role() != RoleLocal }
func (s *Session) IsGameHost() bool    { return s.Role() == RoleHost }

// IsMyTeam reports whether this side controls team. In local mode one
// player controls both.
func (s *Session) IsMyTeam(team engine.Team) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role == RoleLocal || (team != engine.TeamNone && team == s.myTeam)
}

// Ready reports whether gameplay input may be accepted.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.role == RoleLocal {
		return true
	}
	return s.state == StateConnected && s.myTeam != engine.TeamNone
}

func (s *Session) Channel() transport.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// Send encodes and writes m to the peer. Messages are fire-and-forget;
// ErrNotConnected means the message was dropped.
func (s *Session) Send(m protocol.Message) error {
	s.mu.RLock()
	ch, state := s.channel, s.state
	s.mu.RUnlock()

	if ch == nil || state != StateConnected {
		return ErrNotConnected
	}
	raw, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	return ch.Send(raw)
}

// AssignTeams records the teams chosen by the host.
func (s *Session) AssignTeams(mine, opponent engine.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myTeam = mine
	s.opponentTeam = opponent
}

// Teardown closes the peer and moves to Disconnected. Calling it again is a
// no-op.
func (s *Session) Teardown(reason error) error {
	s.mu.Lock()
	if s.state == StateDisconnected || s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	peer, ch := s.peer, s.channel
	s.clearLocked(StateDisconnected, reason)
	s.mu.Unlock()

	return closeAll(peer, ch)
}

// teardownIf is Teardown guarded against a channel that was already replaced.
func (s *Session) teardownIf(ch transport.Channel, reason error) {
	s.mu.Lock()
	if s.channel != ch || s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	peer := s.peer
	s.clearLocked(StateDisconnected, reason)
	s.mu.Unlock()

	_ = closeAll(peer, ch)
}

func (s *Session) clearLocked(next State, reason error) {
	s.state = next
	s.myTeam = engine.TeamNone
	s.opponentTeam = engine.TeamNone
	s.peer = nil
	s.channel = nil
	s.lastErr = reason
}

func closeAll(peer transport.Peer, ch transport.Channel) error {
	var err error
	if ch != nil {
		err = multierr.Append(err, ch.Close())
	}
	if peer != nil {
		err = multierr.Append(err, peer.Close())
	}
	return err
}

func (s *Session) markConnected(ch transport.Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != ch || (s.state != StateHosting && s.state != StateJoining) {
		return false
	}
	s.state = StateConnected
	return true
}

package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/plinko-sync/internal/engine"
	"github.com/DoyleJ11/plinko-sync/internal/protocol"
	"github.com/DoyleJ11/plinko-sync/internal/transport"
)

// Negotiator drives a Session through the manual offer/answer exchange:
// the host hands its offer token to the joiner out of band, the joiner
// hands back an answer token, and the data channel opens.
type Negotiator struct {
	sess   *Session
	dialer transport.Dialer
	log    *zap.Logger
}

func NewNegotiator(sess *Session, dialer transport.Dialer, log *zap.Logger) *Negotiator {
	return &Negotiator{sess: sess, dialer: dialer, log: log.With(zap.String("role", string(sess.Role())))}
}

func (n *Negotiator) Session() *Session { return n.sess }

// StartHosting creates the peer and data channel and returns the offer
// token once ICE gathering is complete. On failure the session keeps its
// previous state.
func (n *Negotiator) StartHosting(ctx context.Context) (string, error) {
	prev, err := n.canStart(RoleHost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}

	peer, err := n.dialer.NewPeer()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		_ = peer.Close()
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	token, err := transport.EncodeToken(offer)
	if err != nil {
		_ = peer.Close()
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}

	if err := n.commit(prev, StateHosting, peer); err != nil {
		_ = peer.Close()
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	n.log.Info("offer ready", zap.Int("token_bytes", len(token)))
	return token, nil
}

// AcceptOffer answers a host's offer token. A token that does not decode
// fails with ErrInvalidOffer and leaves the session untouched.
func (n *Negotiator) AcceptOffer(ctx context.Context, token string) (string, error) {
	prev, err := n.canStart(RoleJoiner)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	offer, err := transport.DecodeToken(token, transport.SDPOffer)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOffer, err)
	}

	peer, err := n.dialer.NewPeer()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	if err := n.commit(prev, StateJoining, peer); err != nil {
		_ = peer.Close()
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}

	answer, err := peer.CreateAnswer(ctx, offer)
	if err == nil {
		token, err = transport.EncodeToken(answer)
	}
	if err != nil {
		n.rollback(peer, prev)
		return "", fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	n.log.Info("answer ready", zap.Int("token_bytes", len(token)))
	return token, nil
}

// CompleteHandshake applies the joiner's answer and waits for the data
// channel to open.
func (n *Negotiator) CompleteHandshake(ctx context.Context, token string) error {
	s := n.sess
	s.mu.RLock()
	role, state, peer := s.role, s.state, s.peer
	s.mu.RUnlock()

	if role != RoleHost {
		return fmt.Errorf("%w: %w", ErrHandshake, ErrWrongRole)
	}
	if state != StateHosting || peer == nil {
		return fmt.Errorf("%w: %w: %s", ErrHandshake, ErrWrongState, state)
	}

	answer, err := transport.DecodeToken(token, transport.SDPAnswer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAnswer, err)
	}
	if err := peer.ApplyAnswer(answer); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if err := n.AwaitConnected(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	n.log.Info("handshake complete")
	return nil
}

// AwaitConnected blocks until the current data channel opens.
func (n *Negotiator) AwaitConnected(ctx context.Context) error {
	ch := n.sess.Channel()
	if ch == nil {
		return ErrNotConnected
	}

	select {
	case <-ch.Opened():
		n.sess.markConnected(ch)
		return nil
	case <-ch.Done():
		return fmt.Errorf("%w: %w", ErrTransportLost, ch.Err())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SelectTeam is the host's pick. The joiner is told via teamSelection and
// gets the other team.
func (n *Negotiator) SelectTeam(team engine.Team) error {
	s := n.sess
	if s.Role() != RoleHost {
		return ErrWrongRole
	}
	if s.State() != StateConnected {
		return fmt.Errorf("%w: %s", ErrWrongState, s.State())
	}
	if team != engine.TeamRed && team != engine.TeamBlue {
		return engine.ErrUnknownTeam
	}
	if s.MyTeam() != engine.TeamNone {
		return fmt.Errorf("%w: team already selected", ErrWrongState)
	}

	s.AssignTeams(team, team.Opponent())
	if err := s.Send(protocol.TeamSelection{HostTeam: team, JoinTeam: team.Opponent()}); err != nil {
		s.AssignTeams(engine.TeamNone, engine.TeamNone)
		return err
	}
	n.log.Info("team selected", zap.String("team", string(team)))
	return nil
}

// Cancel abandons a negotiation that has not connected yet.
func (n *Negotiator) Cancel() error {
	s := n.sess
	s.mu.Lock()
	if s.state != StateHosting && s.state != StateJoining {
		s.mu.Unlock()
		return nil
	}
	peer, ch := s.peer, s.channel
	s.clearLocked(StateIdle, nil)
	s.mu.Unlock()

	return closeAll(peer, ch)
}

func (n *Negotiator) canStart(role Role) (State, error) {
	s := n.sess
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.role != role {
		return "", ErrWrongRole
	}
	if s.state != StateIdle && s.state != StateDisconnected {
		return "", fmt.Errorf("%w: %s", ErrWrongState, s.state)
	}
	return s.state, nil
}

func (n *Negotiator) commit(prev, next State, peer transport.Peer) error {
	s := n.sess
	s.mu.Lock()
	if s.state != prev {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWrongState, s.state)
	}
	s.state = next
	s.peer = peer
	s.channel = peer.Channel()
	s.lastErr = nil
	s.mu.Unlock()

	go n.watch(peer.Channel())
	return nil
}

func (n *Negotiator) rollback(peer transport.Peer, prev State) {
	s := n.sess
	s.mu.Lock()
	if s.peer == peer {
		s.clearLocked(prev, nil)
	}
	s.mu.Unlock()
	_ = peer.Close()
}

// watch follows one channel for its whole life.
func (n *Negotiator) watch(ch transport.Channel) {
	select {
	case <-ch.Opened():
		if n.sess.markConnected(ch) {
			n.log.Info("data channel open")
		}
	case <-ch.Done():
	}

	<-ch.Done()
	n.log.Info("data channel closed", zap.Error(ch.Err()))
	n.sess.teardownIf(ch, fmt.Errorf("%w: %w", ErrTransportLost, ch.Err()))
}

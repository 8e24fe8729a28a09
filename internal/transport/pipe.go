package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

type pipeEnd struct {
	chanState

	peerMu sync.Mutex
	peer   *pipeEnd
}

func newPipeEnd() *pipeEnd {
	p := &pipeEnd{}
	p.init()
	return p
}

// NewPipe returns two connected, already open in-memory channels.
func NewPipe() (Channel, Channel) {
	a, b := newPipeEnd(), newPipeEnd()
	link(a, b)
	return a, b
}

func link(a, b *pipeEnd) {
	a.setPeer(b)
	b.setPeer(a)
	a.open()
	b.open()
}

func (p *pipeEnd) setPeer(other *pipeEnd) {
	p.peerMu.Lock()
	p.peer = other
	p.peerMu.Unlock()
}

func (p *pipeEnd) other() *pipeEnd {
	p.peerMu.Lock()
	defer p.peerMu.Unlock()
	return p.peer
}

func (p *pipeEnd) Send(data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	peer := p.other()
	if peer == nil || !p.isOpen() {
		return ErrNotOpen
	}

	select {
	case peer.incoming <- bytes.Clone(data):
		return nil
	case <-peer.done:
		return ErrClosed
	case <-p.done:
		return ErrClosed
	}
}

// Close shuts both ends, the way a torn-down peer connection would.
func (p *pipeEnd) Close() error {
	p.fail(ErrClosed)
	if peer := p.other(); peer != nil {
		peer.fail(ErrClosed)
	}
	return nil
}

// LoopbackDialer pairs peers inside one process. Its descriptions are
// opaque handles that only mean something to the dialer that issued them.
type LoopbackDialer struct {
	mu      sync.Mutex
	seq     int
	offers  map[string]*loopbackPeer
	answers map[string][2]*loopbackPeer
}

func NewLoopbackDialer() *LoopbackDialer {
	return &LoopbackDialer{
		offers:  make(map[string]*loopbackPeer),
		answers: make(map[string][2]*loopbackPeer),
	}
}

func (d *LoopbackDialer) NewPeer() (Peer, error) {
	return &loopbackPeer{d: d, end: newPipeEnd()}, nil
}

type loopbackPeer struct {
	d   *LoopbackDialer
	end *pipeEnd
}

func (p *loopbackPeer) CreateOffer(ctx context.Context) (Description, error) {
	if err := ctx.Err(); err != nil {
		return Description{}, err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	p.d.seq++
	sdp := fmt.Sprintf("loopback-offer-%d", p.d.seq)
	p.d.offers[sdp] = p
	return Description{Type: SDPOffer, SDP: sdp}, nil
}

func (p *loopbackPeer) CreateAnswer(ctx context.Context, offer Description) (Description, error) {
	if err := ctx.Err(); err != nil {
		return Description{}, err
	}
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	host, ok := p.d.offers[offer.SDP]
	if !ok {
		return Description{}, fmt.Errorf("unknown offer %q", offer.SDP)
	}
	delete(p.d.offers, offer.SDP)

	p.d.seq++
	sdp := fmt.Sprintf("loopback-answer-%d", p.d.seq)
	p.d.answers[sdp] = [2]*loopbackPeer{host, p}
	return Description{Type: SDPAnswer, SDP: sdp}, nil
}

func (p *loopbackPeer) ApplyAnswer(answer Description) error {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	pair, ok := p.d.answers[answer.SDP]
	if !ok || pair[0] != p {
		return fmt.Errorf("answer %q does not belong to this offer", answer.SDP)
	}
	delete(p.d.answers, answer.SDP)
	link(pair[0].end, pair[1].end)
	return nil
}

func (p *loopbackPeer) Channel() Channel { return p.end }
func (p *loopbackPeer) Close() error     { return p.end.Close() }

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultICEServers are public STUN servers; no TURN relay is configured.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// PionDialer creates WebRTC peers with a single data channel.
type PionDialer struct {
	ICEServers []string
	Label      string
	Log        *zap.Logger
}

func (d *PionDialer) NewPeer() (Peer, error) {
	cfg := webrtc.Configuration{}
	if len(d.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: d.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	label := d.Label
	if label == "" {
		label = "game"
	}

	p := &pionPeer{pc: pc, label: label, log: log, ch: newPionChannel()}
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.Debug("peer connection state", zap.String("state", s.String()))
		switch s {
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			p.ch.fail(fmt.Errorf("%w: peer connection %s", ErrClosed, s))
		}
	})
	return p, nil
}

type pionPeer struct {
	pc    *webrtc.PeerConnection
	label string
	log   *zap.Logger
	ch    *pionChannel
}

func (p *pionPeer) CreateOffer(ctx context.Context) (Description, error) {
	dc, err := p.pc.CreateDataChannel(p.label, nil)
	if err != nil {
		return Description{}, fmt.Errorf("create data channel: %w", err)
	}
	p.ch.bind(dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("create offer: %w", err)
	}
	return p.gather(ctx, offer)
}

func (p *pionPeer) CreateAnswer(ctx context.Context, offer Description) (Description, error) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != p.label {
			p.log.Debug("ignoring data channel", zap.String("label", dc.Label()))
			return
		}
		p.ch.bind(dc)
	})

	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP})
	if err != nil {
		return Description{}, fmt.Errorf("set offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("create answer: %w", err)
	}
	return p.gather(ctx, answer)
}

// gather sets the local description and waits for ICE gathering to finish
// so the returned description carries every candidate.
func (p *pionPeer) gather(ctx context.Context, desc webrtc.SessionDescription) (Description, error) {
	done := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return Description{}, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Description{}, ctx.Err()
	}

	local := p.pc.LocalDescription()
	if local == nil {
		return Description{}, fmt.Errorf("no local description after gathering")
	}
	return Description{Type: SDPType(local.Type.String()), SDP: local.SDP}, nil
}

func (p *pionPeer) ApplyAnswer(answer Description) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP})
}

func (p *pionPeer) Channel() Channel { return p.ch }

func (p *pionPeer) Close() error {
	return multierr.Combine(p.ch.Close(), p.pc.Close())
}

type pionChannel struct {
	chanState

	dcMu sync.Mutex
	dc   *webrtc.DataChannel
}

func newPionChannel() *pionChannel {
	c := &pionChannel{}
	c.init()
	return c
}

func (c *pionChannel) bind(dc *webrtc.DataChannel) {
	c.dcMu.Lock()
	c.dc = dc
	c.dcMu.Unlock()

	dc.OnOpen(c.open)
	dc.OnClose(func() { c.fail(ErrClosed) })
	dc.OnError(func(err error) { c.fail(fmt.Errorf("%w: %v", ErrClosed, err)) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) { c.deliver(msg.Data) })
}

func (c *pionChannel) Send(data []byte) error {
	c.dcMu.Lock()
	dc := c.dc
	c.dcMu.Unlock()

	if dc == nil || !c.isOpen() {
		return ErrNotOpen
	}
	return dc.SendText(string(data))
}

func (c *pionChannel) Close() error {
	c.fail(ErrClosed)

	c.dcMu.Lock()
	dc := c.dc
	c.dcMu.Unlock()
	if dc == nil {
		return nil
	}
	return dc.Close()
}

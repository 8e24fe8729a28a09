// Package transport carries match messages between the two peers. A Peer
// negotiates a single ordered, reliable data channel through a one-shot
// offer/answer exchange with all ICE candidates gathered up front.
package transport

import (
	"context"
	"errors"
	"sync"
)

var ErrNotOpen = errors.New("channel not open")
var ErrClosed = errors.New("channel closed")

// Channel is a bidirectional message pipe. Incoming is never closed;
// readers should also watch Done.
type Channel interface {
	Send(data []byte) error
	Incoming() <-chan []byte
	Opened() <-chan struct{}
	Done() <-chan struct{}
	// Err reports why the channel closed. Only meaningful after Done.
	Err() error
	Close() error
}

type Peer interface {
	CreateOffer(ctx context.Context) (Description, error)
	CreateAnswer(ctx context.Context, offer Description) (Description, error)
	ApplyAnswer(answer Description) error
	Channel() Channel
	Close() error
}

type Dialer interface {
	NewPeer() (Peer, error)
}

const incomingBuffer = 64

// chanState is the open/closed bookkeeping shared by Channel implementations.
type chanState struct {
	incoming chan []byte
	opened   chan struct{}
	done     chan struct{}
	openOnce sync.Once
	doneOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *chanState) init() {
	s.incoming = make(chan []byte, incomingBuffer)
	s.opened = make(chan struct{})
	s.done = make(chan struct{})
}

func (s *chanState) Incoming() <-chan []byte { return s.incoming }
func (s *chanState) Opened() <-chan struct{} { return s.opened }
func (s *chanState) Done() <-chan struct{}   { return s.done }

func (s *chanState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chanState) open() {
	s.openOnce.Do(func() { close(s.opened) })
}

// fail closes the channel; the first reason wins.
func (s *chanState) fail(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *chanState) isOpen() bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case <-s.opened:
		return true
	default:
		return false
	}
}

func (s *chanState) deliver(data []byte) bool {
	select {
	case s.incoming <- data:
		return true
	case <-s.done:
		return false
	}
}

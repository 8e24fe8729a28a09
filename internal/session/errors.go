package session

import "errors"

var ErrNegotiation = errors.New("negotiation failed")
var ErrInvalidOffer = errors.New("invalid offer")
var ErrInvalidAnswer = errors.New("invalid answer")
var ErrHandshake = errors.New("handshake failed")
var ErrTransportLost = errors.New("transport lost")

var ErrWrongRole = errors.New("operation not allowed for this role")
var ErrWrongState = errors.New("operation not allowed in this state")
var ErrNotConnected = errors.New("not connected")

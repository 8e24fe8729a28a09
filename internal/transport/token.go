package transport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidToken = errors.New("invalid session token")

type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// Description is a complete session description, candidates included.
type Description struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// EncodeToken renders d as the copy/paste string users hand to each other.
func EncodeToken(d Description) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeToken(token string, want SDPType) (Description, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if d.Type != want {
		return Description{}, fmt.Errorf("%w: want %s, got %q", ErrInvalidToken, want, d.Type)
	}
	if d.SDP == "" {
		return Description{}, fmt.Errorf("%w: empty sdp", ErrInvalidToken)
	}
	return d, nil
}

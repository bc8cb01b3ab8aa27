// Package token mints LiveKit-compatible room access tokens. The relay only
// signs them; the media service validates and enforces the grant.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotConfigured means the signing key or secret is missing from the
	// deployment; surfaced to HTTP as a server-side failure.
	ErrNotConfigured = errors.New("livekit api key/secret not set")
	// ErrIssuance wraps provider-side signing failures.
	ErrIssuance = errors.New("token issuance failed")
)

const DefaultTTL = 6 * time.Hour

// VideoGrant mirrors the claim shape LiveKit expects under "video".
type VideoGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	CanPublish     bool   `json:"canPublish"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublishData bool   `json:"canPublishData"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Video VideoGrant `json:"video"`
}

type Provider struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
	now       func() time.Time
}

func NewProvider(apiKey, apiSecret string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue signs a join token for identity in roomName with full publish and
// subscribe rights.
func (p *Provider) Issue(roomName, identity string) (string, error) {
	if p.apiKey == "" || p.apiSecret == "" {
		return "", ErrNotConfigured
	}
	now := p.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.apiKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Video: VideoGrant{
			Room:           roomName,
			RoomJoin:       true,
			CanPublish:     true,
			CanSubscribe:   true,
			CanPublishData: true,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.apiSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIssuance, err)
	}
	return signed, nil
}

// Configured reports whether signing material is present, for the debug
// endpoint only; it never exposes the values.
func (p *Provider) Configured() (keyPresent, secretPresent bool) {
	return p.apiKey != "", p.apiSecret != ""
}

// Package identity issues and verifies signed player tokens.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of a token when the issuer has none configured.
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken is returned for any token that cannot be trusted.
var ErrInvalidToken = errors.New("identity: invalid token")

// Identity is an authenticated player.
type Identity struct {
	PlayerID string
	Name     string
}

// DisplayName returns the name, falling back to the player id.
func (id Identity) DisplayName() string {
	if id.Name != "" {
		return id.Name
	}
	return id.PlayerID
}

// NewPlayerID returns a fresh opaque player identifier.
func NewPlayerID() string {
	return uuid.NewString()
}

// Issuer signs and verifies HS256 player tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. A non-positive ttl uses DefaultTTL.
func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity: secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for id.
func (s *Issuer) Issue(id Identity) (string, error) {
	if id.PlayerID == "" {
		return "", fmt.Errorf("identity: player id is required")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  id.PlayerID,
		"name": id.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, expiry and issuer of raw and
// returns the identity it carries.
func (s *Issuer) Verify(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	if _, ok := claims["exp"]; !ok {
		return Identity{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return Identity{}, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Identity{PlayerID: sub, Name: name}, nil
}

// Peek reads the identity from raw without checking the signature. Clients
// use it to learn who a token names; servers must use Verify.
func Peek(raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(raw, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Identity{PlayerID: sub, Name: name}, nil
}

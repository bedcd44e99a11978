package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultJWTIssuer   = "selah-journal"
	defaultJWTAudience = "selah-app"
	minJWTSecretLength = 32
)

var defaultJWTLeeway = 30 * time.Second

// ErrTokenRevoked is returned for tokens revoked by logout or user cutoff.
var ErrTokenRevoked = errors.New("token revoked")

var (
	errMalformedToken = errors.New("invalid token format")
	errMissingKid     = errors.New("token key id required")
	errUnknownKid     = errors.New("unknown token key")
)

// JWTOptions configures claim validation. Zero values take the package defaults.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
	// PreviousSecrets verify during a rotation but never sign.
	PreviousSecrets []string
}

// keyring maps a short fingerprint of each HMAC secret to the secret itself.
type keyring struct {
	active string
	keys   map[string][]byte
}

func newKeyring(current string, previous []string) keyring {
	ring := keyring{active: secretKid(current), keys: make(map[string][]byte, len(previous)+1)}
	ring.keys[ring.active] = []byte(current)
	for _, secret := range previous {
		if secret = strings.TrimSpace(secret); secret != "" {
			ring.keys[secretKid(secret)] = []byte(secret)
		}
	}
	return ring
}

func (k keyring) lookup(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid = strings.TrimSpace(kid); kid == "" {
		return nil, errMissingKid
	}
	key, ok := k.keys[kid]
	if !ok {
		return nil, errUnknownKid
	}
	return key, nil
}

// JWTSessionStore issues and verifies HS256 session tokens, consulting the
// revoker for logged-out tokens and per-user cutoffs.
type JWTSessionStore struct {
	ttl     time.Duration
	revoker TokenRevoker
	ring    keyring
	parser  *jwt.Parser
	opts    JWTOptions
}

func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < minJWTSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minJWTSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	opts.Issuer = firstNonBlank(opts.Issuer, defaultJWTIssuer)
	opts.Audience = firstNonBlank(opts.Audience, defaultJWTAudience)
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return &JWTSessionStore{
		ttl:     ttl,
		revoker: revoker,
		ring:    newKeyring(secret, opts.PreviousSecrets),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(opts.Leeway),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithAudience(opts.Audience),
		),
		opts: opts,
	}, nil
}

// NewSession signs a token for userID with a fresh jti.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    s.opts.Issuer,
		Audience:  jwt.ClaimStrings{s.opts.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	token.Header["kid"] = s.ring.active
	return token.SignedString(s.ring.keys[s.ring.active])
}

// GetUserIDByToken returns the token subject once signature, claims and
// revocation state all check out.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	claims, err := s.verify(token)
	if err != nil {
		return "", false, err
	}
	if err := s.checkRevoked(claims); err != nil {
		return "", false, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, errors.New("token subject missing")
	}
	return claims.Subject, true, nil
}

func (s *JWTSessionStore) checkRevoked(claims *jwt.RegisteredClaims) error {
	if s.revoker == nil {
		return nil
	}
	revoked, err := s.revoker.IsRevoked(claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}
	users, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return nil
	}
	cutoff, err := users.RevokedAfter(claims.Subject)
	if err != nil || cutoff.IsZero() {
		return err
	}
	if claims.IssuedAt == nil {
		return errors.New("token issued_at missing")
	}
	// iat has second precision, so a token minted in the cutoff second is revoked too.
	if !claims.IssuedAt.Time.UTC().After(cutoff) {
		return ErrTokenRevoked
	}
	return nil
}

// DeleteSession revokes token until it would have expired. Tokens that do not
// verify are ignored, which keeps logout idempotent.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.verify(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

// RevokeUserSessions invalidates every session of userID issued at or before since.
func (s *JWTSessionStore) RevokeUserSessions(userID string, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	users, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return users.RevokeUser(userID, since)
}

func (s *JWTSessionStore) verify(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errMalformedToken
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := s.parser.ParseWithClaims(token, claims, s.ring.lookup); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return nil, errors.New("token jti missing")
	}
	return claims, nil
}

func secretKid(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

func firstNonBlank(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

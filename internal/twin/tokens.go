package twin

import (
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenKind string

const (
	kindSession  tokenKind = "session"
	kindRemember tokenKind = "remember"

	tokenIssuerName = "taproom-twin"
)

// tokenIssuer signs session and remember-me tokens and tracks revocations.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> expiry
}

func newTokenIssuer(secret []byte, now func() time.Time) *tokenIssuer {
	return &tokenIssuer{secret: secret, now: now, revoked: make(map[string]time.Time)}
}

func (t *tokenIssuer) issue(memberID string, kind tokenKind, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwtlib.MapClaims{
		"iss":  tokenIssuerName,
		"sub":  memberID,
		"kind": string(kind),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"jti":  uuid.NewString(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// verify returns the member id the token was issued to.
func (t *tokenIssuer) verify(raw string, kind tokenKind) (string, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return "", err
	}
	if claims["kind"] != string(kind) {
		return "", fmt.Errorf("expected %s token", kind)
	}
	if jti, _ := claims["jti"].(string); t.isRevoked(jti) {
		return "", fmt.Errorf("token revoked")
	}
	return claims.GetSubject()
}

func (t *tokenIssuer) revoke(raw string) {
	claims, err := t.parse(raw)
	if err != nil {
		return
	}
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = exp.Time
	now := t.now()
	for id, expiry := range t.revoked {
		if now.After(expiry) {
			delete(t.revoked, id)
		}
	}
}

func (t *tokenIssuer) isRevoked(jti string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.revoked[jti]
	return ok
}

func (t *tokenIssuer) parse(raw string) (jwtlib.MapClaims, error) {
	token, err := jwtlib.Parse(raw, func(*jwtlib.Token) (any, error) {
		return t.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(tokenIssuerName),
		jwtlib.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

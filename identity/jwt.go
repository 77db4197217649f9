package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"partyquiz/domain"
)

// A player identity is a bearer token, not an account. The server mints an
// opaque id on first contact, signs it, and from then on trusts whoever
// presents the token. The id travels in the registered subject claim;
// there are no custom claims.
type Manager struct {
	secretKey []byte
	maxAge    time.Duration
}

func NewManager(secretKey string, maxAge time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secretKey),
		maxAge:    maxAge,
	}
}

func NewPlayerID() string {
	return uuid.NewString()
}

// Issue signs a fresh token for the given player id, valid for the
// configured max age from now. Re-issuing for an id taken from a still
// valid token is how an identity gets renewed.
func (m *Manager) Issue(playerID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.UnexpectedTokenGenerationError, err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the player id the token
// was issued for.
func (m *Manager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		// Only the exact algorithm we issue with. "none" and every other
		// family get rejected before any signature check.
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, domain.ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})
	if err != nil {
		return "", classifyTokenError(err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", domain.ErrCorruptedToken
	}
	return claims.Subject, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidSigningAlg):
		return domain.ErrInvalidSigningAlg
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrExpiredToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return domain.ErrInvalidTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrCorruptedToken
	default:
		return fmt.Errorf("%w: %w", domain.UnexpectedTokenVerificationError, err)
	}
}

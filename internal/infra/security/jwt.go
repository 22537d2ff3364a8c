package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the token signature was valid but the token is past exp.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures, and claim mismatches.
	ErrTokenInvalid = errors.New("session token invalid")
)

// SessionClaims is the payload carried by every issued session token. The
// password-changed snapshot lets stateless verification detect accounts that
// rotated their credential after issuance.
type SessionClaims struct {
	Role            string  `json:"role"`
	TenantID        *string `json:"tenant,omitempty"`
	PasswordChanged bool    `json:"pwc"`
	AuthTime        int64   `json:"auth_time"`
	LastActivity    int64   `json:"last_activity"`
	jwt.RegisteredClaims
}

// SessionTokenCodec signs and verifies HMAC session tokens.
type SessionTokenCodec struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration

	now func() time.Time
}

// NewSessionTokenCodec constructs a codec. The secret must be non-empty.
func NewSessionTokenCodec(secret, issuer string, tokenTTL time.Duration) (*SessionTokenCodec, error) {
	if secret == "" {
		return nil, errors.New("session token secret must not be empty")
	}
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("session token ttl must be positive, got %s", tokenTTL)
	}

	return &SessionTokenCodec{
		secret:   []byte(secret),
		issuer:   issuer,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (c *SessionTokenCodec) WithClock(now func() time.Time) *SessionTokenCodec {
	c.now = now
	return c
}

// TokenTTL returns the lifetime applied to issued tokens.
func (c *SessionTokenCodec) TokenTTL() time.Duration {
	return c.tokenTTL
}

// Issue signs a fresh token for the account. AuthTime and LastActivity are both
// stamped with the current time.
func (c *SessionTokenCodec) Issue(account *domain.Account) (string, *SessionClaims, error) {
	now := c.now().UTC()
	claims := &SessionClaims{
		Role:            string(account.Role),
		TenantID:        account.TenantID,
		PasswordChanged: account.PasswordChanged,
		AuthTime:        now.Unix(),
		LastActivity:    now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	return signed, claims, nil
}

// Reissue signs a replacement token carrying the original auth_time and jti but
// a fresh last_activity stamp and the given password-changed snapshot.
func (c *SessionTokenCodec) Reissue(prev *SessionClaims, passwordChanged bool) (string, *SessionClaims, error) {
	now := c.now().UTC()
	claims := &SessionClaims{
		Role:            prev.Role,
		TenantID:        prev.TenantID,
		PasswordChanged: passwordChanged,
		AuthTime:        prev.AuthTime,
		LastActivity:    now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        prev.ID,
			Subject:   prev.Subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}

	return signed, claims, nil
}

// Verify parses and validates a signed token. Expired tokens return
// ErrTokenExpired; every other failure maps to ErrTokenInvalid.
func (c *SessionTokenCodec) Verify(signed string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(signed, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

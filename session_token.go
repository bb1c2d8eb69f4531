package crm

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionTokenService signs and validates SessionClaims as JWTs.
type SessionTokenService struct {
	signingKey            []byte
	tokenExpiration       int
	extendedTokenDuration int
	issuer                string
	audience              jwt.ClaimStrings
	logger                Logger
}

// NewSessionTokenService creates a new SessionTokenService instance.
// Expirations are hours; the extended duration applies to remember-me
// sessions.
func NewSessionTokenService(signingKey []byte, tokenExpiration, extendedTokenDuration int, issuer string, audience jwt.ClaimStrings, logger Logger) *SessionTokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &SessionTokenService{
		signingKey:            signingKey,
		tokenExpiration:       tokenExpiration,
		extendedTokenDuration: extendedTokenDuration,
		issuer:                issuer,
		audience:              audience,
		logger:                logger,
	}
}

// Generate creates a signed session token for the identity. Expiry is fixed
// at this moment and is not extended by later refreshes.
func (ts *SessionTokenService) Generate(identity Identity, rememberMe bool) (string, error) {
	return ts.SignClaims(ts.NewClaims(identity, rememberMe))
}

// NewClaims builds SessionClaims for an identity with the configured expiry
// window.
func (ts *SessionTokenService) NewClaims(identity Identity, rememberMe bool) *SessionClaims {
	now := time.Now()

	ttl := time.Duration(ts.tokenExpiration) * time.Hour
	if rememberMe && ts.extendedTokenDuration > 0 {
		ttl = time.Duration(ts.extendedTokenDuration) * time.Hour
	}

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:           identity.ID(),
		UserRole:      string(ParseRole(identity.Role())),
		RememberMe:    rememberMe,
		Authenticated: true,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// SignClaims signs session claims using the configured signing key.
func (ts *SessionTokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *SessionTokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, errors.Wrap(err, ErrSessionInvalid.Category, ErrSessionInvalid.Message).
			WithTextCode(ErrSessionInvalid.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("session token validate could not decode or validate claims")
	return nil, ErrSessionInvalid
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

package crm

import (
	"context"

	"github.com/goliatone/go-crm/middleware/sessionware"
)

// ValidationListener aliases the sessionware listener so consumers can use crm helpers directly.
type ValidationListener = sessionware.ValidationListener

// SessionValidatorAdapter exposes a SessionTokenService as the middleware's
// TokenValidator.
func SessionValidatorAdapter(tokens *SessionTokenService) sessionware.TokenValidator {
	return validatorAdapter{tokens: tokens}
}

type validatorAdapter struct {
	tokens *SessionTokenService
}

func (a validatorAdapter) Validate(tokenString string) (sessionware.SessionClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SessionRefresherAdapter exposes an Authority as the middleware's
// Refresher so every request re-reads the stored role.
func SessionRefresherAdapter(authority *Authority) sessionware.Refresher {
	return refresherAdapter{authority: authority}
}

type refresherAdapter struct {
	authority *Authority
}

func (a refresherAdapter) Refresh(ctx context.Context, claims sessionware.SessionClaims) (sessionware.SessionClaims, error) {
	sessionClaims, ok := claims.(*SessionClaims)
	if !ok {
		return AnonymousClaims(), nil
	}

	refreshed, err := a.authority.Refresh(ctx, sessionClaims)
	if err != nil {
		return nil, err
	}

	return refreshed, nil
}

// ContextEnricherAdapter stores claims in the standard context for
// downstream permission checks.
func ContextEnricherAdapter(c context.Context, claims sessionware.SessionClaims) context.Context {
	sessionClaims, ok := claims.(*SessionClaims)
	if !ok {
		return c
	}

	return WithClaimsContext(c, sessionClaims)
}

// RegisterValidationListeners appends listeners to a sessionware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *sessionware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

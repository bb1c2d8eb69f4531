package crm

import (
	"context"
	"reflect"
	"time"

	"github.com/goliatone/go-errors"
)

// Authority converts credential logins into signed session claims and
// re-authorizes those claims against the identity store on every refresh.
type Authority struct {
	provider     IdentityProvider
	signingKey   []byte
	issuer       string
	audience     []string
	logger       Logger
	tokens       *SessionTokenService
	activitySink ActivitySink
}

// NewAuthority returns a new Authority
func NewAuthority(provider IdentityProvider, opts Config) *Authority {
	tokens := NewSessionTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetExtendedTokenDuration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Authority{
		provider:     provider,
		signingKey:   []byte(opts.GetSigningKey()),
		audience:     opts.GetAudience(),
		issuer:       opts.GetIssuer(),
		logger:       defLogger{},
		tokens:       tokens,
		activitySink: noopActivitySink{},
	}
}

func (s *Authority) WithLogger(logger Logger) *Authority {
	if logger != nil {
		s.logger = logger
		s.tokens.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (s *Authority) WithActivitySink(sink ActivitySink) *Authority {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the SessionTokenService used by this Authority
func (s *Authority) TokenService() *SessionTokenService {
	return s.tokens
}

// Authorize verifies the credentials and returns a signed session token.
// The expiry window is fixed here: hours for a standard session, the
// extended window when rememberMe is set. Unknown identifiers and bad
// passwords produce the same generic error.
func (s *Authority) Authorize(ctx context.Context, identifier, password string, rememberMe bool) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Authorize verify identity error", "error", err)
		s.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Authorize identity is nil or zero value")
		s.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrInvalidCredentials.Error(),
		})
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(identity, rememberMe)
	if err != nil {
		s.emitEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	s.emitEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier":  identifier,
		"remember_me": rememberMe,
	})

	return token, nil
}

// Refresh re-fetches the identity's current role from the store and returns
// updated claims. The role embedded in the prior claims is never trusted.
// Expiry is carried over unchanged, refreshing does not extend a session.
// When the identity no longer exists, the claims are downgraded to the
// anonymous state instead of erroring; callers must check IsAuthenticated.
func (s *Authority) Refresh(ctx context.Context, claims *SessionClaims) (*SessionClaims, error) {
	if claims == nil || !claims.IsAuthenticated() {
		return AnonymousClaims(), nil
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, claims.UserID())
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("Refresh downgrading session, identity gone", "uid", claims.UserID())
			s.emitEvent(ctx, ActivityEventSessionDowngraded, ActorRef{Type: "system"}, claims.UserID(), map[string]any{
				"reason": "identity_not_found",
			})
			return AnonymousClaims(), nil
		}
		s.logger.Error("Refresh find identity error", "error", err)
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to refresh session claims")
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		return AnonymousClaims(), nil
	}

	refreshed := *claims
	refreshed.UserRole = string(ParseRole(identity.Role()))
	refreshed.Authenticated = true

	return &refreshed, nil
}

// ClaimsFromToken parses and validates a raw session token.
func (s *Authority) ClaimsFromToken(raw string) (*SessionClaims, error) {
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		s.logger.Error("ClaimsFromToken validation failed", "error", err)
		return nil, err
	}
	return claims, nil
}

func (s *Authority) emitEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Authority) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

var _ Authenticator = (*Authority)(nil)

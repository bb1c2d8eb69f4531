package crm

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidCredentials    = "invalid_credentials"
	TextCodeAccountUnverified     = "account_unverified"
	TextCodeTokenInvalidOrExpired = "token_invalid_or_expired"
	TextCodeTooManyAttempts       = "too_many_login_attempts"
	TextCodeSessionInvalid        = "session_invalid"
	TextCodeDeliveryFailed        = "delivery_failed"
)

// ErrInvalidCredentials is returned for unknown identifiers and wrong
// passwords alike; the two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountUnverified is returned when the account exists but has not
// completed email verification.
var ErrAccountUnverified = errors.New("account is not verified", errors.CategoryAuth).
	WithTextCode(TextCodeAccountUnverified).
	WithCode(errors.CodeForbidden)

// ErrInvalidOrExpiredToken covers both a missing and an expired single use
// token so callers cannot tell which check failed.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalidOrExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned once an account exceeds the login
// attempt budget inside the cooldown window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeForbidden)

// ErrSessionInvalid is returned when a session token cannot be decoded or
// fails signature validation.
var ErrSessionInvalid = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired is returned for structurally valid session tokens whose
// expiry has passed.
var ErrSessionExpired = errors.New("session has expired", errors.CategoryAuth).
	WithTextCode("session_expired").
	WithCode(errors.CodeUnauthorized)

// ErrDeliveryFailed is returned when the mail collaborator reports a send
// failure. Surfaced to the caller, never silently retried.
var ErrDeliveryFailed = errors.New("failed to deliver notification", errors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(errors.CodeInternal)

// ErrIdentityNotFound is the error we return for non found identities.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrUnavailable hides unexpected persistence failures behind a generic
// message. The detailed cause is logged server-side only.
var ErrUnavailable = errors.New("service temporarily unavailable", errors.CategoryInternal).
	WithCode(errors.CodeInternal)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

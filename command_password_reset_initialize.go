package crm

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ResetTokenTTL is how long a password reset secret stays valid.
var ResetTokenTTL = time.Hour

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// Delivered is only meaningful server-side; HTTP responses stay opaque
	// regardless of whether the identifier matched an account.
	Delivered bool
	Success   bool
}

// InitializePasswordResetHandler mints a reset secret for an identifier.
// The user row keeps only the digest; issuing a new secret overwrites the
// previous one so at most one reset token is live per identity.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	tokens TokenService
	mailer Mailer
	logger Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		tokens: NewTokenService(),
		mailer: mailer,
		logger: defLogger{},
	}
}

// WithTokenService overrides the token service, mainly for tests.
func (h *InitializePasswordResetHandler) WithTokenService(tokens TokenService) *InitializePasswordResetHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// opaque success, never reveal whether the identifier exists
			resp.Success = true
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	issued, err := h.tokens.Issue(ResetTokenTTL)
	if err != nil {
		return err
	}

	if err := h.repo.Users().SetResetToken(ctx, user.ID, issued.Hash, issued.ExpiresAt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	if err := h.mailer.Send(ctx, MailMessage{
		To:      user.Email,
		Subject: "Reset your password",
		Text:    "Use this link to reset your password: /password-reset/" + issued.Raw,
	}); err != nil {
		h.logger.Error("password reset mail failed", "error", err)
		return wrapDeliveryError(err)
	}

	resp.Success = true
	resp.Delivered = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

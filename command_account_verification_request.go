package crm

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestVerificationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *RequestVerificationResponse)
}

func (e RequestVerificationMessage) Type() string { return "user.verification_request" }

type RequestVerificationResponse struct {
	// Delivered is only meaningful server-side; HTTP responses stay opaque
	// regardless so the endpoint cannot be used to probe for accounts.
	Delivered bool
	Success   bool
}

// RequestVerificationHandler issues a fresh verification secret for an
// identifier. Unknown and already verified identifiers resolve to the same
// opaque success as the happy path.
type RequestVerificationHandler struct {
	repo   RepositoryManager
	tokens TokenService
	mailer Mailer
	logger Logger
}

// NewRequestVerificationHandler creates a handler with sane defaults.
func NewRequestVerificationHandler(repo RepositoryManager, mailer Mailer) *RequestVerificationHandler {
	return &RequestVerificationHandler{
		repo:   repo,
		tokens: NewTokenService(),
		mailer: mailer,
		logger: defLogger{},
	}
}

// WithTokenService overrides the token service, mainly for tests.
func (h *RequestVerificationHandler) WithTokenService(tokens TokenService) *RequestVerificationHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestVerificationHandler) WithLogger(logger Logger) *RequestVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestVerificationHandler) Execute(ctx context.Context, event RequestVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestVerificationHandler) execute(ctx context.Context, event RequestVerificationMessage) error {
	resp := &RequestVerificationResponse{}

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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification request")
	}

	if user.IsVerified() {
		resp.Success = true
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	issued, err := h.tokens.Issue(VerificationTokenTTL)
	if err != nil {
		return err
	}

	// delete-then-create: issuing a new token invalidates the previous one
	// for this identifier. The sequence is not atomic; two concurrent
	// issuance requests can briefly leave two live tokens.
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.VerificationTokens().DeleteByIdentifierTx(ctx, tx, user.Email); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate previous verification tokens")
		}

		record := &VerificationToken{
			Identifier: user.Email,
			TokenHash:  issued.Hash,
			ExpiresAt:  issued.ExpiresAt,
		}

		if _, err := h.repo.VerificationTokens().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue verification token")
	}

	if err := h.mailer.Send(ctx, verificationMail(user.Email, issued.Raw)); err != nil {
		h.logger.Error("verification mail failed", "error", err)
		return wrapDeliveryError(err)
	}

	resp.Success = true
	resp.Delivered = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

package crm

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type VerifyAccountMessage struct {
	Token string `json:"token" doc:"Raw verification secret from the email link."`
	// Email is an optional consistency check. It never drives the lookup;
	// a mismatch yields the same error as a missing token.
	Email string `json:"email"`
}

func (e VerifyAccountMessage) Type() string { return "user.account_verify" }

// VerifyAccountHandler consumes an email verification secret. The lookup
// keys on the token digest alone; expired or unknown tokens produce one
// indistinguishable error, and expired records are removed on detection.
type VerifyAccountHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewVerifyAccountHandler creates a handler with sane defaults.
func NewVerifyAccountHandler(repo RepositoryManager) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:     repo,
		tokens:   NewTokenService(),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithTokenService overrides the token service, mainly for tests.
func (h *VerifyAccountHandler) WithTokenService(tokens TokenService) *VerifyAccountHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record, err := h.repo.VerificationTokens().GetByHash(ctx, HashToken(event.Token))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidOrExpiredToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve verification token")
	}

	// secondary consistency check only, after the hash lookup succeeded
	if event.Email != "" && event.Email != record.Identifier {
		return ErrInvalidOrExpiredToken
	}

	if !h.tokens.Verify(event.Token, record.TokenHash, record.ExpiresAt) {
		// single use: an expired token is deleted as soon as it is detected
		if err := h.repo.VerificationTokens().DeleteByID(ctx, record.ID); err != nil {
			h.logger.Warn("failed to delete expired verification token", "error", err)
		}
		return ErrInvalidOrExpiredToken
	}

	var user *User

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, record.Identifier)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrInvalidOrExpiredToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
		}

		if err := h.repo.Users().MarkVerifiedTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}

		if err := h.repo.VerificationTokens().DeleteByIDTx(ctx, tx, record.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify account")
	}

	h.recordActivity(ctx, user)

	return nil
}

func (h *VerifyAccountHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventAccountVerified,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		Summary:    "account email verified",
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during account verification: %v", err)
	}
}

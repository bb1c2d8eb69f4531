package crm

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// VerificationTokenTTL is how long an email verification secret stays
// valid.
var VerificationTokenTTL = 24 * time.Hour

type SignupMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "user.signup" }

type SignupResponse struct {
	User    *User
	Created bool
}

// SignupHandler creates an unverified account and sends the verification
// secret. A duplicate email is treated as "already exists" and reported as
// success so a double submit cannot crash the request or reveal account
// existence.
type SignupHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewSignupHandler creates a handler with sane defaults.
func NewSignupHandler(repo RepositoryManager, mailer Mailer) *SignupHandler {
	return &SignupHandler{
		repo:     repo,
		tokens:   NewTokenService(),
		mailer:   mailer,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit signup events.
func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithTokenService overrides the token service, mainly for tests.
func (h *SignupHandler) WithTokenService(tokens TokenService) *SignupHandler {
	if tokens != nil {
		h.tokens = tokens
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	user := &User{}
	resp := &SignupResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	issued, err := h.tokens.Issue(VerificationTokenTTL)
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the existence check runs before the insert; engines like Postgres
		// abort the transaction on a unique violation, so recovering the
		// duplicate after a failed insert is not an option
		existing, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.Email)
		if err == nil {
			// the account already exists; recover it as an idempotent success
			resp.User = existing
			resp.Created = false
			return nil
		}
		if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Phone = event.Phone
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Role = RoleEngineer
		user.Username = getUsername(event.Username, event.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		created, err := h.repo.Users().CreateTx(ctx, tx, user)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
				// lost a race with a concurrent signup for the same email
				return goerrors.Wrap(err, goerrors.CategoryConflict, "account already exists")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		resp.User = created
		resp.Created = true

		if err := h.repo.VerificationTokens().DeleteByIdentifierTx(ctx, tx, created.Email); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate previous verification tokens")
		}

		record := &VerificationToken{
			Identifier: created.Email,
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	if resp.Created {
		h.emitSignupEvent(ctx, resp.User)

		if err := h.mailer.Send(ctx, verificationMail(resp.User.Email, issued.Raw)); err != nil {
			h.logger.Error("signup verification mail failed", "error", err)
			return wrapDeliveryError(err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *SignupHandler) emitSignupEvent(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventSignup,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:  user.ID.String(),
		Summary: "new account created",
		Metadata: map[string]any{
			"email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during signup: %v", err)
	}
}

func verificationMail(email, rawToken string) MailMessage {
	return MailMessage{
		To:      email,
		Subject: "Verify your account",
		Text:    "Use this link to verify your account: /verify/" + rawToken,
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

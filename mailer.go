package crm

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
)

// MailMessage is the payload handed to the mail collaborator.
type MailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers notifications. The core treats delivery as
// fire-and-forget but send failures are surfaced to the caller as a
// delivery error rather than swallowed.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg MailMessage) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, msg MailMessage) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// StdoutMailer prints notifications instead of delivering them. Useful for
// local development and examples.
type StdoutMailer struct{}

// Send implements Mailer.
func (StdoutMailer) Send(_ context.Context, msg MailMessage) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", msg.To)
	fmt.Printf("subject: %s\n", msg.Subject)
	fmt.Printf("body: %s\n", msg.Text)
	return nil
}

func wrapDeliveryError(err error) error {
	return errors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
		WithTextCode(ErrDeliveryFailed.TextCode)
}

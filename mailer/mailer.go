// Package mailer sends transactional email. Delivery goes through the
// ZeptoMail HTTP API; the Mailer interface exists so the donation paths can
// run with a fake in tests and skip email entirely when mail is not
// configured.
package mailer

import "context"

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

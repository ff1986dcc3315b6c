package port

import "context"

// Mailer delivers a rendered named template to a single recipient.
// Implementations report transport failures to the caller and never retry.
type Mailer interface {
	Send(ctx context.Context, to, template string, vars map[string]string) error
}

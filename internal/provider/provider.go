// Package provider defines the interface for mail clients that records
// are dispatched through.
package provider

import (
	"context"
	"errors"

	"github.com/shineum/mailbatch/internal/email"
)

// ErrUnavailable marks a failure to reach the mail client or to have it
// accept a message.
var ErrUnavailable = errors.New("mail client unavailable")

// Provider is the interface that mail clients must implement.
type Provider interface {
	// Send creates an outgoing message from msg, sets its recipient, cc,
	// subject and body, and submits it. It blocks until the client has
	// accepted or rejected the message.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}

// Package resend implements a Provider that sends mail through the Resend
// HTTP API.
package resend

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// Config holds Resend credentials and the sender address.
type Config struct {
	APIKey string
	Sender string
}

// EmailsAPI is the subset of the Resend emails service used by Provider.
type EmailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Provider sends each record as one Resend email.
type Provider struct {
	sender string
	emails EmailsAPI
}

// New creates a Provider.
func New(cfg Config) *Provider {
	return NewWithClient(cfg.Sender, resend.NewClient(cfg.APIKey).Emails)
}

// NewWithClient creates a Provider with a custom emails service, used for
// testing.
func NewWithClient(sender string, emails EmailsAPI) *Provider {
	return &Provider{
		sender: sender,
		emails: emails,
	}
}

// Send delivers msg as a plain-text email.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	att, err := email.LoadAttachment(msg)
	if err != nil {
		return err
	}

	req := &resend.SendEmailRequest{
		From:    p.sender,
		To:      email.SplitAddresses(msg.To),
		Cc:      email.SplitAddresses(msg.Cc),
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if att != nil {
		req.Attachments = []*resend.Attachment{{
			Filename:    att.Filename,
			Content:     att.Content,
			ContentType: att.ContentType,
		}}
	}

	if _, err := p.emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("%w: resend: %v", provider.ErrUnavailable, err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "resend"
}

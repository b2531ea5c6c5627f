// Package smtp implements a Provider that relays mail through an SMTP
// server.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// Config contains SMTP connection parameters.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS requires STARTTLS. A server that does not offer it is an error;
	// nothing is sent in plaintext.
	TLS bool
}

// deliverFunc hands a rendered message to the server at addr.
type deliverFunc func(ctx context.Context, addr string, from string, rcpts []string, msg []byte) error

// Provider sends each record as one SMTP transaction.
type Provider struct {
	mx      sync.Mutex
	cfg     Config
	deliver deliverFunc
	now     func() time.Time
}

// New creates a Provider.
func New(cfg Config) *Provider {
	p := &Provider{cfg: cfg, now: time.Now}
	p.deliver = p.transact
	return p
}

// Send renders msg and delivers it to every To and Cc address.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	p.mx.Lock()
	defer p.mx.Unlock()

	if p.cfg.From == "" {
		return errors.New("no from address configured")
	}

	rcpts := append(email.SplitAddresses(msg.To), email.SplitAddresses(msg.Cc)...)
	if len(rcpts) == 0 {
		return errors.New("no recipients specified")
	}

	att, err := email.LoadAttachment(msg)
	if err != nil {
		return err
	}

	raw, err := email.BuildMIME(p.cfg.From, msg, att, p.now())
	if err != nil {
		return errors.Wrap(err, "failed to build message")
	}

	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	if err := p.deliver(ctx, addr, p.cfg.From, rcpts, raw); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// transact runs one SMTP session: STARTTLS, AUTH, MAIL, RCPT, DATA.
func (p *Provider) transact(ctx context.Context, addr string, from string, rcpts []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to connect to SMTP server")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to start SMTP session")
	}
	defer client.Close()

	if p.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return errors.Errorf("server %s does not offer STARTTLS", addr)
		}
		if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
			return errors.Wrap(err, "failed to start TLS")
		}
	}

	if p.cfg.Username != "" {
		auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return errors.Wrap(err, "failed to authenticate")
		}
	}

	if err := client.Mail(from); err != nil {
		return errors.Wrap(err, "failed to set sender")
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "failed to set recipient: %s", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "failed to get data writer")
	}
	if _, err := w.Write(msg); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to finish message")
	}

	return client.Quit()
}

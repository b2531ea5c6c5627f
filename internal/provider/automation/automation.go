// Package automation implements a Provider that drives a locally installed
// desktop mail client through its scripting interface.
//
// Every Send starts the client's scripting host once, hands it the message
// as JSON on standard input and runs an embedded script that creates an
// outgoing item, sets its fields and sends it.
package automation

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/executor"
	"github.com/shineum/mailbatch/internal/provider"
)

// Supported mail clients.
const (
	ClientOutlook = "outlook"
	ClientMail    = "mail"
)

//go:embed scripts/outlook.ps1
var outlookScript string

//go:embed scripts/mail.js
var mailScript string

// Config holds the configuration for creating a Provider.
type Config struct {
	// Client selects the mail application. Empty means DefaultClient().
	Client string
	// Command overrides the scripting host executable.
	Command string
}

// Runner executes the scripting host. *executor.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// Provider sends each message through the desktop mail client.
type Provider struct {
	client string
	runner Runner
}

// payload is the message document the embedded scripts read from stdin.
type payload struct {
	To         string `json:"to"`
	Cc         string `json:"cc"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

// DefaultClient returns the mail client native to the running OS, or ""
// when there is none.
func DefaultClient() string {
	switch runtime.GOOS {
	case "windows":
		return ClientOutlook
	case "darwin":
		return ClientMail
	default:
		return ""
	}
}

// DefaultCommand returns the scripting host for client.
func DefaultCommand(client string) string {
	switch client {
	case ClientOutlook:
		return "powershell"
	case ClientMail:
		return "osascript"
	default:
		return ""
	}
}

// New creates a Provider and checks that the scripting host is installed.
func New(cfg Config) (*Provider, error) {
	client := cfg.Client
	if client == "" {
		client = DefaultClient()
	}
	if client != ClientOutlook && client != ClientMail {
		return nil, fmt.Errorf("unsupported automation client %q", client)
	}

	command := cfg.Command
	if command == "" {
		command = DefaultCommand(client)
	}

	ex := executor.New(executor.Config{Command: command})
	if err := ex.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	slog.Debug("scripting host found", "client", client, "command", ex.Command())

	return NewWithRunner(client, ex), nil
}

// NewWithRunner creates a Provider with a custom runner, used for testing.
func NewWithRunner(client string, runner Runner) *Provider {
	return &Provider{
		client: client,
		runner: runner,
	}
}

// Send hands msg to the mail client and waits for the script to finish.
// Fields are passed through unchanged.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	doc := payload{
		To:      msg.To,
		Cc:      msg.Cc,
		Subject: msg.Subject,
		Body:    msg.Body,
	}
	if msg.Attachment != "" {
		abs, err := filepath.Abs(msg.Attachment)
		if err != nil {
			return fmt.Errorf("failed to resolve attachment path: %w", err)
		}
		doc.Attachment = abs
	}

	stdin, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	out, err := p.runner.Execute(ctx, stdin, p.args()...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", provider.ErrUnavailable, p.client, err)
	}

	if len(out) > 0 {
		slog.Debug("automation script output", "client", p.client, "output", string(out))
	}

	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "automation/" + p.client
}

// Close releases the runner when it holds resources. Sends after Close fail.
func (p *Provider) Close() error {
	if c, ok := p.runner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// args builds the scripting host arguments for the configured client.
func (p *Provider) args() []string {
	if p.client == ClientMail {
		return []string{"-l", "JavaScript", "-e", mailScript}
	}
	return []string{
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-Command", outlookScript,
	}
}

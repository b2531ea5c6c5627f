// Package stdout implements a Provider that prints messages instead of
// sending them.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mailbatch/internal/email"
)

const separator = "========================================\n"

// Provider writes each message to an io.Writer in a readable format.
type Provider struct {
	writer io.Writer
}

// New creates a Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a Provider that writes to w.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints msg. Only a failed write is reported as an error.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	if msg.Cc != "" {
		fmt.Fprintf(&b, "Cc: %s\n", msg.Cc)
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")
	b.WriteString(msg.Body + "\n")

	if msg.Attachment != "" {
		size := "missing"
		if info, err := os.Stat(msg.Attachment); err == nil {
			size = formatSize(info.Size())
		}
		fmt.Fprintf(&b, "Attachment: %s (%s)\n", msg.Attachment, size)
	}

	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

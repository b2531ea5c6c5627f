// Package email defines the mail record sent by every provider.
package email

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Email is one outgoing message as read from the input file.
// Address fields are kept exactly as written; a provider that needs
// individual addresses splits them with SplitAddresses.
type Email struct {
	To         string `json:"to"`
	Cc         string `json:"cc"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SplitAddresses splits an address field on ';' and ',' and drops empty
// entries. An empty field yields nil.
func SplitAddresses(field string) []string {
	parts := strings.FieldsFunc(field, func(r rune) bool {
		return r == ';' || r == ','
	})

	var addrs []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

// LoadAttachment reads the file referenced by msg.Attachment.
// It returns nil when the message has no attachment.
func LoadAttachment(msg *Email) (*Attachment, error) {
	if msg.Attachment == "" {
		return nil, nil
	}

	content, err := os.ReadFile(msg.Attachment)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(msg.Attachment))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Attachment{
		Filename:    filepath.Base(msg.Attachment),
		ContentType: contentType,
		Content:     content,
	}, nil
}

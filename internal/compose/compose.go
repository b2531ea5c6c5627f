package compose

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shineum/mailbatch/internal/email"
)

// hiddenPassword replaces {password} in the copy sent to the cc address.
const hiddenPassword = "[hidden]"

// Options adjust how records are built.
type Options struct {
	// Attachment is copied to every record.
	Attachment string
	// HidePasswordFromCC sends the cc address its own copy with the
	// password masked instead of copying it on the user's message.
	HidePasswordFromCC bool
}

// Build renders tmpl for every user in order.
func Build(tmpl *Template, users []User, opts Options) ([]email.Email, error) {
	records := make([]email.Email, 0, len(users))

	for i, u := range users {
		username, err := Username(u.Email)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
		fullname := Fullname(u.Email)

		render := func(s, password string) string {
			return strings.NewReplacer(
				"{username}", username,
				"{fullname}", fullname,
				"{password}", password,
				"{var1}", u.Var1,
				"{var2}", u.Var2,
				"{var3}", u.Var3,
			).Replace(s)
		}

		subject := render(tmpl.Subject, u.Password)
		body := render(tmpl.Body, u.Password)

		if opts.HidePasswordFromCC && tmpl.Cc != "" {
			records = append(records,
				email.Email{
					To:         u.Email,
					Subject:    subject,
					Body:       body,
					Attachment: opts.Attachment,
				},
				email.Email{
					To:         tmpl.Cc,
					Subject:    render(tmpl.Subject, hiddenPassword),
					Body:       render(tmpl.Body, hiddenPassword),
					Attachment: opts.Attachment,
				},
			)
			continue
		}

		records = append(records, email.Email{
			To:         u.Email,
			Cc:         tmpl.Cc,
			Subject:    subject,
			Body:       body,
			Attachment: opts.Attachment,
		})
	}

	return records, nil
}

// Write encodes records as the JSON array read by the loader.
func Write(w io.Writer, records []email.Email) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

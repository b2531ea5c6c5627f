// Package loader reads mail records from a JSON file.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/shineum/mailbatch/internal/email"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrMalformed is returned when the input is not a JSON array of
	// records or a record lacks a required key.
	ErrMalformed = errors.New("malformed input")
)

// requiredKeys are the keys every record must carry, in the order they
// are reported when missing.
var requiredKeys = []string{"to", "cc", "subject", "body"}

// Load opens path and decodes its records in file order.
func Load(path string) ([]email.Email, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a JSON array of mail records from r. Every record is
// checked before any is returned.
func Decode(r io.Reader) ([]email.Email, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of records", ErrMalformed)
	}

	records := make([]email.Email, 0, len(items))
	for i, raw := range items {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// decodeRecord converts one JSON object into an Email.
func decodeRecord(raw json.RawMessage) (email.Email, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return email.Email{}, errors.New("expected a JSON object")
	}

	values := make(map[string]string, len(requiredKeys))
	for _, key := range requiredKeys {
		v, ok := fields[key]
		if !ok {
			return email.Email{}, fmt.Errorf("missing required key %q", key)
		}
		s, err := stringValue(v)
		if err != nil {
			return email.Email{}, fmt.Errorf("key %q: %v", key, err)
		}
		values[key] = s
	}

	rec := email.Email{
		To:      values["to"],
		Cc:      values["cc"],
		Subject: values["subject"],
		Body:    values["body"],
	}

	if v, ok := fields["attachment"]; ok {
		s, err := stringValue(v)
		if err != nil {
			return email.Email{}, fmt.Errorf("key %q: %v", "attachment", err)
		}
		rec.Attachment = s
	}

	return rec, nil
}

// stringValue decodes a JSON string, rejecting null and other types.
func stringValue(v json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", errors.New("must be a string, got null")
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", errors.New("must be a string")
	}
	return s, nil
}

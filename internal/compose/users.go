package compose

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// User is one row of the user list.
type User struct {
	Email    string
	Password string
	Var1     string
	Var2     string
	Var3     string
}

// LoadUsers reads a CSV user list. The header row must name the email
// and password columns; var1, var2 and var3 are optional.
func LoadUsers(path string) ([]User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user list: %w", err)
	}
	defer f.Close()

	return ReadUsers(f)
}

// ReadUsers parses a CSV user list from r.
func ReadUsers(r io.Reader) ([]User, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("user list is empty")
		}
		return nil, fmt.Errorf("failed to read user list header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"email", "password"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("user list is missing the %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var users []User
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read user list: %w", err)
		}
		users = append(users, User{
			Email:    strings.TrimSpace(field(row, "email")),
			Password: field(row, "password"),
			Var1:     field(row, "var1"),
			Var2:     field(row, "var2"),
			Var3:     field(row, "var3"),
		})
	}

	return users, nil
}

package compose

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// localPart returns the lowercased part of addr before '@'.
func localPart(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	return strings.ToLower(strings.TrimSpace(local))
}

// Username derives an account name from an address: the first letter of
// the first dotted segment followed by the remaining segments longer than
// one character. Segments containing "contractor" are skipped, hyphens
// are removed and a "ki" segment becomes "k".
//
//	john.doe@example.com          -> jdoe
//	mary.smith-jones@example.com  -> msmithjones
func Username(addr string) (string, error) {
	segments := strings.Split(localPart(addr), ".")
	first := segments[0]
	if first == "" {
		return "", fmt.Errorf("cannot derive username from %q", addr)
	}

	initial, _ := utf8.DecodeRuneInString(first)

	var b strings.Builder
	b.WriteRune(initial)
	for _, s := range segments[1:] {
		if utf8.RuneCountInString(s) <= 1 || strings.Contains(s, "contractor") {
			continue
		}
		s = strings.ReplaceAll(s, "-", "")
		if s == "ki" {
			s = "k"
		}
		b.WriteString(s)
	}

	return b.String(), nil
}

// Fullname derives a display name from an address by capitalizing each
// dotted segment of the local part.
//
//	john.doe.contractor@example.com -> John Doe
func Fullname(addr string) string {
	local := strings.ReplaceAll(localPart(addr), "contractor", "")

	var words []string
	for _, s := range strings.Split(local, ".") {
		if s == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(s)
		words = append(words, string(unicode.ToUpper(r))+s[size:])
	}
	return strings.Join(words, " ")
}

package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// BuildMIME renders msg as an RFC 5322 message from sender. Without an
// attachment the body is a single text/plain part; with one the message
// is multipart/mixed. Every address must parse as an RFC 5322 address.
func BuildMIME(sender string, msg *Email, att *Attachment, date time.Time) ([]byte, error) {
	from, err := formatAddresses([]string{sender})
	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	to, err := formatAddresses(SplitAddresses(msg.To))
	if err != nil {
		return nil, fmt.Errorf("invalid to: %w", err)
	}
	cc, err := formatAddresses(SplitAddresses(msg.Cc))
	if err != nil {
		return nil, fmt.Errorf("invalid cc: %w", err)
	}

	body, err := encodeQuotedPrintable(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	if to != "" {
		fmt.Fprintf(&buf, "To: %s\r\n", to)
	}
	if cc != "" {
		fmt.Fprintf(&buf, "Cc: %s\r\n", cc)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if att == nil {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		buf.Write(body)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := make(textproto.MIMEHeader)
	bodyHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	bodyHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}

	attHeader := make(textproto.MIMEHeader)
	attHeader.Set("Content-Type", att.ContentType)
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", mime.QEncoding.Encode("UTF-8", att.Filename)))

	part, err = writer.CreatePart(attHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := part.Write([]byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
		return nil, fmt.Errorf("failed to write attachment part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), nil
}

// formatAddresses parses each address and joins them for a header line.
// Parsing rejects anything that is not a single address, including
// embedded line breaks.
func formatAddresses(addrs []string) (string, error) {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if strings.ContainsAny(a, "\r\n") {
			return "", fmt.Errorf("address %q contains a line break", a)
		}
		parsed, err := mail.ParseAddress(a)
		if err != nil {
			return "", fmt.Errorf("address %q: %w", a, err)
		}
		if parsed.Name == "" {
			out = append(out, parsed.Address)
		} else {
			out = append(out, parsed.String())
		}
	}
	return strings.Join(out, ", "), nil
}

// encodeQuotedPrintable encodes body with CRLF line endings, wrapped at 76
// characters.
func encodeQuotedPrintable(body string) ([]byte, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")

	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeBase64WithLineBreaks encodes data as base64 wrapped at 76
// characters per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

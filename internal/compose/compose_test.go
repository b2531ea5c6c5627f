package compose

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/loader"
)

var welcome = &Template{
	Cc:      "",
	Subject: "Welcome {fullname}",
	Body:    "Login: {username}\nPassword: {password}\nRoom: {var1}",
}

func TestBuild_OneRecordPerUser(t *testing.T) {
	t.Parallel()

	users := []User{
		{Email: "john.doe@example.com", Password: "s3cret", Var1: "B12"},
		{Email: "jane.roe@example.com", Password: "hunter2"},
	}

	records, err := Build(welcome, users, Options{Attachment: "guide.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count: got %d, want 2", len(records))
	}

	want := email.Email{
		To:         "john.doe@example.com",
		Subject:    "Welcome John Doe",
		Body:       "Login: jdoe\nPassword: s3cret\nRoom: B12",
		Attachment: "guide.pdf",
	}
	if records[0] != want {
		t.Errorf("records[0]: got %+v, want %+v", records[0], want)
	}
	if records[1].To != "jane.roe@example.com" || !strings.Contains(records[1].Body, "hunter2") {
		t.Errorf("records[1]: got %+v", records[1])
	}
	if !strings.HasSuffix(records[1].Body, "Room: ") {
		t.Errorf("missing var should render empty, got %q", records[1].Body)
	}
}

func TestBuild_CcCopiedWhenNotHiding(t *testing.T) {
	t.Parallel()

	tmpl := &Template{Cc: "it@example.com", Subject: "s", Body: "{password}"}

	records, err := Build(tmpl, []User{{Email: "john.doe@example.com", Password: "pw"}}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count: got %d, want 1", len(records))
	}
	if records[0].Cc != "it@example.com" {
		t.Errorf("Cc: got %q, want %q", records[0].Cc, "it@example.com")
	}
	if records[0].Body != "pw" {
		t.Errorf("Body: got %q, want %q", records[0].Body, "pw")
	}
}

func TestBuild_HidePasswordFromCC(t *testing.T) {
	t.Parallel()

	tmpl := &Template{Cc: "it@example.com", Subject: "Account {username} {password}", Body: "Password: {password}"}

	records, err := Build(tmpl, []User{{Email: "john.doe@example.com", Password: "pw"}}, Options{HidePasswordFromCC: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count: got %d, want 2", len(records))
	}

	user, cc := records[0], records[1]
	if user.To != "john.doe@example.com" || user.Cc != "" {
		t.Errorf("user copy addressing: got to=%q cc=%q", user.To, user.Cc)
	}
	if user.Body != "Password: pw" {
		t.Errorf("user copy body: got %q", user.Body)
	}
	if cc.To != "it@example.com" || cc.Cc != "" {
		t.Errorf("cc copy addressing: got to=%q cc=%q", cc.To, cc.Cc)
	}
	if cc.Body != "Password: [hidden]" {
		t.Errorf("cc copy body: got %q", cc.Body)
	}
	if strings.Contains(cc.Subject, "pw") {
		t.Errorf("cc copy subject leaks the password: %q", cc.Subject)
	}
}

func TestBuild_HidePasswordWithoutCc(t *testing.T) {
	t.Parallel()

	records, err := Build(welcome, []User{{Email: "john.doe@example.com"}}, Options{HidePasswordFromCC: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("record count: got %d, want 1", len(records))
	}
}

func TestBuild_InvalidEmail(t *testing.T) {
	t.Parallel()

	_, err := Build(welcome, []User{{Email: "john.doe@example.com"}, {Email: ""}}, Options{})
	if err == nil || !strings.Contains(err.Error(), "user 1") {
		t.Fatalf("expected error naming user 1, got %v", err)
	}
}

func TestWrite_ReadableByLoader(t *testing.T) {
	t.Parallel()

	in := []email.Email{
		{To: "a@x.com", Cc: "", Subject: "Hi <there>", Body: "Hello & bye"},
		{To: "b@x.com", Cc: "c@x.com", Subject: "s", Body: "b", Attachment: "/tmp/a.pdf"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Hi <there>") {
		t.Errorf("HTML characters should not be escaped:\n%s", buf.String())
	}

	out, err := loader.Decode(&buf)
	if err != nil {
		t.Fatalf("loader rejected composed output: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("record count: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("record %d: got %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestReadUsers(t *testing.T) {
	t.Parallel()

	users, err := ReadUsers(strings.NewReader("email,password,var1\njohn.doe@example.com,pw1,B12\njane.roe@example.com,pw2,\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("user count: got %d, want 2", len(users))
	}
	if users[0] != (User{Email: "john.doe@example.com", Password: "pw1", Var1: "B12"}) {
		t.Errorf("users[0]: got %+v", users[0])
	}
	if users[1].Var2 != "" || users[1].Var3 != "" {
		t.Errorf("absent columns should be empty, got %+v", users[1])
	}
}

func TestReadUsers_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "missing password column", input: "email,var1\na@x.com,1\n"},
		{name: "ragged row", input: "email,password\na@x.com,pw,extra\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ReadUsers(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTemplate_SaveAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "welcome.yaml")
	if err := SaveTemplate(path, welcome); err != nil {
		t.Fatalf("save error: %v", err)
	}

	got, err := LoadTemplate(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if *got != *welcome {
		t.Errorf("template: got %+v, want %+v", got, welcome)
	}
}

func TestLoadTemplate_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := LoadTemplate(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing template")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("subject: [unclosed"), 0o600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	if _, err := LoadTemplate(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

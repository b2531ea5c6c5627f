package smtp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// fakeServer accepts one SMTP session and records the envelope and data.
type fakeServer struct {
	ln    net.Listener
	mu    sync.Mutex
	from  string
	rcpts []string
	data  string
	done  chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &fakeServer{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { ln.Close() })

	go s.serve()
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			s.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 OK queued")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := New(Config{}).Name(); got != "smtp" {
		t.Errorf("Name(): got %q, want %q", got, "smtp")
	}
}

func TestSend_DeliversToServer(t *testing.T) {
	t.Parallel()

	server := newFakeServer(t)
	p := New(Config{Host: "127.0.0.1", Port: server.port(), From: "sender@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Send(ctx, &email.Email{
		To:      "a@x.com",
		Cc:      "c@x.com",
		Subject: "Hi",
		Body:    "Hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	<-server.done

	server.mu.Lock()
	defer server.mu.Unlock()

	if server.from != "sender@example.com" {
		t.Errorf("MAIL FROM: got %q, want %q", server.from, "sender@example.com")
	}
	if strings.Join(server.rcpts, ",") != "a@x.com,c@x.com" {
		t.Errorf("RCPT TO: got %v, want [a@x.com c@x.com]", server.rcpts)
	}
	for _, want := range []string{"To: a@x.com", "Cc: c@x.com", "Subject: Hi", "Hello"} {
		if !strings.Contains(server.data, want) {
			t.Errorf("DATA missing %q", want)
		}
	}
}

func TestSend_UsesDeliverFunc(t *testing.T) {
	t.Parallel()

	var gotAddr string
	var gotRcpts []string
	p := New(Config{Host: "mail.example.com", Port: 587, From: "sender@example.com"})
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	p.deliver = func(_ context.Context, addr, _ string, rcpts []string, msg []byte) error {
		gotAddr = addr
		gotRcpts = rcpts
		if !strings.Contains(string(msg), "Date: Tue, 02 Jan 2024 03:04:05 +0000") {
			t.Errorf("message missing Date header:\n%s", msg)
		}
		return nil
	}

	if err := p.Send(context.Background(), &email.Email{To: "a@x.com; b@x.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != net.JoinHostPort("mail.example.com", strconv.Itoa(587)) {
		t.Errorf("addr: got %q", gotAddr)
	}
	if len(gotRcpts) != 2 {
		t.Errorf("recipients: got %v, want 2", gotRcpts)
	}
}

func TestSend_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		msg     *email.Email
		wantMsg string
	}{
		{
			name:    "no from",
			cfg:     Config{Host: "h", Port: 25},
			msg:     &email.Email{To: "a@x.com"},
			wantMsg: "no from address",
		},
		{
			name:    "no recipients",
			cfg:     Config{Host: "h", Port: 25, From: "s@x.com"},
			msg:     &email.Email{To: " ; "},
			wantMsg: "no recipients",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(tt.cfg)
			p.deliver = func(context.Context, string, string, []string, []byte) error {
				t.Error("deliver should not be called")
				return nil
			}

			err := p.Send(context.Background(), tt.msg)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error: got %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSend_TLSRequiredWithoutStartTLS(t *testing.T) {
	t.Parallel()

	server := newFakeServer(t)
	p := New(Config{Host: "127.0.0.1", Port: server.port(), From: "sender@example.com", TLS: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.Send(ctx, &email.Email{To: "a@x.com", Subject: "Hi", Body: "Hello"})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "STARTTLS") {
		t.Errorf("error should name STARTTLS, got %q", err.Error())
	}

	<-server.done

	server.mu.Lock()
	defer server.mu.Unlock()

	if server.from != "" || server.data != "" {
		t.Errorf("nothing should be sent in plaintext, got from=%q data=%q", server.from, server.data)
	}
}

func TestSend_ConnectionRefusedIsUnavailable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	p := New(Config{Host: "127.0.0.1", Port: port, From: "s@x.com"})
	err = p.Send(context.Background(), &email.Email{To: "a@x.com"})
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

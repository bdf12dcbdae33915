package notifier

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func capture(e *EmailNotifier, sendErr error) *capturedMail {
	c := &capturedMail{}
	e.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.auth, c.from, c.to, c.msg = addr, a, from, to, string(msg)
		return sendErr
	}
	return c
}

func TestEmailNotifier_Send(t *testing.T) {
	e := NewEmailNotifier(EmailConfig{
		Host:          "smtp.example.com",
		Username:      "alerts@example.com",
		Password:      "secret",
		To:            []string{"data@example.com", "ops@example.com"},
		SubjectPrefix: "[Hulken]",
	})
	got := capture(e, nil)

	if err := e.Send(context.Background(), failingRun()); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if got.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want default port 587", got.addr)
	}
	if got.auth == nil {
		t.Error("auth = nil, want PLAIN auth when a username is set")
	}
	if got.from != "alerts@example.com" {
		t.Errorf("from = %q, want username fallback", got.from)
	}
	if len(got.to) != 2 {
		t.Errorf("to = %v", got.to)
	}
	for _, want := range []string{
		"Subject: [Hulken] Reconciliation FAIL: 2 issue(s) detected\r\n",
		"To: data@example.com, ops@example.com\r\n",
		"Content-Type: text/plain; charset=UTF-8\r\n",
		"\r\n\r\nReconciliation FAIL\r\n",
		"Run: run-1\r\n",
	} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message missing %q:\n%s", want, got.msg)
		}
	}
}

func TestEmailNotifier_Subject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		n      Notification
		want   string
	}{
		{"issues counted", "", failingRun(), "Reconciliation FAIL: 2 issue(s) detected"},
		{"clean run", "", passingRun(), "Reconciliation PASS"},
		{"prefixed", "[DQ]", passingRun(), "[DQ] Reconciliation PASS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmailNotifier(EmailConfig{SubjectPrefix: tt.prefix})
			if got := e.subject(tt.n); got != tt.want {
				t.Errorf("subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmailNotifier_Errors(t *testing.T) {
	t.Run("missing recipients", func(t *testing.T) {
		e := NewEmailNotifier(EmailConfig{Host: "smtp.example.com"})
		capture(e, nil)
		if err := e.Send(context.Background(), failingRun()); err == nil {
			t.Error("Send() error = nil, want error")
		}
	})
	t.Run("smtp failure is wrapped", func(t *testing.T) {
		e := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", Port: 25, To: []string{"a@example.com"}})
		got := capture(e, errors.New("connection refused"))
		err := e.Send(context.Background(), failingRun())
		if err == nil || !strings.Contains(err.Error(), "smtp.example.com:25") {
			t.Errorf("Send() error = %v", err)
		}
		if got.auth != nil {
			t.Error("auth should be nil without a username")
		}
	})
}

func TestEmailNotifier_Name(t *testing.T) {
	if got := NewEmailNotifier(EmailConfig{}).Name(); got != "email" {
		t.Errorf("Name() = %q, want %q", got, "email")
	}
}

package email

import (
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	msg := buildMessage("no-reply@slotbook.local", "alice@example.com", "Confirmed: intro call", "see you there", now)

	wantLines := []string{
		"From: no-reply@slotbook.local",
		"To: alice@example.com",
		"Subject: Confirmed: intro call",
		"Date: Sat, 14 Mar 2026 09:30:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
	}
	for _, line := range wantLines {
		if !strings.Contains(msg, line+"\r\n") {
			t.Errorf("message missing header line %q:\n%s", line, msg)
		}
	}

	headerEnd := strings.Index(msg, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatalf("message has no header/body separator:\n%s", msg)
	}
	if body := msg[headerEnd+4:]; body != "see you there\r\n" {
		t.Errorf("body = %q", body)
	}
}

func TestNewSMTPSenderDefaultsFrom(t *testing.T) {
	s := NewSMTPSender("mailpit", "1025", "  ", "", "")
	if s.from != "no-reply@slotbook.local" {
		t.Fatalf("from = %q", s.from)
	}
	if s.addr != "mailpit:1025" {
		t.Fatalf("addr = %q", s.addr)
	}
	if s.auth != nil {
		t.Fatalf("auth should be nil without credentials")
	}
}

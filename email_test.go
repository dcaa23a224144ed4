package pairauth

import (
	"context"
	"net/url"
	"strings"
	"testing"
)

func newTestEmailService(sender *recordingSender) *EmailService {
	return &EmailService{
		Sender: sender,
		Config: EmailConfig{
			UIOrigin: "http://app.test",
			From:     "noreply@app.test",
			AppName:  "testapp",
		},
	}
}

func TestSendEmailVerificationLink(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestEmailService(sender)

	if err := svc.SendEmailVerification(context.Background(), "pat@example.com", "12345"); err != nil {
		t.Fatalf("SendEmailVerification: %v", err)
	}
	mail := sender.last(t)
	if mail.To != "pat@example.com" {
		t.Errorf("To = %q", mail.To)
	}
	if !strings.Contains(mail.Text, "http://app.test/verify?code=12345&email=pat%40example.com") {
		t.Errorf("verification link missing from body: %q", mail.Text)
	}
	if !strings.Contains(mail.HTML, "The testapp Team") {
		t.Errorf("default signature missing: %q", mail.HTML)
	}
}

func TestSendPasswordResetLink(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestEmailService(sender)

	if err := svc.SendPasswordReset(context.Background(), "pat@example.com", "1234567", "/dash", "xyz"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	mail := sender.last(t)

	start := strings.Index(mail.Text, "http://")
	if start < 0 {
		t.Fatalf("no link in body: %q", mail.Text)
	}
	raw := strings.Fields(mail.Text[start:])[0]
	link, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad link %q: %v", raw, err)
	}
	q := link.Query()
	if link.Path != "/reset-password" || q.Get("code") != "1234567" ||
		q.Get("returnTo") != "/dash" || q.Get("appState") != "xyz" {
		t.Errorf("link = %q", raw)
	}
}

func TestDeveloperNameOverridesSignature(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestEmailService(sender)
	svc.Config.DeveloperName = "Sam"

	if err := svc.SendEmailVerification(context.Background(), "pat@example.com", "12345"); err != nil {
		t.Fatal(err)
	}
	if mail := sender.last(t); !strings.Contains(mail.HTML, "<p>Sam</p>") {
		t.Errorf("signature not overridden: %q", mail.HTML)
	}
}

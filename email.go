package pairauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/mrz1836/postmark"
)

// Mail is one outbound message handed to an EmailSender.
type Mail struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender is the transport behind the email flows. Implementations
// here cover development (console), plain SMTP, and Postmark; apps can
// plug in anything else.
type EmailSender interface {
	SendMail(ctx context.Context, mail Mail) error
}

// EmailConfig describes the sending application.
type EmailConfig struct {
	// UIOrigin is where the verification and reset pages live; deep links
	// in the emails point there.
	UIOrigin string

	From    string
	AppName string

	// DeveloperName signs the emails. Defaults to "The <AppName> Team".
	DeveloperName string
}

// EmailService composes the verification and reset emails and builds
// their deep links.
type EmailService struct {
	Sender EmailSender
	Config EmailConfig
}

func (s *EmailService) signature() string {
	if s.Config.DeveloperName != "" {
		return s.Config.DeveloperName
	}
	return fmt.Sprintf("The %s Team", s.Config.AppName)
}

// SendEmailVerification sends the signup verification email. The link
// lands on the UI origin's /verify page carrying the code and email.
func (s *EmailService) SendEmailVerification(ctx context.Context, to, code string) error {
	link, err := url.Parse(s.Config.UIOrigin)
	if err != nil {
		return fmt.Errorf("invalid UI origin: %w", err)
	}
	link.Path = "/verify"
	q := link.Query()
	q.Set("code", code)
	q.Set("email", to)
	link.RawQuery = q.Encode()

	return s.Sender.SendMail(ctx, Mail{
		From:    s.Config.From,
		To:      to,
		Subject: fmt.Sprintf("Verify your email on %s", s.Config.AppName),
		Text:    fmt.Sprintf("Visit %s to verify your email.", link),
		HTML: fmt.Sprintf(`<div>
	<h1>Thanks for signing up to %[1]s!</h1>
	<p>Click the button below to finish signing up on this device.</p>
	<a href="%[2]s">Verify my email</a>
	<p>After that, you can sign in on any device you want!</p>
	<p>If you didn't request this email, you can safely ignore it.</p>
	<p>Thanks,</p>
	<p>%[3]s</p>
</div>`, s.Config.AppName, link, s.signature()),
	})
}

// SendPasswordReset sends the reset email. The link lands on the UI
// origin's /reset-password page carrying code, email, and the optional
// returnTo/appState to resume the interrupted flow.
func (s *EmailService) SendPasswordReset(ctx context.Context, to, code, returnTo, appState string) error {
	link, err := url.Parse(s.Config.UIOrigin)
	if err != nil {
		return fmt.Errorf("invalid UI origin: %w", err)
	}
	link.Path = "/reset-password"
	q := link.Query()
	q.Set("code", code)
	q.Set("email", to)
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	if appState != "" {
		q.Set("appState", appState)
	}
	link.RawQuery = q.Encode()

	return s.Sender.SendMail(ctx, Mail{
		From:    s.Config.From,
		To:      to,
		Subject: fmt.Sprintf("Reset your password on %s", s.Config.AppName),
		Text:    fmt.Sprintf("Visit %s to reset your password.", link),
		HTML: fmt.Sprintf(`<div>
	<h1>Reset your password on %[1]s</h1>
	<p>Click the link below to reset your password.</p>
	<a href="%[2]s">Reset my password</a>
	<p>If you didn't request this email, you can safely ignore it.</p>
	<p>Thanks,</p>
	<p>%[3]s</p>
</div>`, s.Config.AppName, link, s.signature()),
	})
}

// ConsoleEmailSender logs emails instead of sending them. Development only.
type ConsoleEmailSender struct{}

func (ConsoleEmailSender) SendMail(_ context.Context, mail Mail) error {
	slog.Info("email (console sender)",
		"to", mail.To,
		"from", mail.From,
		"subject", mail.Subject,
		"body", mail.Text)
	return nil
}

// SMTPEmailSender sends mail through a plain SMTP relay.
type SMTPEmailSender struct {
	// Addr is the relay host:port.
	Addr string
	// Auth may be nil for unauthenticated relays.
	Auth smtp.Auth
}

func (s *SMTPEmailSender) SendMail(_ context.Context, mail Mail) error {
	var msg strings.Builder
	boundary := "pairauth-alt"
	fmt.Fprintf(&msg, "From: %s\r\n", mail.From)
	fmt.Fprintf(&msg, "To: %s\r\n", mail.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mail.Subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, mail.Text)
	fmt.Fprintf(&msg, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, mail.HTML)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := smtp.SendMail(s.Addr, s.Auth, mail.From, []string{mail.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// PostmarkEmailSender sends mail through the Postmark API.
type PostmarkEmailSender struct {
	Client *postmark.Client
	// MessageStream selects the Postmark stream; defaults to "outbound".
	MessageStream string
}

func (s *PostmarkEmailSender) SendMail(ctx context.Context, mail Mail) error {
	stream := s.MessageStream
	if stream == "" {
		stream = "outbound"
	}
	resp, err := s.Client.SendEmail(ctx, postmark.Email{
		From:          mail.From,
		To:            mail.To,
		Subject:       mail.Subject,
		TextBody:      mail.Text,
		HTMLBody:      mail.HTML,
		MessageStream: stream,
	})
	if err != nil {
		return fmt.Errorf("postmark send failed: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

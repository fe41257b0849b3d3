package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	gomail "gopkg.in/mail.v2"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
)

// ReportRenderer produces a PDF copy of a digest for attachment.
type ReportRenderer interface {
	Render(digest, title string) ([]byte, error)
}

// MailSender delivers a composed message. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails digests as HTML with a plain-text fallback and an
// optional PDF report attached.
type EmailNotifier struct {
	config common.EmailConfig
	sender MailSender
	report ReportRenderer
	md     goldmark.Markdown
	logger arbor.ILogger
}

var _ interfaces.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates an SMTP notifier. report may be nil.
func NewEmailNotifier(config common.EmailConfig, report ReportRenderer, logger arbor.ILogger) *EmailNotifier {
	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	dialer.Timeout = 10 * time.Second
	return newEmailNotifier(config, dialer, report, logger)
}

func newEmailNotifier(config common.EmailConfig, sender MailSender, report ReportRenderer, logger arbor.ILogger) *EmailNotifier {
	return &EmailNotifier{
		config: config,
		sender: sender,
		report: report,
		md:     goldmark.New(),
		logger: logger,
	}
}

func (e *EmailNotifier) Name() string {
	return "email"
}

// Subject returns the mail subject for a notification.
func Subject(n interfaces.Notification) string {
	return fmt.Sprintf("$%s Q%d %d Earnings", strings.ToUpper(n.Ticker), n.Quarter, n.Year)
}

// Notify builds and sends the message. The SMTP exchange itself is not cancellable.
func (e *EmailNotifier) Notify(ctx context.Context, n interfaces.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := e.build(n)
	if err != nil {
		return err
	}

	if err := e.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info().
		Str("ticker", n.Ticker).
		Strs("to", e.config.To).
		Msg("Emailed digest")
	return nil
}

func (e *EmailNotifier) build(n interfaces.Notification) (*gomail.Message, error) {
	subject := Subject(n)
	text := n.Message.String()

	var html bytes.Buffer
	if err := e.md.Convert([]byte(text), &html); err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.config.From)
	m.SetHeader("To", e.config.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html.String())

	if e.report != nil {
		pdf, err := e.report.Render(text, subject)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to render PDF report, sending without attachment")
			return m, nil
		}
		name := fmt.Sprintf("%s_Q%d_%d.pdf", strings.ToUpper(n.Ticker), n.Quarter, n.Year)
		m.Attach(name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}

	return m, nil
}

package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

const (
	TransportSendmail = "sendmail"
	TransportSMTP     = "smtp"
)

// EmailNotifier mails notifications from a fixed sender to a fixed recipient.
type EmailNotifier struct {
	cfg      config.EmailConfig
	hostname string
	runner   command.Runner
	now      func() time.Time
}

func NewEmail(cfg config.EmailConfig, hostname string, runner command.Runner) *EmailNotifier {
	if cfg.Transport == "" {
		cfg.Transport = TransportSendmail
	}
	if cfg.SendmailPath == "" {
		cfg.SendmailPath = "/usr/sbin/sendmail"
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	if hostname == "" {
		hostname = "localhost"
	}
	return &EmailNotifier{cfg: cfg, hostname: hostname, runner: runner, now: time.Now}
}

func (e *EmailNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	msg := e.buildMessage(n)

	switch e.cfg.Transport {
	case TransportSMTP:
		return e.sendSMTP(ctx, msg)
	default:
		return e.sendmail(ctx, msg)
	}
}

func (e *EmailNotifier) buildMessage(n *domain.Notification) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}

	header("From", e.cfg.From)
	header("To", e.cfg.To)
	header("Subject", sanitizeHeader(n.Subject))
	header("Date", e.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), e.hostname))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(n.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// sendmail pipes the message into `sendmail -t -i`; recipients come from the headers.
func (e *EmailNotifier) sendmail(ctx context.Context, msg []byte) error {
	_, err := e.runner.Run(ctx, command.Command{
		Name:  e.cfg.SendmailPath,
		Args:  []string{"-t", "-i"},
		Stdin: bytes.NewReader(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailNotifier) smtpAddr() string {
	port := e.cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	return net.JoinHostPort(e.cfg.SMTP.Host, strconv.Itoa(port))
}

func (e *EmailNotifier) dial(ctx context.Context) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", e.smtpAddr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.cfg.SMTP.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start smtp session: %w", err)
	}

	if err := client.Hello(e.hostname); err != nil {
		client.Close()
		return nil, fmt.Errorf("smtp hello: %w", err)
	}

	if e.cfg.SMTP.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			client.Close()
			return nil, errors.New("smtp server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: e.cfg.SMTP.Host}); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if e.cfg.SMTP.Username != "" {
		auth := smtp.PlainAuth("", e.cfg.SMTP.Username, e.cfg.SMTP.Password, e.cfg.SMTP.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}

	return client, nil
}

func (e *EmailNotifier) sendSMTP(ctx context.Context, msg []byte) error {
	client, err := e.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(e.cfg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write email: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return client.Quit()
}

func (e *EmailNotifier) Validate(ctx context.Context) error {
	if e.cfg.To == "" || e.cfg.From == "" {
		return errors.New("email sender and recipient are required")
	}

	switch e.cfg.Transport {
	case TransportSendmail:
		if _, err := command.LookPath(e.cfg.SendmailPath); err != nil {
			return fmt.Errorf("sendmail not found at %s: %w", e.cfg.SendmailPath, err)
		}
		return nil
	case TransportSMTP:
		client, err := e.dial(ctx)
		if err != nil {
			return err
		}
		return client.Quit()
	default:
		return fmt.Errorf("unknown email transport %q", e.cfg.Transport)
	}
}

var _ domain.Notifier = (*EmailNotifier)(nil)

package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/DhimiMohamed/taskmanager/account"
)

// Notifier delivers one due reminder.
type Notifier interface {
	Notify(ctx context.Context, d *Due) error
}

// Message renders the reminder text.
func Message(d *Due) string {
	if d.DueDate != "" {
		return fmt.Sprintf("Reminder: task '%s' is due on %s.", d.TaskTitle, d.DueDate)
	}
	return fmt.Sprintf("Reminder: task '%s'.", d.TaskTitle)
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier sends reminders by SMTP. With no host configured it logs the
// message instead, which is the development default.
type EmailNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier returns an EmailNotifier for cfg.
func NewEmailNotifier(cfg SMTPConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (n *EmailNotifier) Notify(ctx context.Context, d *Due) error {
	return n.Send(ctx, d.Email, "Task reminder: "+d.TaskTitle, Message(d))
}

// Send mails a plain-text message. The account flows use it for
// verification links and reset codes.
func (n *EmailNotifier) Send(_ context.Context, to, subject, body string) error {
	if n.cfg.Host == "" {
		n.logger.Info("email (smtp disabled)",
			slog.String("to", to), slog.String("subject", subject), slog.String("body", body))
		return nil
	}
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	msg := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// InAppNotifier stores reminders as account notifications.
type InAppNotifier struct {
	Accounts account.Store
}

func (n *InAppNotifier) Notify(ctx context.Context, d *Due) error {
	return n.Accounts.CreateNotification(ctx, &account.Notification{UserID: d.UserID, Message: Message(d)})
}

// Router picks the notifier matching the reminder's method.
type Router map[Method]Notifier

func (r Router) Notify(ctx context.Context, d *Due) error {
	n, ok := r[d.Method]
	if !ok {
		return fmt.Errorf("no notifier for method %q", d.Method)
	}
	return n.Notify(ctx, d)
}

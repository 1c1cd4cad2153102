package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/aria-setlist/backend/config"
)

// Mailer sends transactional mail over SMTP. When no SMTP host is
// configured it logs the message instead of sending, which keeps local
// development working without a mail relay.
type Mailer struct {
	cfg    config.EmailConfig
	appURL string
	logger *zap.Logger
}

func New(cfg config.EmailConfig, appURL string, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, appURL: strings.TrimRight(appURL, "/"), logger: logger}
}

// SendInvitation mails an invitation link to recipient. hostName is
// shown as the inviter.
func (m *Mailer) SendInvitation(recipient, hostName, token string) error {
	link := fmt.Sprintf("%s/users/invite/%s", m.appURL, token)
	subject := fmt.Sprintf("%s invited you to their artist collection", hostName)
	body := fmt.Sprintf(
		"Hi,\r\n\r\n%s has invited you to join their artist collection.\r\n\r\n"+
			"Open the link below to accept the invitation:\r\n%s\r\n\r\n"+
			"The link expires in 7 days. If you were not expecting this email you can ignore it.\r\n",
		hostName, link,
	)
	return m.send(recipient, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if m.cfg.SMTPHost == "" {
		m.logger.Info("smtp not configured, skipping send",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	from := m.cfg.FromAddress
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, from),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"
)

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "account_created"}}<p>Hello {{.FirstName}},</p>
<p>An administrator created a SafawiNet account for you.</p>
<p>Email: <b>{{.Email}}</b><br>Temporary password: <b>{{.Password}}</b></p>
<p>Please <a href="{{.LoginLink}}">sign in</a> and change your password.</p>{{end}}
{{define "password_changed"}}<p>Hello {{.FirstName}},</p>
<p>The password of your SafawiNet account was changed at {{.ChangedAt}}.</p>
<p>If this was not you, contact an administrator immediately.</p>{{end}}
{{define "two_factor_changed"}}<p>Hello {{.FirstName}},</p>
<p>Two-factor authentication was {{if .Enabled}}enabled{{else}}disabled{{end}} on your account.</p>{{end}}
`))

// Mailer sends HTML notification emails over SMTP
type Mailer struct {
	host     string
	port     string
	username string
	from     string
	auth     smtp.Auth
	logger   *zap.Logger
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer. With an empty host it only logs what it would send.
func NewMailer(host, port, username, password, from string, logger *zap.Logger) *Mailer {
	if from == "" {
		from = username
	}
	m := &Mailer{
		host:     host,
		port:     port,
		username: username,
		from:     from,
		logger:   logger,
		send:     smtp.SendMail,
	}
	if host != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// Enabled reports whether an SMTP host is configured
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != ""
}

// Render executes a named template
func (m *Mailer) Render(templateName string, data interface{}) (string, error) {
	t := mailTemplates.Lookup(templateName)
	if t == nil {
		return "", fmt.Errorf("template %s not found", templateName)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", templateName, err)
	}
	return body.String(), nil
}

// Send renders and sends an HTML email using the specified template and data
func (m *Mailer) Send(templateName, subject, toEmail string, data interface{}) error {
	body, err := m.Render(templateName, data)
	if err != nil {
		return err
	}
	if !m.Enabled() {
		m.logger.Debug("mailer disabled, skipping email",
			zap.String("template", templateName), zap.String("to", toEmail))
		return nil
	}

	msg := []byte("To: " + toEmail + "\r\n" +
		"From: " + m.from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body)

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	if err := m.send(addr, m.auth, m.from, []string{toEmail}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", toEmail, err)
	}
	m.logger.Info("email sent", zap.String("subject", subject), zap.String("to", toEmail))
	return nil
}

// SendAsync sends in the background and logs failures
func (m *Mailer) SendAsync(templateName, subject, toEmail string, data interface{}) {
	if m == nil {
		return
	}
	go func() {
		if err := m.Send(templateName, subject, toEmail, data); err != nil {
			m.logger.Warn("email not sent", zap.String("template", templateName), zap.Error(err))
		}
	}()
}

// Package email implements an SMTP-based email notifier
package email

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/newthinker/quantbench/internal/core"
	"github.com/newthinker/quantbench/internal/notifier"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
	now      func() time.Time
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok && host != "" {
		e.host = host
	}
	if port, ok := cfg.Params["port"].(int); ok && port > 0 {
		e.port = port
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok && from != "" {
		e.from = from
	}
	if to, ok := cfg.Params["to"].([]string); ok && len(to) > 0 {
		e.to = to
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}
	if e.now == nil {
		e.now = time.Now
	}
	return nil
}

func (e *Email) Send(signal core.Signal) error {
	subject := fmt.Sprintf("quantbench signal: %s %s", strings.ToUpper(signal.Action.String()), signal.Symbol)
	return e.sendEmail(subject, e.formatSignal(signal))
}

func (e *Email) SendBatch(signals []core.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	subject := fmt.Sprintf("quantbench digest: %d trading signals", len(signals))

	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString("<h2>Trading Signals For Today</h2>")
	sb.WriteString(fmt.Sprintf("<p>Generated at: %s</p>", e.now().Format("2006-01-02 15:04:05")))
	sb.WriteString("<hr>")

	for _, signal := range signals {
		sb.WriteString(e.formatSignalHTML(signal))
		sb.WriteString("<hr>")
	}

	sb.WriteString("</body></html>")

	return e.sendEmail(subject, sb.String())
}

func (e *Email) formatSignal(signal core.Signal) string {
	return fmt.Sprintf(`
%s

Symbol: %s
Sector: %s
Action: %s
Strategy: %s
Close: %.2f
Bar: %s
`,
		notifier.Headline(signal),
		signal.Symbol,
		signal.Sector,
		signal.Action,
		signal.Strategy,
		signal.Price,
		signal.Date.Format("2006-01-02"),
	)
}

func (e *Email) formatSignalHTML(signal core.Signal) string {
	actionColor := "#28a745" // green for buy
	if signal.Action == core.ActionSell {
		actionColor = "#dc3545" // red for sell
	}

	return fmt.Sprintf(`
<div style="margin: 10px 0;">
  <h3 style="color: %s;">%s</h3>
  <p><strong>Sector:</strong> %s</p>
  <p><strong>Close:</strong> %.2f</p>
  <p><small>%s</small></p>
</div>
`,
		actionColor,
		html.EscapeString(notifier.Headline(signal)),
		html.EscapeString(signal.Sector),
		signal.Price,
		signal.Date.Format("2006-01-02"),
	)
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.Contains(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

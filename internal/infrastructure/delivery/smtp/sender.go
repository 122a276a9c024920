package smtp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/gek007/ai-news-aggregator/internal/core/domain"
)

// Config wires the SMTP relay used for digest delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender renders a digest to HTML and ships it over authenticated SMTP.
type Sender struct {
	config Config
	tmpl   *template.Template

	// sendMail is swappable in tests.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(config Config) (*Sender, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Sender{
		config:   config,
		tmpl:     tmpl,
		sendMail: smtp.SendMail,
	}, nil
}

func (s *Sender) Send(ctx context.Context, digest domain.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if digest.Recipient == "" {
		return fmt.Errorf("digest has no recipient")
	}

	body, err := s.renderBody(digest)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your digest — %d stories (%s)",
		len(digest.Items), digest.GeneratedAt.Format("Jan 2, 2006"))

	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		digest.Recipient, s.config.From, subject, body))

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.sendMail(addr, auth, s.config.From, []string{digest.Recipient}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *Sender) renderBody(digest domain.Digest) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, digest); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

const digestTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 640px; margin: 0 auto;">
<h2>Today's picks</h2>
{{range $i, $entry := .Items}}
<div style="margin-bottom: 24px;">
  <h3>{{$entry.Item.Title}}</h3>
  {{if $entry.Item.Summary}}<p>{{$entry.Item.Summary}}</p>{{end}}
  <p><a href="{{$entry.Item.URL}}">Read more</a> &middot; score {{printf "%.2f" $entry.Score}}</p>
</div>
{{end}}
<p style="color: #888; font-size: 12px;">Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
</body>
</html>`

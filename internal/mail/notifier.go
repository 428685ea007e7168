// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"text/template"
)

// SiteName appears in letter subjects.
const SiteName = "MS DevBlog"

// Enqueuer accepts messages for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, m Message) error
}

// Notifier composes the letters the blog sends.
type Notifier struct {
	queue      Enqueuer
	siteURL    string
	feedbackTo []string
}

// NewNotifier creates a notifier. siteURL is the absolute base for links.
func NewNotifier(queue Enqueuer, siteURL string, feedbackTo []string) *Notifier {
	return &Notifier{queue: queue, siteURL: strings.TrimRight(siteURL, "/"), feedbackTo: feedbackTo}
}

var activationBody = template.Must(template.New("activation").Parse(`Здравствуйте, {{.Username}}!

Вы зарегистрировались на сайте {{.Site}}.
Чтобы подтвердить адрес электронной почты, перейдите по ссылке:

{{.Link}}

Если вы не регистрировались, просто проигнорируйте это письмо.
`))

var resetBody = template.Must(template.New("reset").Parse(`Здравствуйте, {{.Username}}!

Для сброса пароля на сайте {{.Site}} перейдите по ссылке:

{{.Link}}

Ссылка действует ограниченное время. Если вы не запрашивали сброс, проигнорируйте это письмо.
`))

type letter struct {
	Username string
	Site     string
	Link     string
}

func (n *Notifier) link(path, token string) string {
	return n.siteURL + path + url.PathEscape(token) + "/"
}

func render(t *template.Template, data letter) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s letter: %w", t.Name(), err)
	}
	return b.String(), nil
}

// ActivationLink returns the absolute URL that confirms an email address.
func (n *Notifier) ActivationLink(token string) string {
	return n.link("/members/register/activate/", token)
}

// Activation queues the email confirmation letter.
func (n *Notifier) Activation(ctx context.Context, username, email, token string) error {
	body, err := render(activationBody, letter{Username: username, Site: SiteName, Link: n.ActivationLink(token)})
	if err != nil {
		return err
	}
	return n.queue.Enqueue(ctx, Message{
		To:      []string{email},
		Subject: "Активация пользователя " + username,
		Body:    body,
	})
}

// PasswordReset queues a letter with a password reset link.
func (n *Notifier) PasswordReset(ctx context.Context, username, email, token string) error {
	body, err := render(resetBody, letter{Username: username, Site: SiteName, Link: n.link("/members/password-reset/", token)})
	if err != nil {
		return err
	}
	return n.queue.Enqueue(ctx, Message{
		To:      []string{email},
		Subject: "Сброс пароля на " + SiteName,
		Body:    body,
	})
}

// Feedback forwards a visitor's message to the site administrators. The
// visitor's address goes into the body and Reply-To.
func (n *Notifier) Feedback(ctx context.Context, theme, text, email string) error {
	if len(n.feedbackTo) == 0 {
		slog.Warn("feedback dropped, no recipients configured", "theme", theme, "email", email)
		return nil
	}
	return n.queue.Enqueue(ctx, Message{
		To:      n.feedbackTo,
		Subject: theme,
		Body:    text + "\nE-mail: " + email,
		ReplyTo: email,
	})
}

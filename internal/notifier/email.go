package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Email hands the alert to the local MTA: sendmail -t when present,
// otherwise mail(1).
type Email struct {
	To            string
	From          string
	SubjectPrefix string
	Runner        Runner
	Timeout       time.Duration
}

func NewEmail(to, from, subjectPrefix string) *Email {
	return &Email{To: to, From: from, SubjectPrefix: subjectPrefix, Runner: execRunner{}, Timeout: 10 * time.Second}
}

func (e *Email) Name() string { return "email" }

func (e *Email) MaxAttempts() int { return 1 }

func (e *Email) subject() string {
	prefix := e.SubjectPrefix
	if prefix == "" {
		prefix = "[CF Guard]"
	}
	return prefix + " Notification"
}

func (e *Email) Send(ctx context.Context, msg Message) error {
	if e.To == "" {
		return fmt.Errorf("email recipient not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	switch {
	case e.Runner.Exists("sendmail"):
		return e.Runner.Run(ctx, []byte(e.rfc822(msg)), "sendmail", "-t")
	case e.Runner.Exists("mail"):
		return e.Runner.Run(ctx, []byte(msg.Text+"\n"), "mail", "-a", "From:"+e.From, "-s", e.subject(), e.To)
	default:
		return fmt.Errorf("neither sendmail nor mail found in PATH")
	}
}

func (e *Email) rfc822(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", e.From)
	fmt.Fprintf(&b, "To: %s\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\n", e.subject())
	b.WriteString("Content-Type: text/plain; charset=UTF-8\n\n")
	b.WriteString(msg.Text)
	b.WriteString("\n")
	return b.String()
}

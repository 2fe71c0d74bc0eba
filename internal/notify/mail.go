// README: Email sink backed by gomail; sends transition digests to the ops inbox.
package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"unipool/internal/logger"
)

// MailSink emails selected transitions (admin overrides and cancellations) to a
// fixed ops address. Delivery runs in a goroutine so callers never wait on SMTP.
type MailSink struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewMailSink(host string, port int, user, pass, from, to string) *MailSink {
	return &MailSink{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		to:     to,
	}
}

// notable reports whether a transition is worth an email. Routine forward
// transitions stay in the log only.
func notable(e Event) bool {
	switch e.To {
	case "canceled", "canceled_by_platform", "declined_by_admin":
		return true
	}
	return e.ActorType == "admin"
}

func (s *MailSink) Publish(e Event) {
	if !notable(e) {
		return
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", fmt.Sprintf("[unipool] %s %s: %s -> %s", e.EntityType, e.EntityID, e.From, e.To))
	m.SetBody("text/plain", fmt.Sprintf(
		"entity: %s %s\ntransition: %s -> %s\nactor: %s %s\nat: %s\n",
		e.EntityType, e.EntityID, e.From, e.To, e.ActorType, e.ActorID, e.At.UTC().Format("2006-01-02 15:04:05 UTC"),
	))
	go func() {
		if err := s.dialer.DialAndSend(m); err != nil {
			logger.L.WithError(err).Warn("notify: mail delivery failed")
		}
	}()
}

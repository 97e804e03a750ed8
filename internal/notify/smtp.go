package notify

import (
	"log"

	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig carries the mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	SSL      bool
	From     string
	FromName string
}

// SMTPMailer delivers events over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	cfg    SMTPConfig
}

// NewSMTPMailer builds a mailer from transport settings.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.SSL = cfg.SSL
	return &SMTPMailer{dialer: d, cfg: cfg}
}

func (m *SMTPMailer) Send(ev Event) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.cfg.FromName)
	msg.SetHeader("To", ev.To)
	msg.SetHeader("Subject", ev.Subject)
	msg.SetBody("text/plain", ev.Body)
	return m.dialer.DialAndSend(msg)
}

// LogMailer is used when no SMTP host is configured; it records the send in
// the process log and claims success.
type LogMailer struct{}

func (LogMailer) Send(ev Event) error {
	log.Printf("notify: mail transport disabled, would send to %s: %s", ev.To, ev.Subject)
	return nil
}

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

type MailConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	To         []string `mapstructure:"to"`
	Subject    string   `mapstructure:"subject"`
	Encryption string   `mapstructure:"encryption"`
}

type MailNotifier struct {
	cfg MailConfig
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Subject == "" {
		cfg.Subject = "roomsense alert"
	}
	return &MailNotifier{cfg: cfg}
}

func (n *MailNotifier) Name() string { return "mail" }

func encryption(name string) mail.Encryption {
	switch strings.ToLower(name) {
	case "none":
		return mail.EncryptionNone
	case "starttls":
		return mail.EncryptionSTARTTLS
	default:
		return mail.EncryptionSSLTLS
	}
}

func (n *MailNotifier) message(body string) *mail.Email {
	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("roomsense <%s>", n.cfg.From))
	email.AddTo(n.cfg.To...)
	email.SetSubject(n.cfg.Subject)
	email.SetBody(mail.TextPlain, body)
	return email
}

func (n *MailNotifier) Notify(ctx context.Context, message string) error {
	server := mail.NewSMTPClient()
	server.Host = n.cfg.Host
	server.Port = n.cfg.Port
	server.Username = n.cfg.Username
	server.Password = n.cfg.Password
	server.Authentication = mail.AuthAuto
	server.Encryption = encryption(n.cfg.Encryption)
	if deadline, ok := ctx.Deadline(); ok {
		server.ConnectTimeout = time.Until(deadline)
		server.SendTimeout = time.Until(deadline)
	}

	client, err := server.Connect()
	if err != nil {
		return fmt.Errorf("smtp connect %s: %w", n.cfg.Host, err)
	}
	defer client.Close()

	email := n.message(message)
	if email.Error != nil {
		return fmt.Errorf("build mail: %w", email.Error)
	}
	if err := email.Send(client); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

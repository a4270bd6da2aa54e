package notify

import (
	"fmt"

	. "github.com/elijahnyp/roomsense/util"
)

type Settings struct {
	Workers  int            `mapstructure:"workers"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Mail     MailConfig     `mapstructure:"mail"`
}

// FromConfig builds every notifier that has enough settings to work. The
// HTTP notifier needs a token, Telegram a token and chat, mail a host and a
// recipient.
func FromConfig() (Multi, Settings, error) {
	var s Settings
	if err := Config.UnmarshalKey("notify", &s); err != nil {
		return nil, s, fmt.Errorf("unmarshal notify config: %w", err)
	}
	if Config.GetBool("insecure_tls") {
		s.HTTP.Insecure = true
	}
	var m Multi
	if s.HTTP.URL != "" && s.HTTP.Token != "" {
		m = append(m, NewHTTPNotifier(s.HTTP))
	}
	if s.Telegram.Token != "" && s.Telegram.ChatID != 0 {
		m = append(m, NewTelegramNotifier(s.Telegram))
	}
	if s.Mail.Host != "" && len(s.Mail.To) > 0 {
		m = append(m, NewMailNotifier(s.Mail))
	}
	return m, s, nil
}

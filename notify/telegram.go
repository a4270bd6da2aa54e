package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier sends alerts to one chat. The bot is created on first use
// so startup does not depend on reaching the Telegram API.
type TelegramNotifier struct {
	cfg    TelegramConfig
	mu     sync.Mutex
	sender messageSender
}

func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{cfg: cfg}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) bot() (messageSender, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sender != nil {
		return n.sender, nil
	}
	b, err := bot.New(n.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	n.sender = b
	return b, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	sender, err := n.bot()
	if err != nil {
		return err
	}
	if _, err := sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: n.cfg.ChatID, Text: message}); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

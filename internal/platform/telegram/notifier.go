package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
)

// Notifier posts plain text alerts to the organizers' chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.SugaredLogger
}

// NewNotifier never fails: a missing token or an unreachable API disables alerts.
func NewNotifier(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Notifier {
	n := &Notifier{chatID: cfg.Telegram.AdminChatID, log: log}
	if cfg.Telegram.Token == "" || cfg.Telegram.AdminChatID == 0 {
		log.Infow("telegram alerts disabled")
		return n
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Warnw("telegram bot init failed, alerts disabled", "err", err)
		return n
	}
	bot.Debug = false
	n.bot = bot
	log.Infow("telegram alerts enabled", "bot", bot.Self.UserName)
	return n
}

func (n *Notifier) Enabled() bool { return n != nil && n.bot != nil }

func (n *Notifier) SendText(text string) error {
	if !n.Enabled() {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewNotifier),
)

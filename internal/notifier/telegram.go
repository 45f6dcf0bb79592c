package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultTelegramAPI = "https://api.telegram.org"

type TelegramConfig struct {
	BotToken string
	// ChatID is a numeric chat id or a public channel name such as "@deals".
	ChatID string
	// APIURL overrides the Bot API base URL.
	APIURL string
}

// TelegramSender posts alerts to one chat through the Bot API.
type TelegramSender struct {
	bot  *tgbotapi.BotAPI
	chat string
}

// NewTelegramSender authenticates the bot token against the API before
// returning.
func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	const op = "notifier.NewTelegramSender"

	base := cfg.APIURL
	if base == "" {
		base = defaultTelegramAPI
	}
	endpoint := strings.TrimRight(base, "/") + "/bot%s/%s"

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &TelegramSender{bot: bot, chat: cfg.ChatID}, nil
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	const op = "notifier.TelegramSender.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var out tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(s.chat, 10, 64); err == nil {
		out = tgbotapi.NewMessage(id, msg.Text)
	} else {
		out = tgbotapi.NewMessageToChannel(s.chat, msg.Text)
	}
	out.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.bot.Send(out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Package notify sends operator alerts to Telegram. It is wired to the
// router's error outcome; delivery failures are logged, never propagated.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"invitetrack/internal/events"
	"invitetrack/lib/sl"
)

type Telegram struct {
	log     *slog.Logger
	api     *tgbotapi.Bot
	chatIds []int64
}

func NewTelegram(apiKey string, chatIds []int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return &Telegram{
		log:     log.With(sl.Module("notify")),
		api:     api,
		chatIds: chatIds,
	}, nil
}

// HandleEvent is the router error-outcome subscriber.
func (t *Telegram) HandleEvent(evt events.Event) error {
	if evt.Err == nil {
		return nil
	}
	t.Send(fmt.Sprintf("*invitetrack error*\n%s", Sanitize(evt.Err.Error())))
	return nil
}

// Send delivers text to every configured chat, falling back to plain text
// when MarkdownV2 is rejected.
func (t *Telegram) Send(text string) {
	if text == "" {
		return
	}
	for _, chatId := range t.chatIds {
		_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
			ParseMode: "MarkdownV2",
		})
		if err != nil {
			t.log.Warn("sending message", slog.Int64("id", chatId), sl.Err(err))
			_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
			if err != nil {
				t.log.Error("sending safe message", slog.Int64("id", chatId), sl.Err(err))
			}
		}
	}
}

func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}
	return sanitized.String()
}

package notify

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "birthdayd/pkg/logx"
)

// TelegramSender delivers reminders as messages to a fixed chat.
type TelegramSender struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegramSender(token string, chatID int64, log logx.Logger) (*TelegramSender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token: token,
		// Send-only: no poller. Client timeout covers slow API responses.
		Client: nil,
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: bot, chatID: chatID, log: log}, nil
}

func (t *TelegramSender) Send(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := t.bot.Send(tele.ChatID(t.chatID), title+"\n"+body, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}
	t.log.Debug("telegram message sent",
		logx.Int64("chat_id", t.chatID), logx.Duration("took", time.Since(start)))
	return nil
}

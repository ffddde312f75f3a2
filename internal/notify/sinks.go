package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// LogSink writes notices to a structured logger.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) NotifyApplicationDecision(ctx context.Context, n DecisionNotice) error {
	s.logger().InfoContext(ctx, "application decided",
		"studentId", n.Student.UserID,
		"studentEmail", n.Student.Email,
		"jobTitle", n.JobTitle,
		"decision", n.Decision,
		"provider", n.ProviderName,
	)
	return nil
}

func (s LogSink) NotifyNewApplication(ctx context.Context, n NewApplicationNotice) error {
	s.logger().InfoContext(ctx, "new application",
		"providerId", n.Provider.UserID,
		"providerEmail", n.Provider.Email,
		"jobTitle", n.JobTitle,
		"student", n.StudentName,
		"workType", n.Metadata.WorkType,
	)
	return nil
}

func (s LogSink) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// messageSender is the part of *tgbotapi.BotAPI the sink uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts notices to one operator chat.
type TelegramSink struct {
	bot    messageSender
	chatID int64
}

// NewTelegramSink authenticates against the Bot API with token.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSink) NotifyApplicationDecision(_ context.Context, n DecisionNotice) error {
	icon := "✅"
	if n.Decision != "Approved" {
		icon = "❌"
	}
	text := fmt.Sprintf(
		"%s <b>Application %s</b>\n"+
			"👤 %s\n"+
			"💼 %s\n"+
			"🏢 %s",
		icon, esc(string(n.Decision)),
		esc(n.Student.Name),
		esc(n.JobTitle),
		esc(n.ProviderName),
	)
	return t.send(text)
}

func (t *TelegramSink) NotifyNewApplication(_ context.Context, n NewApplicationNotice) error {
	text := fmt.Sprintf(
		"📥 <b>New application</b>\n"+
			"💼 %s\n"+
			"👤 %s\n"+
			"🎓 %s · %s\n"+
			"📞 %s",
		esc(n.JobTitle),
		esc(n.StudentName),
		esc(n.Metadata.StudentYear), esc(n.Metadata.WorkType),
		esc(n.Metadata.Phone),
	)
	return t.send(text)
}

func (t *TelegramSink) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeHTML, s) }

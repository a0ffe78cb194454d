// Package notify sends operator alerts about failed scheduled runs.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"noticias_ingest/internal/model"
)

// Notifier delivers run alerts to an operator channel. Implementations
// must never block ingestion: failures are logged by the caller, not
// propagated.
type Notifier interface {
	RunFailed(schedule *model.Schedule, runLog *model.RunLog) error
}

// Telegram posts alerts to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier, validating the token against
// the Bot API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// RunFailed posts a summary of a failed or partial schedule run.
func (t *Telegram) RunFailed(schedule *model.Schedule, runLog *model.RunLog) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Ingestão \"%s\" terminou com status %s\n", schedule.Name, runLog.Status)
	fmt.Fprintf(&b, "Importados: %d, falhas: %d (%d ms)\n", runLog.ArticlesImported, runLog.ArticlesFailed, runLog.DurationMs)
	if runLog.ErrorMessage != "" {
		fmt.Fprintf(&b, "Erro: %s", runLog.ErrorMessage)
	}

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// Noop is the notifier used when alerting is not configured.
type Noop struct{}

// RunFailed does nothing.
func (Noop) RunFailed(*model.Schedule, *model.RunLog) error { return nil }

// Alert dispatches through n and logs delivery failures.
func Alert(n Notifier, log *slog.Logger, schedule *model.Schedule, runLog *model.RunLog) {
	if n == nil {
		return
	}
	if err := n.RunFailed(schedule, runLog); err != nil {
		log.Error("send run alert", "schedule_id", schedule.ID, "error", err)
	}
}

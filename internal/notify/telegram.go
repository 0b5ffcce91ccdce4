// Package notify pushes operator notifications to Telegram chats.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier handles sending notifications to multiple chats
type TelegramNotifier struct {
	bot     Sender
	chatIDs []int64
}

// NewTelegramNotifier returns nil, without error, when token or chat ids are missing.
func NewTelegramNotifier(botToken string, chatIDs []int64) (*TelegramNotifier, error) {
	if botToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, notifications disabled")
		return nil, nil
	}
	if len(chatIDs) == 0 {
		log.Warn("No telegram chat IDs configured, notifications disabled")
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Infof("Telegram notifier initialized with %d chat IDs", len(chatIDs))
	return NewWithSender(bot, chatIDs), nil
}

func NewWithSender(bot Sender, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs}
}

// SendNotification sends message to every chat. Failures are logged only.
func (tn *TelegramNotifier) SendNotification(message string) {
	if tn == nil || tn.bot == nil {
		return
	}

	for _, chatID := range tn.chatIDs {
		msg := tgbotapi.NewMessage(chatID, message)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := tn.bot.Send(msg); err != nil {
			log.Errorf("Failed to send telegram message to chat %d: %v", chatID, err)
		}
	}
}

// BatchCompleted reports the outcome of a finished batch.
func (tn *TelegramNotifier) BatchCompleted(s models.BatchSummary, at time.Time) {
	tn.SendNotification(BatchMessage(s, at))
}

func BatchMessage(s models.BatchSummary, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*BATCH COMPLETED*\n\n")
	fmt.Fprintf(&b, "*Organization:* %s\n", escape(s.OrgName))
	fmt.Fprintf(&b, "*Batch:* `%s`\n", s.BatchID)
	fmt.Fprintf(&b, "*Issued:* %d/%d\n", s.Success, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "*Failed:* %d\n", s.Failed)
	}
	fmt.Fprintf(&b, "*Time:* %s", at.Format("2006-01-02 15:04:05"))
	return b.String()
}

// escape neutralizes legacy Markdown markers in free text.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

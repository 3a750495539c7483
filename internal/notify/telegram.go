package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/format"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// TelegramMaxRows caps the contracts listed in one message.
const TelegramMaxRows = 20

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a summary of new contracts to chats.
type Telegram struct {
	sender Sender
	chats  []int64
	logger *slog.Logger
}

// NewTelegram connects a bot with token. chats receive every announcement in
// addition to numeric recipients passed to Notify.
func NewTelegram(token string, chats []int64, logger *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramWithSender(api, chats, logger), nil
}

// NewTelegramWithSender builds a notifier on an existing sender.
func NewTelegramWithSender(sender Sender, chats []int64, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		sender: sender,
		chats:  append([]int64(nil), chats...),
		logger: logger.With("notifier", "telegram"),
	}
}

// Notify sends one message per chat and succeeds when any chat received it.
func (t *Telegram) Notify(ctx context.Context, contracts []map[string]any, recipients []string) bool {
	chats := t.targets(recipients)
	if len(chats) == 0 {
		return false
	}

	text := telegramText(contracts)
	sent := 0
	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			t.logger.Error("telegram notification cancelled", "error", err)
			break
		}
		msg := tgbotapi.NewMessage(chat, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.sender.Send(msg); err != nil {
			t.logger.Error("failed to send telegram message", "chat_id", chat, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		t.logger.Info("telegram notification sent", "chats", sent, "contracts", len(contracts))
	}
	return sent > 0
}

// targets merges configured chats with numeric recipients, without duplicates.
func (t *Telegram) targets(recipients []string) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range t.chats {
		add(id)
	}
	for _, r := range recipients {
		if id, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64); err == nil {
			add(id)
		}
	}
	return out
}

func telegramText(contracts []map[string]any) string {
	var total float64
	for _, c := range contracts {
		total += amount(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", Subject)
	fmt.Fprintf(&b, "%d contratos nuevos, valor total $%s COP\n", len(contracts), format.Compact(total))

	for i, c := range contracts {
		if i == TelegramMaxRows {
			fmt.Fprintf(&b, "\n… y %d más", len(contracts)-TelegramMaxRows)
			break
		}
		fmt.Fprintf(&b, "\n• <b>%s</b>\n%s · %s · %s",
			html.EscapeString(text(c, models.ColEntityName)),
			html.EscapeString(text(c, models.ColContractType)),
			html.EscapeString(format.COP(amount(c))),
			html.EscapeString(text(c, models.ColSigningDate)),
		)
		if u := text(c, models.ColProcessURL); strings.HasPrefix(u, "http") {
			fmt.Fprintf(&b, "\n<a href=\"%s\">Ver proceso</a>", html.EscapeString(u))
		}
	}
	return b.String()
}

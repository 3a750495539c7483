package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

func contracts(n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			models.ColContractID:    fmt.Sprintf("CO1.%d", i),
			models.ColEntityName:    fmt.Sprintf("Alcaldía %d <Norte>", i),
			models.ColContractType:  "Prestación de servicios",
			models.ColContractValue: 1234567.0,
			models.ColSigningDate:   "2024-05-02",
			models.ColProcessURL:    "https://community.secop.gov.co/x?id=1&b=2",
		})
	}
	return out
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestEmail(sendErr error) (*Email, *[]sentMail) {
	var sent []sentMail
	e := NewEmail(config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "secret",
	}, nil)
	e.now = func() time.Time { return time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC) }
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	return e, &sent
}

func TestEmailNotify(t *testing.T) {
	e, sent := newTestEmail(nil)

	ok := e.Notify(context.Background(), contracts(2), []string{"ana@example.com", "12345", " luis@example.com "})
	require.True(t, ok)
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", m.addr)
	assert.Equal(t, "bot@example.com", m.from)
	assert.Equal(t, []string{"ana@example.com", "luis@example.com"}, m.to)
	assert.Contains(t, m.msg, "Subject: Nuevos Contratos de Transporte - 2024-05-03")
	assert.Contains(t, m.msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, m.msg, "$1,234,567 COP")
	assert.Contains(t, m.msg, "Alcaldía 1 &lt;Norte&gt;")
	assert.Equal(t, 2, strings.Count(m.msg, "<tr><td>"))
}

func TestEmailNotifyFailures(t *testing.T) {
	t.Run("send error", func(t *testing.T) {
		e, sent := newTestEmail(errors.New("connection refused"))
		assert.False(t, e.Notify(context.Background(), contracts(1), []string{"ana@example.com"}))
		assert.Len(t, *sent, 1)
	})

	t.Run("no email recipients", func(t *testing.T) {
		e, sent := newTestEmail(nil)
		assert.False(t, e.Notify(context.Background(), contracts(1), []string{"12345"}))
		assert.Empty(t, *sent)
	})

	t.Run("missing credentials", func(t *testing.T) {
		e, sent := newTestEmail(nil)
		e.cfg.Password = ""
		assert.False(t, e.Notify(context.Background(), contracts(1), []string{"ana@example.com"}))
		assert.Empty(t, *sent)
	})
}

type fakeSender struct {
	fail map[int64]bool
	msgs []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.msgs = append(f.msgs, msg)
	return tgbotapi.Message{MessageID: len(f.msgs)}, nil
}

func TestTelegramNotify(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegramWithSender(sender, []int64{100}, nil)

	ok := tg.Notify(context.Background(), contracts(3), []string{"200", "ana@example.com", "100"})
	require.True(t, ok)
	require.Len(t, sender.msgs, 2)

	assert.Equal(t, int64(100), sender.msgs[0].ChatID)
	assert.Equal(t, int64(200), sender.msgs[1].ChatID)

	msg := sender.msgs[0]
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>Nuevos Contratos de Transporte</b>")
	assert.Contains(t, msg.Text, "3 contratos nuevos, valor total $3.7M COP")
	assert.Contains(t, msg.Text, "Alcaldía 0 &lt;Norte&gt;")
	assert.Contains(t, msg.Text, `href="https://community.secop.gov.co/x?id=1&amp;b=2"`)
}

func TestTelegramCapsRows(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegramWithSender(sender, []int64{1}, nil)

	require.True(t, tg.Notify(context.Background(), contracts(TelegramMaxRows+5), nil))
	text := sender.msgs[0].Text
	assert.Equal(t, TelegramMaxRows, strings.Count(text, "• "))
	assert.Contains(t, text, "y 5 más")
}

func TestTelegramNotifyFailures(t *testing.T) {
	t.Run("no chats", func(t *testing.T) {
		sender := &fakeSender{}
		tg := NewTelegramWithSender(sender, nil, nil)
		assert.False(t, tg.Notify(context.Background(), contracts(1), []string{"ana@example.com"}))
	})

	t.Run("partial delivery succeeds", func(t *testing.T) {
		sender := &fakeSender{fail: map[int64]bool{1: true}}
		tg := NewTelegramWithSender(sender, []int64{1, 2}, nil)
		assert.True(t, tg.Notify(context.Background(), contracts(1), nil))
		assert.Len(t, sender.msgs, 1)
	})

	t.Run("every chat fails", func(t *testing.T) {
		sender := &fakeSender{fail: map[int64]bool{1: true}}
		tg := NewTelegramWithSender(sender, []int64{1}, nil)
		assert.False(t, tg.Notify(context.Background(), contracts(1), nil))
	})
}

type stubNotifier struct {
	ok    bool
	calls int
}

func (s *stubNotifier) Notify(context.Context, []map[string]any, []string) bool {
	s.calls++
	return s.ok
}

func TestMulti(t *testing.T) {
	failing, working := &stubNotifier{}, &stubNotifier{ok: true}

	assert.True(t, Multi{failing, nil, working}.Notify(context.Background(), contracts(1), nil))
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)

	assert.False(t, Multi{failing}.Notify(context.Background(), contracts(1), nil))
	assert.False(t, Multi{}.Notify(context.Background(), contracts(1), nil))
}

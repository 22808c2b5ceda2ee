package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

type fakeSender struct {
	sent  []tgbotapi.MessageConfig
	fails int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if f.fails > 0 {
		f.fails--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func command(text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// chat ID is parsed before the bot is contacted
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestFormatSignals(t *testing.T) {
	c := newClient(&fakeSender{}, 1, 1, time.Millisecond)
	up := models.FadeUp
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	msg := c.formatSignals([]models.SignalRecord{
		{
			Timestamp: ts, MarketID: "m1", Slug: "will-x-happen", Strategy: models.StrategyA2,
			Direction: &up, Strength: 0.67, Mid: models.Float(0.42), Regime: models.RegimeBot,
			BotScore: 0.81, Details: "SPREAD_EXPANSION,MID_JUMP",
		},
		{
			Timestamp: ts, MarketID: "m2", Strategy: models.StrategyH1, Regime: models.RegimeHuman,
			BotScore: 0.2, Details: "MANUAL_REVIEW",
		},
	})

	for _, want := range []string{
		"📅 Detected: 2026\\-03\\-01 12:30:00",
		"1\\. [will\\-x\\-happen](https://polymarket.com/market/will-x-happen)",
		"*A2 fade* FADE\\_UP, strength 0\\.67",
		"BOT score 0\\.81, mid 0\\.420",
		"`SPREAD\\_EXPANSION,MID\\_JUMP`",
		"2\\. m2",
		"*H1 review candidate*",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestSendSignals_Retries(t *testing.T) {
	fs := &fakeSender{fails: 2}
	c := newClient(fs, 7, 3, time.Millisecond)

	err := c.SendSignals([]models.SignalRecord{{MarketID: "m", Strategy: models.StrategyH1}})
	if err != nil {
		t.Fatalf("SendSignals() error = %v", err)
	}
	if len(fs.sent) != 1 || fs.sent[0].ChatID != 7 || fs.sent[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("sent = %+v", fs.sent)
	}
}

func TestSendSignals_GivesUp(t *testing.T) {
	fs := &fakeSender{fails: 5}
	c := newClient(fs, 7, 2, time.Millisecond)
	if err := c.SendError(errors.New("boom")); err == nil {
		t.Fatal("expected error after retries")
	}
	if fs.fails != 3 {
		t.Errorf("attempts = %d, want 2", 5-fs.fails)
	}
}

func TestSendSignals_Empty(t *testing.T) {
	fs := &fakeSender{}
	c := newClient(fs, 7, 1, time.Millisecond)
	if err := c.SendSignals(nil); err != nil || len(fs.sent) != 0 {
		t.Errorf("SendSignals(nil) = %v, sent %d", err, len(fs.sent))
	}
}

func TestHandleCommand(t *testing.T) {
	fs := &fakeSender{}
	c := newClient(fs, 7, 1, time.Millisecond)
	c.SetStatusFunc(func() string { return "cycles ok" })

	var gotLimit int
	c.SetRecentFunc(func(limit int) ([]models.SignalRecord, error) {
		gotLimit = limit
		return []models.SignalRecord{{
			Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), MarketID: "m",
			Strategy: models.StrategyA2, Strength: 1, Details: "DEPTH_COLLAPSE",
		}}, nil
	})

	c.handleCommand(command("/ping"))
	c.handleCommand(command("/status"))
	c.handleCommand(command("/signals 3"))
	c.handleCommand(command("/unknown"))

	if len(fs.sent) != 3 {
		t.Fatalf("sent %d replies, want 3", len(fs.sent))
	}
	if fs.sent[0].Text != "Pong" || fs.sent[0].ChatID != 42 {
		t.Errorf("ping reply = %+v", fs.sent[0])
	}
	if fs.sent[1].Text != "cycles ok" {
		t.Errorf("status reply = %q", fs.sent[1].Text)
	}
	if gotLimit != 3 {
		t.Errorf("recent limit = %d, want 3", gotLimit)
	}
	if want := "03-01 09:00 A2 m 1.00 DEPTH_COLLAPSE"; fs.sent[2].Text != want {
		t.Errorf("signals reply = %q, want %q", fs.sent[2].Text, want)
	}
}

func TestHandleCommand_StatusDisabled(t *testing.T) {
	fs := &fakeSender{}
	c := newClient(fs, 7, 1, time.Millisecond)
	c.handleCommand(command("/status"))
	if len(fs.sent) != 0 {
		t.Errorf("unexpected reply %+v", fs.sent)
	}
}

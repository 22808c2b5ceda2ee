// Package telegram sends research signals and loop health notices through
// the Telegram Bot API and answers a few bot commands.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

const marketURLBase = "https://polymarket.com/market/"

// sender is the part of the bot API used for outgoing messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// StatusFunc renders the plain-text reply to /status.
type StatusFunc func() string

// RecentFunc returns the latest persisted signals for /signals.
type RecentFunc func(limit int) ([]models.SignalRecord, error)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	api            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	status StatusFunc
	recent RecentFunc
	now    func() time.Time
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := newClient(bot, chatIDInt, maxRetries, retryDelayBase)
	c.bot = bot
	return c, nil
}

func newClient(api sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		api:            api,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		now:            time.Now,
	}
}

// SetStatusFunc enables the /status command.
func (c *Client) SetStatusFunc(f StatusFunc) {
	c.status = f
}

// SetRecentFunc enables the /signals command.
func (c *Client) SetRecentFunc(f RecentFunc) {
	c.recent = f
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	if c.bot == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		if c.status == nil {
			return
		}
		text = c.status()
	case "signals":
		if c.recent == nil {
			return
		}
		limit := 5
		if n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments())); err == nil && n > 0 && n <= 50 {
			limit = n
		}
		signals, err := c.recent(limit)
		if err != nil {
			text = "Failed to load signals: " + err.Error()
			break
		}
		text = formatRecent(signals)
	default:
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := c.api.Send(reply); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.api.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Research loop error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Research loop recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendSignals sends one message listing the routed signals.
func (c *Client) SendSignals(signals []models.SignalRecord) error {
	if len(signals) == 0 {
		return nil
	}
	return c.sendMarkdownV2(c.formatSignals(signals))
}

// formatSignals formats signals into a Telegram MarkdownV2 message.
func (c *Client) formatSignals(signals []models.SignalRecord) string {
	var b strings.Builder
	b.WriteString("🚨 *Research signals*\n\n")

	ts := signals[0].Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", escapeMarkdownV2(ts.UTC().Format("2006-01-02 15:04:05")))

	for i, sig := range signals {
		fmt.Fprintf(&b, "%d\\. %s\n", i+1, marketLink(sig))

		switch sig.Strategy {
		case models.StrategyA2:
			emoji := "🔻"
			dir := "no direction"
			if sig.Direction != nil {
				dir = string(*sig.Direction)
				if *sig.Direction == models.FadeDown {
					emoji = "🔺"
				}
			}
			fmt.Fprintf(&b, "   %s *A2 fade* %s, strength %s\n",
				emoji, escapeMarkdownV2(dir), escapeMarkdownV2(fmt.Sprintf("%.2f", sig.Strength)))
		case models.StrategyH1:
			b.WriteString("   🧐 *H1 review candidate*\n")
		default:
			fmt.Fprintf(&b, "   *%s*\n", escapeMarkdownV2(string(sig.Strategy)))
		}

		info := fmt.Sprintf("%s score %.2f", sig.Regime, sig.BotScore)
		if sig.Mid != nil {
			info += fmt.Sprintf(", mid %.3f", *sig.Mid)
		}
		fmt.Fprintf(&b, "   %s\n", escapeMarkdownV2(info))
		if sig.Details != "" {
			fmt.Fprintf(&b, "   `%s`\n", escapeMarkdownV2(sig.Details))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func marketLink(sig models.SignalRecord) string {
	if sig.Slug == "" {
		return escapeMarkdownV2(sig.MarketID)
	}
	return fmt.Sprintf("[%s](%s)", escapeMarkdownV2(sig.Slug), marketURLBase+sig.Slug)
}

// formatRecent renders signals as plain text for command replies.
func formatRecent(signals []models.SignalRecord) string {
	if len(signals) == 0 {
		return "No signals recorded yet."
	}
	var b strings.Builder
	for _, sig := range signals {
		name := sig.Slug
		if name == "" {
			name = sig.MarketID
		}
		fmt.Fprintf(&b, "%s %s %s %.2f %s\n",
			sig.Timestamp.UTC().Format("01-02 15:04"), sig.Strategy, name, sig.Strength, sig.Details)
	}
	return strings.TrimRight(b.String(), "\n")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

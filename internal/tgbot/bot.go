package tgbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coinrush/internal/config"
	"coinrush/internal/economy"
)

// Bot runs the Telegram side of the game: the /start entry point that
// hands players their referral deep link and the web app button, plus
// milestone notifications pushed from the economy engine.
type Bot struct {
	Cfg   config.Config
	Store economy.Store
	Bot   *tgbotapi.BotAPI
}

func New(cfg config.Config, store economy.Store) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	return &Bot{Cfg: cfg, Store: store, Bot: bot}, nil
}

func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.Bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				b.handleUpdate(ctx, upd)
			}
		}
	}()
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		payload := strings.TrimSpace(msg.CommandArguments())
		if err := b.onStart(ctx, msg, payload); err != nil {
			log.Printf("tgbot: /start for %d: %v", msg.From.ID, err)
		}
	case "invite":
		link := b.referralLink(msg.From.ID)
		text := "Invite friends and earn rewards!\n\nYour invite link:\n" + link +
			"\n\nEvery 5 friends you bring in earns you a free spin."
		_ = b.sendMessage(msg.Chat.ID, text, "")
	default:
	}
}

func (b *Bot) onStart(ctx context.Context, msg *tgbotapi.Message, payload string) error {
	from := msg.From

	name := strings.TrimSpace(from.FirstName)
	if name == "" {
		name = from.UserName
	}

	var balanceLine string
	if user, err := b.Store.FindUserByTelegramID(ctx, strconv.FormatInt(from.ID, 10)); err == nil && user != nil {
		balanceLine = fmt.Sprintf("\n💰 Balance: %d coins\n⚡ Profit: %d/hour", user.Coins, user.ProfitPerHour)
	}

	text := fmt.Sprintf(
		"Welcome to CoinRush, %s!\n%s\nTap to earn coins, buy cards to grow your hourly profit, and complete tasks for rewards.\n\n👥 Your invite link:\n%s",
		name,
		balanceLine,
		b.referralLink(from.ID),
	)

	return b.sendMessage(msg.Chat.ID, text, b.mainKeyboardJSON(payload))
}

// ReferralMilestone tells the referrer a free spin landed. Implements the
// api server's notifier; failures are logged, never surfaced to the signup.
func (b *Bot) ReferralMilestone(ctx context.Context, telegramID string, referralCount, freeSpins int64) {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil || chatID <= 0 {
		return
	}
	text := fmt.Sprintf(
		"🎉 You reached %d referrals and earned a free spin!\nFree spins available: %d",
		referralCount, freeSpins,
	)
	if err := b.sendMessage(chatID, text, ""); err != nil {
		log.Printf("tgbot: milestone notify %s: %v", telegramID, err)
	}
}

func (b *Bot) referralLink(telegramID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", b.Bot.Self.UserName, telegramID)
}

type webAppInfo struct {
	URL string `json:"url"`
}

type inlineButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// mainKeyboardJSON builds the web app button. A /start payload carries the
// referrer's id; it is forwarded as a query param so the mini app can pass
// it back through auth.
func (b *Bot) mainKeyboardJSON(refPayload string) string {
	webappURL := strings.TrimRight(b.Cfg.WebAppURL, "/")
	if ref := parseRef(refPayload); ref > 0 {
		sep := "?"
		if strings.Contains(webappURL, "?") {
			sep = "&"
		}
		webappURL = webappURL + sep + "ref=" + strconv.FormatInt(ref, 10)
	}

	rows := [][]inlineButton{
		{{Text: "🎮 Play CoinRush", WebApp: &webAppInfo{URL: webappURL}}},
	}
	bts, err := json.Marshal(inlineMarkup{InlineKeyboard: rows})
	if err != nil {
		return ""
	}
	return string(bts)
}

func parseRef(payload string) int64 {
	payload = strings.TrimSpace(payload)
	payload = strings.TrimPrefix(payload, "ref_")
	id, _ := strconv.ParseInt(payload, 10, 64)
	if id <= 0 {
		return 0
	}
	return id
}

func (b *Bot) sendMessage(chatID int64, text string, replyMarkup string) error {
	params := tgbotapi.Params{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}
	if replyMarkup != "" {
		params["reply_markup"] = replyMarkup
	}
	_, err := b.Bot.MakeRequest("sendMessage", params)
	return err
}

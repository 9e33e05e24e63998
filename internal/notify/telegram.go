package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pepitohq/pepitobot/internal/config"
	"github.com/pepitohq/pepitobot/internal/fetch"
)

// BotAPI is the slice of the Telegram client the bot uses. Mirrors
// tgbotapi.BotAPI so tests can substitute a fake.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

type botWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *botWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *botWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *botWrapper) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(cfg)
}

func (w *botWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

func (w *botWrapper) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return w.bot.GetChatMember(cfg)
}

// BotFactory creates BotAPI instances (allows mocking)
type BotFactory func(token string, client *http.Client) (BotAPI, error)

var DefaultBotFactory BotFactory = func(token string, client *http.Client) (BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &botWrapper{bot: bot}, nil
}

// Notifier delivers captions and media to Telegram chats. One delivery is
// one recipient; callers decide how to fan out and how to treat failures.
type Notifier struct {
	bot     BotAPI
	fetcher *fetch.Client
}

func New(cfg *config.Config, factory BotFactory) (*Notifier, error) {
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if factory == nil {
		factory = DefaultBotFactory
	}
	bot, err := factory(cfg.Telegram.Token, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("[notify] authorized as @%s", bot.GetSelf().UserName)
	return &Notifier{
		bot:     bot,
		fetcher: fetch.NewClient(cfg.Retry, 10*time.Second),
	}, nil
}

// NewWithBot wires an already constructed client (used by the command
// layer, which shares one bot connection with the notifier).
func NewWithBot(bot BotAPI, fetcher *fetch.Client) *Notifier {
	return &Notifier{bot: bot, fetcher: fetcher}
}

func (n *Notifier) Bot() BotAPI { return n.bot }

// DeliverUpdate sends the caption with the event photo. The image is
// fetched here so Telegram gets bytes rather than a URL it may refuse; if
// the fetch fails the caption still goes out as plain text.
func (n *Notifier) DeliverUpdate(chatID int64, imgURL, caption string) error {
	data, err := n.fetcher.Get(context.Background(), imgURL)
	if err != nil {
		log.Printf("[notify] image fetch for chat %d failed: %v", chatID, err)
		return n.DeliverText(chatID, caption+"\n\n⚠️ Image unavailable")
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "pepito.jpg", Bytes: data})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}

// DeliverChart sends a rendered chart PNG.
func (n *Notifier) DeliverChart(chatID int64, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "btc.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("send chart to %d: %w", chatID, err)
	}
	return nil
}

// DeliverText sends an HTML-formatted message.
func (n *Notifier) DeliverText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

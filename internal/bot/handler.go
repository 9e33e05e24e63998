// Package bot is the Telegram command layer: parses commands, checks
// authorization and answers on-demand status queries from the event log.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pepitohq/pepitobot/internal/chart"
	"github.com/pepitohq/pepitobot/internal/config"
	"github.com/pepitohq/pepitobot/internal/notify"
	"github.com/pepitohq/pepitobot/internal/status"
	"github.com/pepitohq/pepitobot/internal/store"
)

// StatusStore is the read side of the event log the commands query.
type StatusStore interface {
	Last(typ store.EventType) (*store.Event, error)
	LastAny() (*store.Event, error)
	PreviousOpposite(typ store.EventType, before int64) (*store.Event, error)
}

// ChartRenderer matches the processor's chart collaborator.
type ChartRenderer interface {
	Render(ctx context.Context, start, end int64, durationLabel string, typ store.EventType) ([]byte, error)
}

type Handler struct {
	cfg      *config.Config
	bot      notify.BotAPI
	store    StatusStore
	notifier *notify.Notifier
	charts   ChartRenderer
	now      func() time.Time
}

func NewHandler(cfg *config.Config, notifier *notify.Notifier, st StatusStore, charts ChartRenderer) *Handler {
	return &Handler{
		cfg:      cfg,
		bot:      notifier.Bot(),
		store:    st,
		notifier: notifier,
		charts:   charts,
		now:      time.Now,
	}
}

// Run polls for updates until ctx is cancelled. Callers restart it on
// error; one polling failure must not take the relay pipeline down.
func (h *Handler) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = h.cfg.Telegram.PollingTimeout
	updates := h.bot.GetUpdatesChan(u)
	defer h.bot.StopReceivingUpdates()

	log.Printf("[bot] polling started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("updates channel closed")
			}
			if update.Message == nil {
				continue
			}
			h.handleMessage(ctx, update.Message)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())
	if cmd == "" {
		// Reply-keyboard buttons arrive as plain text.
		switch msg.Text {
		case "🐱 Check Status":
			cmd = "status"
		case "🏠 Start":
			cmd = "start"
		case "❓ Help":
			cmd = "help"
		default:
			return
		}
	}

	switch cmd {
	case "start", "start_pepito":
		if !h.authorize(msg) {
			return
		}
		h.cmdStart(msg)
	case "help", "help_pepito":
		if !h.authorize(msg) {
			return
		}
		h.cmdHelp(msg)
	case "status":
		if !h.authorize(msg) {
			return
		}
		h.cmdStatus(msg)
	case "stats", "statistics":
		if !h.authorize(msg) {
			return
		}
		h.cmdStats(msg)
	case "last_seen":
		if !h.authorize(msg) {
			return
		}
		h.cmdLastSeen(msg)
	case "meme", "pepito":
		if !h.authorize(msg) {
			return
		}
		h.cmdMeme(msg)
	case "satoshi", "btc":
		if !h.isAdmin(msg.From.ID) && !h.isGroupAdmin(msg.From.ID, msg.Chat.ID) {
			return
		}
		h.cmdSatoshi(ctx, msg)
	case "gif":
		if !h.isAdmin(msg.From.ID) {
			return
		}
		h.cmdGIF(msg)
	}
}

func isGroupChat(msg *tgbotapi.Message) bool {
	return msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
}

func menuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🏠 Start"),
			tgbotapi.NewKeyboardButton("❓ Help"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("🐱 Check Status"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func (h *Handler) cmdStart(msg *tgbotapi.Message) {
	var text string
	if isGroupChat(msg) {
		text = "🐱 Pépito Bot is now active in this group!\n\n" +
			"Available commands (view more in /help):\n" +
			"• /status - Check Pépito's current status\n" +
			"• /last_seen - Check Pépito's last activity\n" +
			"• /help - Show available commands"
	} else {
		text = "Welcome to Pépito Bot! 🐱\n\n" +
			"Available commands (view more in /help):\n" +
			"• /status - Check Pépito's status\n" +
			"• /last_seen - Check Pépito's last activity\n" +
			"• /help - Show all commands\n\n" +
			"You can also use the menu button below!"
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	if !isGroupChat(msg) {
		out.ReplyMarkup = menuKeyboard()
	}
	if _, err := h.bot.Send(out); err != nil {
		log.Printf("[bot] start reply failed: %v", err)
	}
}

func (h *Handler) cmdHelp(msg *tgbotapi.Message) {
	text := "📋 <b>Available Commands</b>\n\n" +
		"• /status - Check Pépito's current status\n" +
		"• /stats - Pépito's recent activity\n" +
		"• /last_seen - Pépito's last activity\n" +
		"• /meme - Get a random Pépito meme\n" +
		"• /pepito - Status with a Pépito meme\n" +
		"• /satoshi - Bitcoin price chart\n\n" +
		"• /help - Show this help message"

	if !isGroupChat(msg) && h.isAdmin(msg.From.ID) {
		text += "\n\n🔧 <b>Admin Commands</b>\n" +
			"• /gif - Send random GIF"
	}

	if err := h.notifier.DeliverText(msg.Chat.ID, text); err != nil {
		log.Printf("[bot] help reply failed: %v", err)
	}
}

func (h *Handler) cmdStatus(msg *tgbotapi.Message) {
	last, err := h.store.LastAny()
	if err != nil {
		log.Printf("[bot] status query failed: %v", err)
		h.replyText(msg, "Failed to get status.")
		return
	}
	if last == nil {
		h.replyText(msg, "No recorded activity for Pépito yet.")
		return
	}

	location := "Outside 🌳"
	if last.Type == store.EventIn {
		location = "Inside 🏠"
	}
	caption := fmt.Sprintf(
		"😸 <b>Pépito Status Update:</b>\n"+
			"🐈‍⬛🐈‍⬛🐈‍⬛   🐈‍⬛🐈‍⬛🐈‍⬛   🐈‍⬛🐈‍⬛🐈‍⬛\n\n"+
			"Currently: <b>%s</b>\n\n"+
			"Since: %s",
		location, status.Timestamp(last.Time),
	)

	if err := h.notifier.DeliverUpdate(msg.Chat.ID, last.Img, caption); err != nil {
		log.Printf("[bot] status delivery failed: %v", err)
	}
}

func (h *Handler) cmdStats(msg *tgbotapi.Message) {
	snap, err := status.Current(h.store, h.now())
	if err != nil {
		log.Printf("[bot] stats query failed: %v", err)
		h.replyText(msg, "Failed to get statistics.")
		return
	}

	caption := "🐾 <b>Pépito's Recent Activity</b> 🐾\n\n" +
		"🐈‍⬛🐈‍⬛🐈‍⬛   🐈‍⬛🐈‍⬛🐈‍⬛   🐈‍⬛🐈‍⬛🐈‍⬛\n\n" +
		status.Text(snap)

	if snap != nil && snap.Img != "" {
		if err := h.notifier.DeliverUpdate(msg.Chat.ID, snap.Img, caption); err != nil {
			log.Printf("[bot] stats delivery failed: %v", err)
		}
		return
	}
	if err := h.notifier.DeliverText(msg.Chat.ID, caption); err != nil {
		log.Printf("[bot] stats delivery failed: %v", err)
	}
}

func (h *Handler) cmdLastSeen(msg *tgbotapi.Message) {
	lastIn, err := h.store.Last(store.EventIn)
	if err != nil {
		log.Printf("[bot] last_seen query failed: %v", err)
		h.replyText(msg, "Failed to get last activity.")
		return
	}
	lastOut, err := h.store.Last(store.EventOut)
	if err != nil {
		log.Printf("[bot] last_seen query failed: %v", err)
		h.replyText(msg, "Failed to get last activity.")
		return
	}
	if lastIn == nil && lastOut == nil {
		h.replyText(msg, "No recorded activity for Pépito yet.")
		return
	}

	now := h.now().Unix()
	var sb strings.Builder
	sb.WriteString("🐾 <b>Pépito's Last Activity</b>\n\n")
	if lastIn != nil {
		sb.WriteString(fmt.Sprintf("🏠 Last entry: %s (%s ago)\n",
			status.Timestamp(lastIn.Time), status.FormatDuration(now-lastIn.Time)))
	}
	if lastOut != nil {
		sb.WriteString(fmt.Sprintf("🌳 Last exit: %s (%s ago)\n",
			status.Timestamp(lastOut.Time), status.FormatDuration(now-lastOut.Time)))
	}

	if err := h.notifier.DeliverText(msg.Chat.ID, sb.String()); err != nil {
		log.Printf("[bot] last_seen delivery failed: %v", err)
	}
}

func (h *Handler) cmdSatoshi(ctx context.Context, msg *tgbotapi.Message) {
	last, err := h.store.LastAny()
	if err != nil {
		log.Printf("[bot] satoshi query failed: %v", err)
		h.replyText(msg, "Failed to process request.")
		return
	}
	if last == nil {
		h.replyText(msg, "No recorded activity for Pépito yet.")
		return
	}

	now := h.now().Unix()
	durationLabel := status.FormatDuration(now - last.Time)

	loading, loadingErr := h.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "🔄 Generating Bitcoin price chart..."))

	png, err := h.charts.Render(ctx, last.Time, now, durationLabel, last.Type)
	switch {
	case err != nil:
		log.Printf("[bot] chart render failed: %v", err)
		h.replyText(msg, "Failed to generate chart.")
	case png == nil:
		// Render skipped on purpose (feature flag), not a failure.
		h.replyText(msg, "📊 Bitcoin charts are currently disabled.")
	default:
		if err := h.notifier.DeliverChart(msg.Chat.ID, png, chart.Caption(last.Type, durationLabel)); err != nil {
			log.Printf("[bot] chart delivery failed: %v", err)
		}
	}

	if loadingErr == nil {
		if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, loading.MessageID)); err != nil {
			log.Printf("[bot] delete loading message failed: %v", err)
		}
	}
}

func (h *Handler) replyText(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := h.bot.Send(reply); err != nil {
		log.Printf("[bot] reply failed: %v", err)
	}
}

package bot

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pepitohq/pepitobot/internal/status"
)

// authorize checks the chat against the configured audience. Unauthorized
// attempts get a rejection reply and the devs get a heads-up.
func (h *Handler) authorize(msg *tgbotapi.Message) bool {
	if containsID(h.cfg.Telegram.AuthorizedGroups, msg.Chat.ID) ||
		containsID(h.cfg.Telegram.AuthorizedUsers, msg.From.ID) {
		return true
	}

	h.notifyUnauthorized(msg)
	h.replyText(msg,
		"⚠️ Pépito's Tracking bot is not authorized for this chat.\n\n"+
			"The bot administrator has been notified of your request.\n\n"+
			"For immediate access, join the Telegram Community @PepitoTheCatcto.\n\n"+
			"🐾🐾🐾  🐾🐾🐾  🐾🐾🐾")
	return false
}

func (h *Handler) isAdmin(userID int64) bool {
	return containsID(h.cfg.Telegram.GroupAdmins, userID)
}

// isGroupAdmin asks Telegram whether the user administers an authorized
// group chat.
func (h *Handler) isGroupAdmin(userID, chatID int64) bool {
	if !containsID(h.cfg.Telegram.AuthorizedGroups, chatID) {
		return false
	}

	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		log.Printf("[bot] group admin check failed: %v", err)
		return false
	}
	return member.Status == "administrator" || member.Status == "creator"
}

func (h *Handler) notifyUnauthorized(msg *tgbotapi.Message) {
	user := msg.From
	chat := msg.Chat

	username := "None"
	if user.UserName != "" {
		username = "@" + user.UserName
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	chatTitle := "Private Chat"
	if chat.Type != "private" {
		chatTitle = chat.Title
	}

	notification := fmt.Sprintf(
		"🚨 <b>Unauthorized Access Attempt</b>\n\n"+
			"<b>User Information:</b>\n"+
			"• ID: <code>%d</code>\n"+
			"• Username: %s\n"+
			"• Name: %s\n\n"+
			"<b>Chat Information:</b>\n"+
			"• Chat ID: <code>%d</code>\n"+
			"• Chat Type: %s\n"+
			"• Chat Title: %s\n\n"+
			"<b>Command Used:</b> %s\n"+
			"<b>Time:</b> %s",
		user.ID, username, name,
		chat.ID, chat.Type, chatTitle,
		msg.Text, status.Timestamp(h.now().Unix()),
	)

	for _, devID := range h.cfg.Telegram.Devs {
		if err := h.notifier.DeliverText(devID, notification); err != nil {
			log.Printf("[bot] failed to notify dev %d: %v", devID, err)
		}
	}
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

package bot

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pepitohq/pepitobot/internal/assets"
	"github.com/pepitohq/pepitobot/internal/status"
	"github.com/pepitohq/pepitobot/internal/store"
)

func (h *Handler) cmdMeme(msg *tgbotapi.Message) {
	path, err := assets.RandomImage(h.cfg.Storage.ImagesDir)
	if err != nil {
		log.Printf("[bot] meme lookup failed: %v", err)
		h.replyText(msg, "😿 No images available.")
		return
	}

	location := "unknown"
	if last, err := h.store.LastAny(); err == nil && last != nil {
		location = "Outside 🌳"
		if last.Type == store.EventIn {
			location = "Inside 🏠"
		}
	}

	caption := fmt.Sprintf(
		"😸 <b>Pépito's Current Situation:</b>\n\n"+
			"🐾🐾🐾  🐾🐾🐾  🐾🐾🐾\n\n"+
			"Status: <b>%s</b>\n\n"+
			"Time: %s",
		location, status.Timestamp(h.now().Unix()),
	)

	if err := h.sendLocalMedia(msg.Chat.ID, path, caption); err != nil {
		log.Printf("[bot] meme delivery failed: %v", err)
		h.replyText(msg, "Failed to send meme.")
	}
}

func (h *Handler) cmdGIF(msg *tgbotapi.Message) {
	path, err := assets.RandomGIF(h.cfg.Storage.ImagesDir)
	if err != nil {
		log.Printf("[bot] gif lookup failed: %v", err)
		h.replyText(msg, "😿 No GIFs available.")
		return
	}

	if err := h.sendLocalMedia(msg.Chat.ID, path, "🐱 Pépito GIF!"); err != nil {
		log.Printf("[bot] gif delivery failed: %v", err)
		h.replyText(msg, "Failed to send GIF.")
	}
}

// sendLocalMedia sends a file from the images directory, as an animation
// when it is a gif.
func (h *Handler) sendLocalMedia(chatID int64, path, caption string) error {
	if assets.IsGIF(path) {
		anim := tgbotapi.NewAnimation(chatID, tgbotapi.FilePath(path))
		anim.Caption = caption
		anim.ParseMode = tgbotapi.ModeHTML
		_, err := h.bot.Send(anim)
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	_, err := h.bot.Send(photo)
	return err
}

package app

import (
	"fmt"
	"log"
	"time"

	"github.com/pepitohq/pepitobot/internal/status"
	"github.com/pepitohq/pepitobot/internal/store"
)

// sendDigest posts a daily recap to every recipient: how often the door
// swung in each direction over the past day, plus the current status.
func (a *App) sendDigest() {
	now := time.Now()
	since := now.Add(-24 * time.Hour).Unix()

	entries, err := a.store.CountSince(store.EventIn, since)
	if err != nil {
		log.Printf("[digest] count entries failed: %v", err)
		return
	}
	exits, err := a.store.CountSince(store.EventOut, since)
	if err != nil {
		log.Printf("[digest] count exits failed: %v", err)
		return
	}

	snap, err := status.Current(a.store, now)
	if err != nil {
		log.Printf("[digest] status lookup failed: %v", err)
		return
	}

	text := fmt.Sprintf(
		"📅 <b>Pépito Daily Digest</b>\n\n"+
			"🏠 Entries in the last 24h: <b>%d</b>\n"+
			"🌳 Exits in the last 24h: <b>%d</b>\n\n%s",
		entries, exits, status.Text(snap),
	)

	delivered, failed := 0, 0
	for _, chatID := range a.cfg.Recipients() {
		if err := a.notifier.DeliverText(chatID, text); err != nil {
			log.Printf("[digest] delivery to %d failed: %v", chatID, err)
			failed++
			continue
		}
		delivered++
	}
	log.Printf("[digest] delivered %d, failed %d", delivered, failed)
}

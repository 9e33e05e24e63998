// Package status derives Pépito's current whereabouts from the event log.
// There is no stored "current state" row; everything here is computed from
// the most recent events, so the log can never disagree with the status.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/pepitohq/pepitobot/internal/store"
)

// Snapshot is the derived location state at a point in time.
type Snapshot struct {
	Location          store.EventType
	Since             int64 // unix seconds of the latest transition
	CurrentDuration   int64 // seconds spent in the current location
	LastTransition    int64 // seconds of the prior opposite segment, 0 if unknown
	HasLastTransition bool
	Img               string
}

// Reader is the subset of the event store the engine needs.
type Reader interface {
	LastAny() (*store.Event, error)
	PreviousOpposite(typ store.EventType, before int64) (*store.Event, error)
}

// Current computes the snapshot as of now. A nil snapshot with nil error
// means no activity has been recorded yet.
func Current(r Reader, now time.Time) (*Snapshot, error) {
	last, err := r.LastAny()
	if err != nil {
		return nil, fmt.Errorf("last event: %w", err)
	}
	if last == nil {
		return nil, nil
	}

	snap := &Snapshot{
		Location:        last.Type,
		Since:           last.Time,
		CurrentDuration: now.Unix() - last.Time,
		Img:             last.Img,
	}

	prev, err := r.PreviousOpposite(last.Type, last.Time)
	if err != nil {
		return nil, fmt.Errorf("previous opposite event: %w", err)
	}
	if prev != nil {
		snap.LastTransition = last.Time - prev.Time
		snap.HasLastTransition = true
	}
	return snap, nil
}

// FormatDuration renders a duration in seconds using at most the two
// largest non-zero units among days, hours and minutes. Seconds only show
// up when nothing larger is non-zero. Negative input is treated as clock
// skew, not an error.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		return "just now"
	}

	days := seconds / 86400
	remaining := seconds % 86400
	hours := remaining / 3600
	remaining %= 3600
	minutes := remaining / 60
	secs := remaining % 60

	parts := make([]string, 0, 2)
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 && len(parts) < 2 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 && len(parts) < 2 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		if secs > 0 {
			return plural(secs, "second")
		}
		return "just now"
	}
	return strings.Join(parts, " and ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Text renders the rich status body used by the /stats command and the
// digest.
func Text(snap *Snapshot) string {
	if snap == nil {
		return "No recorded activity for Pépito yet."
	}

	var sb strings.Builder
	if snap.Location == store.EventIn {
		sb.WriteString("🏠 <b>Pépito is currently INSIDE</b>")
	} else {
		sb.WriteString("🌳 <b>Pépito is currently OUTSIDE</b>")
	}

	sb.WriteString("\n<b>Duration:</b> <i>")
	sb.WriteString(FormatDuration(snap.CurrentDuration))
	sb.WriteString("</i>")

	if snap.HasLastTransition {
		segment := "Outdoor"
		if snap.Location == store.EventOut {
			segment = "Indoor"
		}
		sb.WriteString(fmt.Sprintf("\n<b>Last %s duration:</b> <i>%s</i>", segment, FormatDuration(snap.LastTransition)))
	}
	return sb.String()
}

// UpdateCaption builds the push caption for a freshly ingested transition.
func UpdateCaption(typ store.EventType, occurredAt int64, duration string) string {
	var sb strings.Builder
	sb.WriteString("😸 <b>Pépito Status Update:</b>\n")
	sb.WriteString("🐾🐾🐾  🐾🐾🐾  🐾🐾🐾\n\n")
	if typ == store.EventIn {
		sb.WriteString("Pépito is back <b>Inside 🏠</b>\n\n")
		if duration != "" {
			sb.WriteString(fmt.Sprintf("Time spent outside: <i>%s</i>\n\n", duration))
		}
	} else {
		sb.WriteString("Pépito went <b>Outside 🌳</b>\n\n")
		if duration != "" {
			sb.WriteString(fmt.Sprintf("Time spent inside: <i>%s</i>\n\n", duration))
		}
	}
	sb.WriteString("Since: ")
	sb.WriteString(Timestamp(occurredAt))
	return sb.String()
}

// Timestamp formats a unix time the way every caption does.
func Timestamp(unixSec int64) string {
	return time.Unix(unixSec, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

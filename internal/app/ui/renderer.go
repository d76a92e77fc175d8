// Package ui renders session snapshots into the player view. Rendering
// is pure: the same snapshot always produces the same view, so the
// Discord layer can compare views and skip redundant message edits.
package ui

import (
	"fmt"
	"strings"

	"github.com/tunebox-bot/tunebox/internal/app/session"
	"github.com/tunebox-bot/tunebox/internal/domain/track"
)

// DefaultPageSize is the queue window length when none is configured.
const DefaultPageSize = 10

// Buttons describes the interactive control row.
type Buttons struct {
	PrevEnabled      bool
	PlayPauseEnabled bool
	PlayPauseLabel   string // "Pause" while playing, "Play" otherwise
	NextEnabled      bool
	StopEnabled      bool
	RepeatActive     bool
	AutoplayActive   bool
}

// QueueLine is one rendered row of the queue window.
type QueueLine struct {
	Position int // 1-based
	Title    string
	Duration string
	Current  bool
}

// View is the complete rendered player state.
type View struct {
	Header     string
	TrackTitle string
	TrackURL   string
	Thumbnail  string
	Duration   string
	Requester  string
	Volume     string
	QueueLines []QueueLine
	Page       int
	PageCount  int
	Footer     string
	Buttons    Buttons
}

// Renderer renders snapshots with a fixed queue page size.
type Renderer struct {
	pageSize int
}

// NewRenderer creates a renderer. pageSize <= 0 uses the default.
func NewRenderer(pageSize int) *Renderer {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Renderer{pageSize: pageSize}
}

// Render builds the view for the queue page containing the current
// track.
func (r *Renderer) Render(snap session.Snapshot) View {
	return r.RenderPage(snap, pageOf(snap.Cursor, r.pageSize))
}

// RenderPage builds the view for a specific queue page (1-based).
// Out-of-range pages clamp to the nearest valid page.
func (r *Renderer) RenderPage(snap session.Snapshot, page int) View {
	v := View{
		Header:  header(snap.Status),
		Volume:  fmt.Sprintf("%d%%", int(snap.Volume*100+0.5)),
		Buttons: buttons(snap),
	}

	if cur, ok := snap.Current(); ok {
		v.TrackTitle = cur.Title
		v.TrackURL = cur.URL
		v.Thumbnail = cur.Thumbnail
		v.Duration = track.FormatDuration(cur.Duration)
		v.Requester = cur.Requester.Name
	}

	v.PageCount = pageCount(len(snap.Tracks), r.pageSize)
	v.Page = clampPage(page, v.PageCount)
	v.QueueLines = r.queueWindow(snap, v.Page)
	v.Footer = footer(snap, v.Page, v.PageCount)
	return v
}

// PageSize returns the configured queue window length.
func (r *Renderer) PageSize() int {
	return r.pageSize
}

func (r *Renderer) queueWindow(snap session.Snapshot, page int) []QueueLine {
	start := (page - 1) * r.pageSize
	if start < 0 || start >= len(snap.Tracks) {
		return nil
	}
	end := start + r.pageSize
	if end > len(snap.Tracks) {
		end = len(snap.Tracks)
	}

	lines := make([]QueueLine, 0, end-start)
	for i := start; i < end; i++ {
		t := snap.Tracks[i]
		lines = append(lines, QueueLine{
			Position: i + 1,
			Title:    t.Title,
			Duration: track.FormatDuration(t.Duration),
			Current:  i == snap.Cursor,
		})
	}
	return lines
}

func header(s session.Status) string {
	switch s {
	case session.StatusPlaying:
		return "▶️ Now Playing"
	case session.StatusPaused:
		return "⏸️ Paused"
	case session.StatusTransitioning:
		return "⏳ Loading..."
	default:
		return "💤 Idle"
	}
}

func buttons(snap session.Snapshot) Buttons {
	_, hasCurrent := snap.Current()
	label := "Play"
	if snap.Status == session.StatusPlaying {
		label = "Pause"
	}
	return Buttons{
		PrevEnabled:      snap.Cursor > 0 && len(snap.Tracks) > 0,
		PlayPauseEnabled: hasCurrent,
		PlayPauseLabel:   label,
		NextEnabled:      snap.HasNext() || (snap.Autoplay && hasCurrent),
		StopEnabled:      hasCurrent,
		RepeatActive:     snap.Repeat,
		AutoplayActive:   snap.Autoplay,
	}
}

func footer(snap session.Snapshot, page, pageCount int) string {
	parts := []string{fmt.Sprintf("%d in queue", len(snap.Tracks))}
	if pageCount > 1 {
		parts = append(parts, fmt.Sprintf("page %d/%d", page, pageCount))
	}
	if snap.Repeat {
		parts = append(parts, "🔂 repeat")
	}
	if snap.Autoplay {
		parts = append(parts, "♾️ autoplay")
	}
	return strings.Join(parts, " • ")
}

func pageOf(cursor, pageSize int) int {
	if cursor < 0 {
		return 1
	}
	return cursor/pageSize + 1
}

func pageCount(n, pageSize int) int {
	if n == 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

func clampPage(page, pageCount int) int {
	if page < 1 {
		return 1
	}
	if page > pageCount {
		return pageCount
	}
	return page
}

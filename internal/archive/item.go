// Package archive keeps the HTML timeline of recent headlines. The rendered
// document is the only persisted state: every run reads the prior items back
// out of it, prepends the new batch, caps the list and rewrites the file.
package archive

import (
	"strings"
	"time"

	"github.com/deusflow/feedwatch/internal/news"
)

// Item is one headline block in the archive.
type Item struct {
	Time     string `json:"time"` // 15:04 in the display zone
	Date     string `json:"date"` // 2006-01-02 in the display zone
	Source   string `json:"source"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Original string `json:"original"`
}

func FromRecord(r news.Record, loc *time.Location) Item {
	if loc == nil {
		loc = time.UTC
	}
	t := r.PublishedAt.In(loc)
	title := oneLine(r.TitleDisplay)
	if title == "" {
		title = oneLine(r.TitleOriginal)
	}
	return Item{
		Time:     t.Format("15:04"),
		Date:     t.Format("2006-01-02"),
		Source:   oneLine(r.SourceLabel),
		Title:    title,
		Link:     strings.TrimSpace(r.Link),
		Original: oneLine(r.TitleOriginal),
	}
}

// oneLine collapses whitespace runs so a rendered field parses back unchanged.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FromRecords converts a newest-first batch, keeping its order.
func FromRecords(records []news.Record, loc *time.Location) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, FromRecord(r, loc))
	}
	return items
}

// Merge prepends newest to old and keeps at most max items. Both inputs are
// newest-first; anything past max is dropped from the tail.
func Merge(newest, old []Item, max int) []Item {
	out := make([]Item, 0, len(newest)+len(old))
	out = append(out, newest...)
	out = append(out, old...)
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

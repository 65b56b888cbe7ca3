// Package news turns fetched feeds into ordered, filtered records.
package news

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/feedwatch/internal/rss"
)

// Record is one feed entry that survived normalization.
type Record struct {
	TitleOriginal string
	TitleDisplay  string // set once by the translation stage
	Link          string
	PublishedAt   time.Time
	SourceLabel   string
}

// Normalizer converts fetched feeds into records.
type Normalizer struct {
	Labels     Labels
	MaxEntries int
	Now        func() time.Time
}

// Normalize labels the feed and converts its first MaxEntries entries.
// A nil or empty feed yields no records. Entries without a title are
// dropped; entries without a timestamp are stamped with the current time.
func (n Normalizer) Normalize(feed *rss.Feed) []Record {
	if feed == nil || len(feed.Entries) == 0 {
		return nil
	}

	label := n.Labels.Classify(feed.Title)
	entries := feed.Entries
	if n.MaxEntries > 0 && len(entries) > n.MaxEntries {
		entries = entries[:n.MaxEntries]
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		title := strings.Join(strings.Fields(e.Title), " ")
		if title == "" {
			continue
		}
		published := now().UTC()
		if e.Published != nil {
			published = e.Published.UTC()
		}
		records = append(records, Record{
			TitleOriginal: title,
			Link:          e.Link,
			PublishedAt:   published,
			SourceLabel:   label,
		})
	}
	return records
}

// Collect normalizes and filters every successful fetch result, keeping
// feed-list order, then sorts the buffer ascending by publication time.
// Failed fetches contribute nothing.
func Collect(results []rss.Result, n Normalizer, w Window, log *slog.Logger) (fetched int, admitted []Record) {
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		records := n.Normalize(r.Feed)
		fetched += len(records)
		kept := w.Filter(records)
		if log != nil && len(records) > 0 {
			log.Debug("news: feed filtered", "url", r.URL, "candidates", len(records), "admitted", len(kept))
		}
		admitted = append(admitted, kept...)
	}
	SortAscending(admitted)
	return fetched, admitted
}

// SortAscending orders records oldest first. Equal timestamps keep their
// input order.
func SortAscending(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.Before(records[j].PublishedAt)
	})
}

// NewestFirst returns a reversed copy of an ascending buffer.
func NewestFirst(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

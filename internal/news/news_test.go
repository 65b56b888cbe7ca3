package news

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/feedwatch/internal/rss"
)

var beijing = time.FixedZone("UTC+8", 8*3600)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// at returns the UTC instant whose +8 wall clock reads hh:mm on 2026-10-19.
func at(hh, mm int) time.Time {
	return time.Date(2026, 10, 19, hh, mm, 0, 0, beijing).UTC()
}

func window(now time.Time, lookback time.Duration) Window {
	return Window{Lookback: lookback, StartHour: 8, EndHour: 22, Location: beijing, Now: fixedClock(now)}
}

func TestClassifyDefaultLabels(t *testing.T) {
	labels := DefaultLabels()
	tests := []struct {
		title string
		want  string
	}{
		{"Bloomberg Markets", "彭博市场"},
		{"Bloomberg Economics", "彭博经济"},
		{"Bloomberg Politics", "彭博社"},
		{"Investing.com 中国 - 财经新闻", "英为财情"},
		{"Reuters: Business News RSS", "Reuters"},
		{"FT | Top Stories", "FT"},
		{"华尔街见闻 最新资讯 实时快讯频道", "华尔街见闻 最新资讯"},
		{"RSS Feed", "财经资讯"},
		{"", "财经资讯"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labels.Classify(tt.title), "title %q", tt.title)
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - match: Reuters
    label: 路透社
    children:
      - match: Markets
        label: 路透市场
fallback: 其他
`), 0o644))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, "路透市场", labels.Classify("Reuters Markets"))
	assert.Equal(t, "路透社", labels.Classify("Reuters World"))
	assert.Equal(t, "其他", labels.Classify("RSS"))
}

func TestLoadLabelsRejectsIncompleteRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - match: Reuters\n"), 0o644))

	_, err := LoadLabels(path)
	assert.Error(t, err)
}

func TestNormalizeTakesFirstEntriesAndStampsMissingTimes(t *testing.T) {
	now := at(10, 0)
	published := now.Add(-time.Minute)

	feed := &rss.Feed{Title: "Bloomberg Markets"}
	for i := 0; i < 7; i++ {
		e := rss.Entry{Title: fmt.Sprintf("entry %d", i), Link: fmt.Sprintf("https://example.com/%d", i)}
		if i != 2 {
			p := published
			e.Published = &p
		}
		feed.Entries = append(feed.Entries, e)
	}
	feed.Entries[1].Title = ""

	n := Normalizer{Labels: DefaultLabels(), MaxEntries: 5, Now: fixedClock(now)}
	records := n.Normalize(feed)

	require.Len(t, records, 4)
	assert.Equal(t, "entry 0", records[0].TitleOriginal)
	assert.Equal(t, "entry 2", records[1].TitleOriginal)
	assert.True(t, records[1].PublishedAt.Equal(now))
	assert.Equal(t, "entry 4", records[3].TitleOriginal)
	for _, r := range records {
		assert.Equal(t, "彭博市场", r.SourceLabel)
		assert.Empty(t, r.TitleDisplay)
	}
}

func TestNormalizeCollapsesTitleWhitespace(t *testing.T) {
	feed := &rss.Feed{Title: "Bloomberg", Entries: []rss.Entry{
		{Title: " Stocks rally\r\n  as yields\tfall ", Link: "https://example.com/1"},
		{Title: " \r\n ", Link: "https://example.com/2"},
	}}

	records := Normalizer{Labels: DefaultLabels(), Now: fixedClock(at(10, 0))}.Normalize(feed)
	require.Len(t, records, 1, "whitespace-only titles are dropped")
	assert.Equal(t, "Stocks rally as yields fall", records[0].TitleOriginal)
}

func TestNormalizeEmptyFeed(t *testing.T) {
	n := Normalizer{Labels: DefaultLabels(), MaxEntries: 5}
	assert.Empty(t, n.Normalize(nil))
	assert.Empty(t, n.Normalize(&rss.Feed{Title: "Bloomberg"}))
}

func TestWindowRecencyGate(t *testing.T) {
	now := at(12, 0)
	lookback := 16 * time.Minute
	w := window(now, lookback)

	var records []Record
	for offset := -30 * time.Minute; offset <= time.Minute; offset += 30 * time.Second {
		records = append(records, Record{TitleOriginal: offset.String(), PublishedAt: now.Add(offset)})
	}

	kept := w.Filter(records)
	require.NotEmpty(t, kept)
	cutoff := now.Add(-lookback)
	for _, r := range kept {
		assert.True(t, r.PublishedAt.After(cutoff), "record %s at cutoff or older was admitted", r.TitleOriginal)
	}
	// exactly at the cutoff is excluded, one tick later is included
	assert.False(t, w.Recent(cutoff, now))
	assert.True(t, w.Recent(cutoff.Add(time.Nanosecond), now))
}

func TestWindowActiveHoursGate(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		now := at(hour, 30)
		w := window(now, 24*time.Hour)
		records := []Record{{TitleOriginal: "fresh", PublishedAt: now.Add(-time.Minute)}}

		kept := w.Filter(records)
		if hour >= 8 && hour < 22 {
			assert.Len(t, kept, 1, "hour %d should be active", hour)
		} else {
			assert.Empty(t, kept, "hour %d should be inactive", hour)
		}
	}
}

func TestWindowBoundaries(t *testing.T) {
	w := window(time.Time{}, time.Minute)
	assert.True(t, w.Active(at(8, 0)))
	assert.True(t, w.Active(at(21, 59)))
	assert.False(t, w.Active(at(22, 0)))
	assert.False(t, w.Active(at(7, 59)))
}

func TestSortAscendingIsStable(t *testing.T) {
	base := at(10, 0)
	records := []Record{
		{TitleOriginal: "c", PublishedAt: base.Add(2 * time.Minute)},
		{TitleOriginal: "a1", PublishedAt: base},
		{TitleOriginal: "b", PublishedAt: base.Add(time.Minute)},
		{TitleOriginal: "a2", PublishedAt: base},
		{TitleOriginal: "a3", PublishedAt: base},
	}

	SortAscending(records)

	var order []string
	for i, r := range records {
		order = append(order, r.TitleOriginal)
		if i > 0 {
			assert.False(t, r.PublishedAt.Before(records[i-1].PublishedAt))
		}
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, order)
}

func TestNewestFirst(t *testing.T) {
	records := []Record{{TitleOriginal: "1"}, {TitleOriginal: "2"}, {TitleOriginal: "3"}}
	rev := NewestFirst(records)
	assert.Equal(t, "3", rev[0].TitleOriginal)
	assert.Equal(t, "1", rev[2].TitleOriginal)
	assert.Equal(t, "1", records[0].TitleOriginal, "input must not be modified")
}

func TestCollectSkipsFailedFeeds(t *testing.T) {
	now := at(10, 0)
	p1 := now.Add(-3 * time.Minute)
	p2 := now.Add(-time.Minute)
	results := []rss.Result{
		{URL: "u1", Err: errors.New("timeout")},
		{URL: "u2", Feed: &rss.Feed{Title: "Investing.com", Entries: []rss.Entry{
			{Title: "later", Link: "l2", Published: &p2},
			{Title: "earlier", Link: "l1", Published: &p1},
		}}},
	}

	n := Normalizer{Labels: DefaultLabels(), MaxEntries: 5, Now: fixedClock(now)}
	fetched, admitted := Collect(results, n, window(now, 16*time.Minute), nil)

	assert.Equal(t, 2, fetched)
	require.Len(t, admitted, 2)
	assert.Equal(t, "earlier", admitted[0].TitleOriginal)
	assert.Equal(t, "later", admitted[1].TitleOriginal)
	assert.Equal(t, "英为财情", admitted[0].SourceLabel)
}

package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/feedwatch/internal/news"
)

var cst = time.FixedZone("UTC+8", 8*3600)

func makeItems(prefix string, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Time:     fmt.Sprintf("%02d:%02d", (i/60)%24, i%60),
			Date:     fmt.Sprintf("2026-10-%02d", 19-i/200),
			Source:   "彭博社",
			Title:    fmt.Sprintf("%s 标题 %d", prefix, i),
			Link:     fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			Original: fmt.Sprintf("%s headline %d", prefix, i),
		}
	}
	return items
}

func makeRecords(prefix string, n int, newest time.Time) []news.Record {
	records := make([]news.Record, n)
	for i := range records {
		records[i] = news.Record{
			TitleOriginal: fmt.Sprintf("%s headline %d", prefix, i),
			TitleDisplay:  fmt.Sprintf("%s 标题 %d", prefix, i),
			Link:          fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			PublishedAt:   newest.Add(-time.Duration(i) * time.Minute),
			SourceLabel:   "英为财情",
		}
	}
	return records
}

func newEngine(t *testing.T, max int) (*Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	return &Engine{Store: NewFileStore(path, nil), Max: max, Location: cst}, path
}

func TestRenderParseRoundTrip(t *testing.T) {
	items := makeItems("old", 5)
	items[1].Title = `S&P 500 <创新高> "收盘"`
	items[2].Original = items[2].Title

	doc, err := Render(items)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `id="timeline"`)
	assert.NotContains(t, string(doc), "<创新高>", "titles must be escaped")

	got, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestRenderIsStableForMultilineTitles(t *testing.T) {
	r := news.Record{
		TitleOriginal: "Stocks rally\r\n  as yields fall",
		TitleDisplay:  "股市上涨\r\n收益率下降",
		Link:          "https://example.com/1",
		PublishedAt:   time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC),
		SourceLabel:   "彭博社",
	}
	item := FromRecord(r, time.FixedZone("UTC+8", 8*3600))
	assert.Equal(t, "Stocks rally as yields fall", item.Original)
	assert.Equal(t, "股市上涨 收益率下降", item.Title)

	first, err := Render([]Item{item})
	require.NoError(t, err)
	parsed, err := Parse(first)
	require.NoError(t, err)
	second, err := Render(parsed)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestParseRejectsForeignDocument(t *testing.T) {
	_, err := Parse([]byte("<html><body><p>hello</p></body></html>"))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Parse([]byte("\x00\x01 definitely not html"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseIgnoresEverythingOutsideTimeline(t *testing.T) {
	doc := `<html><head><style>.x{}</style></head><body>
<article class="item"><h2 class="title"><a href="https://stray">stray</a></h2></article>
<div id="timeline">
<h3 class="day">2026-10-19</h3>
<article class="item" data-date="2026-10-19"><div class="meta"><time>09:30</time><span class="source">FT</span></div>
<h2 class="title"><a href="https://ft.com/a">旧模板标题</a></h2><p class="original">Old template title</p></article>
</div></body></html>`

	got, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []Item{{
		Time: "09:30", Date: "2026-10-19", Source: "FT",
		Title: "旧模板标题", Link: "https://ft.com/a", Original: "Old template title",
	}}, got)
}

func TestMergeCap(t *testing.T) {
	const max = 10
	for _, e := range []int{0, 1, 5, 10} {
		for _, b := range []int{0, 3, 12} {
			old := makeItems("old", e)
			batch := makeItems("new", b)

			got := Merge(batch, old, max)
			require.Len(t, got, min(e+b, max), "E=%d B=%d", e, b)

			want := append(append([]Item{}, batch...), old...)
			assert.Equal(t, want[:len(got)], got, "E=%d B=%d keeps the most recent by insertion order", e, b)
		}
	}
}

func TestMergeEmptyBatchIsIdentity(t *testing.T) {
	old := makeItems("old", 7)
	assert.Equal(t, old, Merge(nil, old, 7))
	assert.Equal(t, old, Merge(nil, old, 800))
}

func TestUpdateCreatesDocument(t *testing.T) {
	e, path := newEngine(t, 800)
	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)

	res, err := e.Update(context.Background(), makeRecords("new", 3, now))
	require.NoError(t, err)
	assert.Equal(t, Result{Added: 3, Total: 3, Written: true}, res)

	items, err := e.Store.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Item{
		Time: "10:00", Date: "2026-10-19", Source: "英为财情",
		Title: "new 标题 0", Link: "https://example.com/new/0", Original: "new headline 0",
	}, items[0])
	assert.FileExists(t, path)
}

func TestUpdateEmptyBatchWithoutDocumentLeavesNothing(t *testing.T) {
	e, path := newEngine(t, 800)

	res, err := e.Update(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.NoFileExists(t, path)
}

func TestUpdateEmptyBatchKeepsDocumentByteIdentical(t *testing.T) {
	e, path := newEngine(t, 800)
	ctx := context.Background()
	require.NoError(t, e.Store.Write(ctx, makeItems("old", 42)))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := e.Update(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, res.Total)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRebuildAppliesCurrentTemplate(t *testing.T) {
	e, path := newEngine(t, 1)
	stale := `<html><body><div id="timeline">
<article class="item" data-date="2026-10-18"><div class="meta"><time>21:00</time><span class="source">FT</span></div><h2 class="title"><a href="https://ft.com/b">第二条</a></h2></article>
<article class="item" data-date="2026-10-18"><div class="meta"><time>20:00</time><span class="source">FT</span></div><h2 class="title"><a href="https://ft.com/a">第一条</a></h2></article>
</div></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(stale), 0o644))

	res, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Dropped)

	doc, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<title>财经快讯</title>")
	assert.Contains(t, string(doc), "第二条")
	assert.NotContains(t, string(doc), "第一条")
}

func TestUpdateScenarioCapEvictsOldest(t *testing.T) {
	e, _ := newEngine(t, 800)
	ctx := context.Background()
	old := makeItems("old", 799)
	require.NoError(t, e.Store.Write(ctx, old))

	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	res, err := e.Update(ctx, makeRecords("new", 5, now))
	require.NoError(t, err)
	assert.Equal(t, Result{Previous: 799, Added: 5, Total: 800, Dropped: 4, Written: true}, res)

	items, err := e.Store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, items, 800)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("https://example.com/new/%d", i), items[i].Link)
	}
	assert.Equal(t, old[:795], items[5:])
}

func TestUpdateBatchLargerThanCap(t *testing.T) {
	e, _ := newEngine(t, 4)
	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)

	res, err := e.Update(context.Background(), makeRecords("new", 9, now))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 4, res.Added)
}

func TestUpdateTreatsCorruptDocumentAsAbsent(t *testing.T) {
	e, path := newEngine(t, 800)
	require.NoError(t, os.WriteFile(path, []byte("garbage from an interrupted editor session"), 0o644))

	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	res, err := e.Update(context.Background(), makeRecords("new", 2, now))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Previous)
	assert.Equal(t, 2, res.Total)

	doc, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(doc), "garbage"))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "index.html"), nil)
	require.NoError(t, s.Write(context.Background(), makeItems("a", 3)))
	require.NoError(t, s.Write(context.Background(), makeItems("b", 3)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.html", entries[0].Name())
}

func TestFileStoreReadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing.html"), nil)
	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrNotExist)
}

package rss

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/retry"
)

// Feed is one fetched feed reduced to what the pipeline reads.
type Feed struct {
	Title   string
	Entries []Entry
}

// Entry is one raw feed item. Published is nil when the feed carries no
// usable timestamp.
type Entry struct {
	Title     string
	Link      string
	Published *time.Time
}

// Fetcher downloads and parses a single feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Feed, error)
}

// GofeedFetcher fetches RSS, Atom and JSON feeds with gofeed.
type GofeedFetcher struct {
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Config
}

var _ Fetcher = (*GofeedFetcher)(nil)

func NewGofeedFetcher(userAgent string, timeout time.Duration, attempts int) *GofeedFetcher {
	return &GofeedFetcher{
		UserAgent: userAgent,
		Timeout:   timeout,
		Retry:     retry.Config{MaxAttempts: attempts, Delay: 2 * time.Second, Backoff: true},
	}
}

// Fetch parses the feed at url, retrying transport and parse failures.
// Each attempt is bounded by Timeout.
func (g *GofeedFetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	var parsed *gofeed.Feed
	err := retry.Do(ctx, g.Retry, func(ctx context.Context) error {
		attemptCtx := ctx
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}

		// gofeed parsers keep per-parse state, one per attempt
		parser := gofeed.NewParser()
		parser.UserAgent = g.UserAgent

		f, err := parser.ParseURLWithContext(url, attemptCtx)
		if err != nil {
			return err
		}
		parsed = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return convertFeed(parsed), nil
}

func convertFeed(f *gofeed.Feed) *Feed {
	out := &Feed{
		Title:   strings.TrimSpace(f.Title),
		Entries: make([]Entry, 0, len(f.Items)),
	}
	for _, item := range f.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		out.Entries = append(out.Entries, Entry{
			Title:     strings.Join(strings.Fields(item.Title), " "),
			Link:      link,
			Published: published,
		})
	}
	return out
}

// Result pairs a feed URL with its fetch outcome.
type Result struct {
	URL  string
	Feed *Feed
	Err  error
}

// FetchAll fetches every URL with at most concurrency fetches in flight and
// returns results in the order of urls. Failures stay inside their Result.
func FetchAll(ctx context.Context, fetcher Fetcher, urls []string, concurrency int, log *slog.Logger) []Result {
	log = logger.Component(log, "rss")
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, url := range urls {
		g.Go(func() error {
			feed, err := fetcher.Fetch(gctx, url)
			results[i] = Result{URL: url, Feed: feed, Err: err}
			if err != nil {
				log.Warn("rss: fetch failed", "url", url, "error", err)
				return nil
			}
			if feed == nil {
				results[i].Feed = &Feed{}
				feed = results[i].Feed
			}
			log.Info("rss: loaded feed", "url", url, "title", feed.Title, "entries", len(feed.Entries))
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
		}
	}
	log.Info("rss: processed feeds", "ok", ok, "total", len(urls))
	return results
}

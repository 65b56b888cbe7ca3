// Package notify groups a run's records by source and hands one payload per
// group to the configured chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/news"
)

const DisplayLayout = "2006-01-02 15:04:05"

type PayloadItem struct {
	TitleDisplay  string
	TitleOriginal string
	Link          string
	DisplayTime   string
}

// Payload is everything one source contributed to a run, oldest first.
type Payload struct {
	SourceLabel string
	Count       int
	Items       []PayloadItem
}

// Channel delivers a payload to one chat destination.
type Channel interface {
	Send(ctx context.Context, p Payload) error
}

// Group partitions ascending records by source label. Groups come out in the
// order their first record appears; records keep their relative order.
func Group(records []news.Record, loc *time.Location) []Payload {
	if loc == nil {
		loc = time.UTC
	}

	index := make(map[string]int)
	var groups []Payload
	for _, r := range records {
		i, ok := index[r.SourceLabel]
		if !ok {
			i = len(groups)
			index[r.SourceLabel] = i
			groups = append(groups, Payload{SourceLabel: r.SourceLabel})
		}
		title := r.TitleDisplay
		if title == "" {
			title = r.TitleOriginal
		}
		groups[i].Items = append(groups[i].Items, PayloadItem{
			TitleDisplay:  title,
			TitleOriginal: r.TitleOriginal,
			Link:          r.Link,
			DisplayTime:   r.PublishedAt.In(loc).Format(DisplayLayout),
		})
	}
	for i := range groups {
		groups[i].Count = len(groups[i].Items)
	}
	return groups
}

// Multi sends every payload to each channel. All channels are attempted.
type Multi []Channel

var _ Channel = Multi(nil)

func (m Multi) Send(ctx context.Context, p Payload) error {
	var errs []error
	for i, ch := range m {
		if err := ch.Send(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Dispatcher sends payloads one by one. Pacing is the gap between the end of
// one send and the start of the next.
type Dispatcher struct {
	Channel Channel
	Pacing  time.Duration
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewDispatcher(ch Channel, pacing, timeout time.Duration, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Channel: ch,
		Pacing:  pacing,
		Timeout: timeout,
		Logger:  logger.Component(log, "notify"),
	}
}

// Dispatch sends each non-empty payload in order and returns the payloads the
// channel accepted. A failed group is logged and the next one is still
// attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, payloads []Payload) (delivered []Payload, failed int) {
	log := d.Logger
	if log == nil {
		log = logger.Discard()
	}

	var gap *rate.Limiter
	for _, p := range payloads {
		if len(p.Items) == 0 {
			continue
		}
		if gap != nil {
			if err := gap.Wait(ctx); err != nil {
				log.Warn("dispatch interrupted", "error", err, "remaining", len(payloads)-len(delivered)-failed)
				return delivered, failed
			}
		}

		err := d.send(ctx, p)
		if d.Pacing > 0 {
			// Drained as the send returns, so the next Wait blocks a full interval.
			gap = rate.NewLimiter(rate.Every(d.Pacing), 1)
			gap.Allow()
		}
		if err != nil {
			failed++
			log.Error("failed to send notification", "source", p.SourceLabel, "items", p.Count, "error", err)
			continue
		}
		delivered = append(delivered, p)
		log.Info("notification sent", "source", p.SourceLabel, "items", p.Count)
	}
	return delivered, failed
}

func (d *Dispatcher) send(ctx context.Context, p Payload) error {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	return d.Channel.Send(ctx, p)
}

package archive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/news"
)

// Engine merges each run's batch into the stored archive.
type Engine struct {
	Store    Store
	Max      int
	Location *time.Location
	Logger   *slog.Logger
}

// Result describes one Update.
type Result struct {
	Previous int  // items read back from the prior document
	Added    int  // new items that survived the cap
	Total    int  // items in the written document
	Dropped  int  // prior items evicted by the cap
	Written  bool // false when nothing was written
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return logger.Discard()
	}
	return e.Logger
}

// Update merges batch, which must be newest-first, into the archive. A prior
// document that cannot be read or parsed counts as absent. Only render and
// write failures are returned.
func (e *Engine) Update(ctx context.Context, batch []news.Record) (Result, error) {
	old, exists := e.load(ctx)
	if len(batch) == 0 && !exists {
		return Result{}, nil
	}

	newest := FromRecords(batch, e.Location)
	merged := Merge(newest, old, e.Max)

	if err := e.Store.Write(ctx, merged); err != nil {
		return Result{}, err
	}

	added := min(len(newest), len(merged))
	res := Result{
		Previous: len(old),
		Added:    added,
		Total:    len(merged),
		Dropped:  len(old) - (len(merged) - added),
		Written:  true,
	}
	e.log().Info("archive updated",
		"previous", res.Previous, "added", res.Added, "dropped", res.Dropped, "total", res.Total)
	return res, nil
}

// Rebuild re-renders the stored archive with the current template and cap.
func (e *Engine) Rebuild(ctx context.Context) (Result, error) {
	return e.Update(ctx, nil)
}

func (e *Engine) load(ctx context.Context) ([]Item, bool) {
	items, err := e.Store.Read(ctx)
	switch {
	case err == nil:
		return items, true
	case errors.Is(err, ErrNotExist):
		e.log().Info("no prior archive, starting fresh")
	default:
		e.log().Warn("prior archive unreadable, rebuilding from new batch", "error", err)
	}
	return nil, false
}

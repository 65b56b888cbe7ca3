package translate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/deusflow/feedwatch/internal/cache"
	"github.com/deusflow/feedwatch/internal/news"
)

// Translator turns text into the target language. Implementations return an
// error rather than echoing the input when they could not translate.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// ContainsCJK reports whether s has a rune in the CJK Unified Ideographs block.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if r >= '\u4e00' && r <= '\u9fff' {
			return true
		}
	}
	return false
}

type Stats struct {
	Translated int
	Skipped    int // already in the target script
	Failed     int // fell back to the original title
}

// Stage fills TitleDisplay of every record in order. Titles already in CJK
// are copied without calling the translator; failures keep the original.
type Stage struct {
	Translator Translator
	Target     string
	Timeout    time.Duration
	Logger     *slog.Logger
}

func (s Stage) Apply(ctx context.Context, records []news.Record) Stats {
	var st Stats
	for i := range records {
		r := &records[i]
		if ContainsCJK(r.TitleOriginal) {
			r.TitleDisplay = r.TitleOriginal
			st.Skipped++
			continue
		}

		out, err := s.translate(ctx, r.TitleOriginal)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("translate: falling back to original", "title", r.TitleOriginal, "error", err)
			}
			r.TitleDisplay = r.TitleOriginal
			st.Failed++
			continue
		}
		r.TitleDisplay = out
		st.Translated++
	}
	return st
}

func (s Stage) translate(ctx context.Context, text string) (string, error) {
	if s.Translator == nil {
		return "", errors.New("no translator configured")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	out, err := s.Translator.Translate(ctx, text, s.Target)
	if err != nil {
		return "", err
	}
	out = strings.Join(strings.Fields(out), " ")
	if out == "" {
		return "", errors.New("empty translation")
	}
	return out, nil
}

// Chain tries each translator in turn and returns the first usable result.
type Chain []Translator

func (c Chain) Translate(ctx context.Context, text, target string) (string, error) {
	var errs []error
	for _, t := range c {
		out, err := t.Translate(ctx, text, target)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
		if err == nil {
			err = errors.New("empty translation")
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no translators in chain")
	}
	return "", errors.Join(errs...)
}

// Bounded gives each call to Next its own deadline, so a hung link in a Chain
// leaves time for the ones after it.
type Bounded struct {
	Next    Translator
	Timeout time.Duration
}

func (b Bounded) Translate(ctx context.Context, text, target string) (string, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	return b.Next.Translate(ctx, text, target)
}

// Memo remembers successful translations so a title syndicated by several
// feeds is translated once.
type Memo struct {
	Next  Translator
	Cache *cache.Cache
	TTL   time.Duration
}

func (m Memo) Translate(ctx context.Context, text, target string) (string, error) {
	key := cache.Key(target, text)
	if out, ok := m.Cache.Get(key); ok {
		return out, nil
	}
	out, err := m.Next.Translate(ctx, text, target)
	if err != nil {
		return "", err
	}
	m.Cache.Set(key, out, m.TTL)
	return out, nil
}

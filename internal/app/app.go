// Package app wires the poller's stages into one run:
// fetch, normalize, filter, sort, translate, archive, notify.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/feedwatch/internal/archive"
	"github.com/deusflow/feedwatch/internal/cache"
	"github.com/deusflow/feedwatch/internal/config"
	"github.com/deusflow/feedwatch/internal/feishu"
	"github.com/deusflow/feedwatch/internal/gemini"
	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/metrics"
	"github.com/deusflow/feedwatch/internal/news"
	"github.com/deusflow/feedwatch/internal/notify"
	"github.com/deusflow/feedwatch/internal/ratelimit"
	"github.com/deusflow/feedwatch/internal/rss"
	"github.com/deusflow/feedwatch/internal/storage"
	"github.com/deusflow/feedwatch/internal/telegram"
	"github.com/deusflow/feedwatch/internal/translate"
)

// Deps are the collaborators of a run. A nil Translator keeps original
// titles, a nil Channel skips notification and a nil Ledger disables
// cross-run dedup.
type Deps struct {
	Fetcher    rss.Fetcher
	Translator translate.Translator
	Archive    archive.Store
	Channel    notify.Channel
	Ledger     *storage.SentLedger
	Labels     news.Labels
	Now        func() time.Time
	Out        io.Writer // per-stage status
	Logger     *slog.Logger
}

type Pipeline struct {
	cfg     config.Config
	deps    Deps
	closers []func()
	budget  *ratelimit.Budget // nil without Gemini
	links   int               // translators tried per title
}

// Options tweak a single run.
type Options struct {
	DryRun bool // no archive write, no dispatch
}

// New builds a pipeline with the real collaborators described by cfg.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.Discard()
	}
	labels := news.DefaultLabels()
	if cfg.LabelRulesPath != "" {
		l, err := news.LoadLabels(cfg.LabelRulesPath)
		if err != nil {
			return nil, err
		}
		labels = l
	}

	p := &Pipeline{cfg: cfg}

	translators := translate.Chain{
		translate.Bounded{Next: translate.NewGoogle(cfg.TranslateTimeout), Timeout: cfg.TranslateTimeout},
	}
	if cfg.GeminiAPIKey != "" {
		budget := ratelimit.NewBudget("gemini", cfg.MaxGeminiRequests)
		g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, budget)
		if err != nil {
			log.Warn("Gemini disabled", "error", err)
		} else {
			translators = append(translators, translate.Bounded{Next: g, Timeout: cfg.TranslateTimeout})
			p.closers = append(p.closers, g.Close)
			p.budget = budget
		}
	}
	p.links = len(translators)

	var ledger *storage.SentLedger
	if cfg.SentLedgerPath != "" {
		ledger = storage.NewSentLedger(cfg.SentLedgerPath, time.Duration(cfg.SentLedgerTTLHours)*time.Hour)
	}

	p.deps = Deps{
		Fetcher:    rss.NewGofeedFetcher(cfg.UserAgent, cfg.FetchTimeout, cfg.FetchRetryAttempts),
		Translator: translate.Memo{Next: translators, Cache: cache.New(), TTL: 24 * time.Hour},
		Archive:    archive.NewFileStore(cfg.ArchivePath, log),
		Channel:    channels(cfg, log),
		Ledger:     ledger,
		Labels:     labels,
		Now:        time.Now,
		Out:        os.Stdout,
		Logger:     log,
	}
	return p, nil
}

// NewWithDeps builds a pipeline around caller-supplied collaborators.
func NewWithDeps(cfg config.Config, deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if len(deps.Labels.Rules) == 0 && deps.Labels.Fallback == "" {
		deps.Labels = news.DefaultLabels()
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

func channels(cfg config.Config, log *slog.Logger) notify.Channel {
	if !cfg.NotifyEnabled() {
		log.Info("no chat credentials configured, notification disabled")
		return nil
	}
	var chs notify.Multi
	if cfg.FeishuWebhook != "" {
		chs = append(chs, feishu.New(cfg.FeishuWebhook, cfg.FeishuKeyword, log))
	}
	if cfg.TelegramToken != "" {
		chs = append(chs, telegram.New(cfg.TelegramToken, cfg.TelegramChatID, log))
	}
	switch len(chs) {
	case 0:
		return nil
	case 1:
		return chs[0]
	default:
		return chs
	}
}

func (p *Pipeline) Close() {
	if p.budget != nil {
		p.deps.Logger.Info("gemini budget", "stats", p.budget.Stats())
	}
	for _, c := range p.closers {
		c()
	}
}

// translateTimeout bounds one title across every link of the chain.
func (p *Pipeline) translateTimeout() time.Duration {
	if p.links > 1 {
		return p.cfg.TranslateTimeout * time.Duration(p.links)
	}
	return p.cfg.TranslateTimeout
}

// Run performs one complete pass over the configured feeds. Feed, translation
// and delivery failures are absorbed; only archive render or write failures
// and an unreadable feed list are returned.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*metrics.Metrics, error) {
	m := metrics.New()
	log := p.deps.Logger.With("run_id", uuid.New().String())
	loc := p.cfg.Location()

	urls, err := rss.LoadFeeds(p.cfg.FeedsPath)
	if err != nil {
		m.SetError(err.Error())
		return m, fmt.Errorf("load feeds: %w", err)
	}
	if len(urls) == 0 {
		log.Warn("no feeds configured", "path", p.cfg.FeedsPath)
	}

	// fetch
	results := rss.FetchAll(ctx, p.deps.Fetcher, urls, p.cfg.FetchConcurrency, log)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	m.RecordFeeds(len(results)-failed, failed)

	// normalize, filter, sort
	normalizer := news.Normalizer{Labels: p.deps.Labels, MaxEntries: p.cfg.MaxEntriesPerFeed, Now: p.deps.Now}
	window := news.Window{
		Lookback:  p.cfg.LookbackWindow,
		StartHour: p.cfg.ActiveHoursStart,
		EndHour:   p.cfg.ActiveHoursEnd,
		Location:  loc,
		Now:       p.deps.Now,
	}
	if !window.Active(p.deps.Now()) {
		log.Info("outside active hours, nothing admitted",
			"hour", p.deps.Now().In(loc).Hour(), "start", window.StartHour, "end", window.EndHour)
	}
	fetched, admitted := news.Collect(results, normalizer, window, logger.Component(log, "news"))
	m.RecordCollected(fetched, len(admitted))

	if p.deps.Ledger != nil {
		admitted = p.dropAlreadySent(admitted, m, log)
	}

	// translate
	st := translate.Stage{
		Translator: p.deps.Translator,
		Target:     p.cfg.TranslateTarget,
		Timeout:    p.translateTimeout(),
		Logger:     logger.Component(log, "translate"),
	}.Apply(ctx, admitted)
	m.RecordTranslation(st.Translated, st.Skipped, st.Failed)

	// archive
	if opts.DryRun {
		log.Info("dry run, archive not written", "would_add", len(admitted))
	} else {
		engine := &archive.Engine{
			Store:    p.deps.Archive,
			Max:      p.cfg.MaxArchiveItems,
			Location: loc,
			Logger:   logger.Component(log, "archive"),
		}
		res, err := engine.Update(ctx, news.NewestFirst(admitted))
		if err != nil {
			m.SetError(err.Error())
			return m, fmt.Errorf("update archive: %w", err)
		}
		m.RecordArchive(res.Added, res.Total)
	}

	// notify
	groups := notify.Group(admitted, loc)
	switch {
	case p.deps.Channel == nil:
		log.Info("no notification channel configured, skipping notify")
	case opts.DryRun:
		for _, g := range groups {
			log.Info("dry run, would notify", "source", g.SourceLabel, "items", g.Count)
		}
	default:
		d := notify.NewDispatcher(p.deps.Channel, p.cfg.NotifyPacing, p.cfg.NotifyTimeout, log)
		delivered, failed := d.Dispatch(ctx, groups)
		m.RecordNotify(len(delivered), failed)
		if p.deps.Ledger != nil {
			p.recordSent(delivered, log)
		}
	}

	m.Finish()
	fmt.Fprint(p.deps.Out, m.Summary())
	log.Info("run finished", "admitted", len(admitted), "duration", m.Duration)
	log.Debug("run stats", "stats", m.GetStats())
	return m, nil
}

func (p *Pipeline) dropAlreadySent(records []news.Record, m *metrics.Metrics, log *slog.Logger) []news.Record {
	if err := p.deps.Ledger.Load(); err != nil {
		log.Warn("sent ledger unreadable, not deduplicating", "error", err)
		return records
	}
	kept := records[:0]
	for _, r := range records {
		if p.deps.Ledger.IsAlreadySent(r.Link) {
			continue
		}
		kept = append(kept, r)
	}
	if dup := len(records) - len(kept); dup > 0 {
		log.Info("dropped already published records", "count", dup)
		m.RecordDuplicates(dup)
	}
	return kept
}

// recordSent marks only what a channel accepted, so a failed group is
// offered again on the next run.
func (p *Pipeline) recordSent(delivered []notify.Payload, log *slog.Logger) {
	if len(delivered) == 0 {
		return
	}
	for _, g := range delivered {
		for _, it := range g.Items {
			p.deps.Ledger.MarkAsSent(it.TitleOriginal, it.Link, g.SourceLabel)
		}
	}
	if err := p.deps.Ledger.Save(); err != nil {
		log.Warn("failed to save sent ledger", "error", err)
	}
}

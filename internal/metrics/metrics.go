package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Metrics counts what each stage of one run did.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsOK             int64
	FeedsFailed         int64
	EntriesFetched      int64
	RecordsAdmitted     int64
	DuplicatesFiltered  int64
	Translated          int64
	TranslationSkipped  int64
	TranslationFailures int64
	Archived            int64
	ArchiveTotal        int64
	GroupsNotified      int64
	NotifyFailures      int64

	// Timings
	StartedAt time.Time
	Duration  time.Duration

	LastError string
}

func New() *Metrics {
	return &Metrics{StartedAt: time.Now()}
}

func (m *Metrics) RecordFeeds(ok, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsOK += int64(ok)
	m.FeedsFailed += int64(failed)
}

func (m *Metrics) RecordCollected(fetched, admitted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesFetched += int64(fetched)
	m.RecordsAdmitted += int64(admitted)
}

func (m *Metrics) RecordDuplicates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) RecordTranslation(translated, skipped, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Translated += int64(translated)
	m.TranslationSkipped += int64(skipped)
	m.TranslationFailures += int64(failed)
}

func (m *Metrics) RecordArchive(added, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Archived += int64(added)
	m.ArchiveTotal = int64(total)
}

func (m *Metrics) RecordNotify(sent, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroupsNotified += int64(sent)
	m.NotifyFailures += int64(failed)
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
}

// Finish stamps the run duration.
func (m *Metrics) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duration = time.Since(m.StartedAt)
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_ok":             m.FeedsOK,
		"feeds_failed":         m.FeedsFailed,
		"entries_fetched":      m.EntriesFetched,
		"records_admitted":     m.RecordsAdmitted,
		"duplicates_filtered":  m.DuplicatesFiltered,
		"translated":           m.Translated,
		"translation_skipped":  m.TranslationSkipped,
		"translation_failures": m.TranslationFailures,
		"archived":             m.Archived,
		"archive_total":        m.ArchiveTotal,
		"groups_notified":      m.GroupsNotified,
		"notify_failures":      m.NotifyFailures,
		"duration_ms":          m.Duration.Milliseconds(),
		"last_error":           m.LastError,
	}
}

// Summary is the per-stage status printed at the end of a run.
func (m *Metrics) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fmt.Sprintf(
		"feeds: %d ok, %d failed\n"+
			"fetched: %d entries\n"+
			"admitted: %d records (%d already sent)\n"+
			"translated: %d (%d already Chinese, %d failed)\n"+
			"archived: %d new, %d total\n"+
			"notified: %d groups (%d failed)\n",
		m.FeedsOK, m.FeedsFailed,
		m.EntriesFetched,
		m.RecordsAdmitted, m.DuplicatesFiltered,
		m.Translated, m.TranslationSkipped, m.TranslationFailures,
		m.Archived, m.ArchiveTotal,
		m.GroupsNotified, m.NotifyFailures,
	)
}

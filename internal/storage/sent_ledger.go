package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// SentItem represents a link that was already published
type SentItem struct {
	Hash   string    `json:"hash"`
	Title  string    `json:"title"`
	Link   string    `json:"link"`
	Source string    `json:"source"`
	SentAt time.Time `json:"sent_at"`
}

// SentLedger remembers published links in a JSON file for ttl.
type SentLedger struct {
	filePath string
	ttl      time.Duration
	now      func() time.Time
	items    map[string]SentItem
	mu       sync.RWMutex
}

func NewSentLedger(filePath string, ttl time.Duration) *SentLedger {
	return &SentLedger{
		filePath: filePath,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]SentItem),
	}
}

// Load reads the ledger file, dropping expired entries. A missing or empty
// file is an empty ledger.
func (l *SentLedger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []SentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}

	cutoff := l.now().Add(-l.ttl)
	for _, item := range items {
		if item.SentAt.After(cutoff) {
			l.items[item.Hash] = item
		}
	}
	return nil
}

// Save writes live entries, oldest first.
func (l *SentLedger) Save() error {
	l.mu.RLock()
	items := make([]SentItem, 0, len(l.items))
	for _, item := range l.items {
		items = append(items, item)
	}
	l.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].SentAt.Equal(items[j].SentAt) {
			return items[i].Hash < items[j].Hash
		}
		return items[i].SentAt.Before(items[j].SentAt)
	})

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	if err := WriteFileAtomic(l.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}

// LinkHash is the ledger key for a link: scheme and a leading www. are
// ignored, as is a trailing slash.
func LinkHash(link string) string {
	s := strings.ToLower(strings.TrimSpace(link))
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")

	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}

func (l *SentLedger) IsAlreadySent(link string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[LinkHash(link)]
	if !ok {
		return false
	}
	return item.SentAt.After(l.now().Add(-l.ttl))
}

func (l *SentLedger) MarkAsSent(title, link, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := LinkHash(link)
	l.items[hash] = SentItem{
		Hash:   hash,
		Title:  title,
		Link:   link,
		Source: source,
		SentAt: l.now(),
	}
}

func (l *SentLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

package feedback

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mohammad-safakhou/logsift/internal/triage"
)

// Decision values recorded by the review loop.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Entry is one human decision about a drafted ticket, keyed by the
// cluster's fingerprint. Entries are append-only.
type Entry struct {
	Timestamp   string                `json:"timestamp"`
	Fingerprint string                `json:"fingerprint"`
	Idx         int                   `json:"idx"`
	Service     string                `json:"service,omitempty"`
	Component   string                `json:"component,omitempty"`
	Triage      triage.Classification `json:"triage"`
	Decision    string                `json:"decision"`
	Reason      string                `json:"reason,omitempty"`
}

// NewEntry stamps an entry with the current UTC time.
func NewEntry(item triage.Item, decision, reason string) Entry {
	return Entry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fingerprint: item.Fingerprint,
		Idx:         item.Idx,
		Service:     item.Service,
		Component:   item.Component,
		Triage:      item.Triage,
		Decision:    decision,
		Reason:      reason,
	}
}

// Ledger is a single-writer append-only JSON file of feedback entries.
// The file is read fully and rewritten fully on each append; concurrent
// runs against the same ledger are not supported.
type Ledger struct {
	path   string
	logger *log.Logger
}

// NewLedger creates a ledger backed by the given file path.
func NewLedger(path string) *Ledger {
	return &Ledger{
		path:   path,
		logger: log.New(log.Writer(), "[FEEDBACK] ", log.LstdFlags),
	}
}

func (l *Ledger) load() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse feedback ledger: %w", err)
	}
	return entries, nil
}

// Load reads all entries in append order. A missing file yields an empty
// ledger; an unreadable one is logged and yields empty rather than failing
// the caller.
func (l *Ledger) Load() []Entry {
	entries, err := l.load()
	if err != nil {
		l.logger.Printf("unreadable ledger %s: %v", l.path, err)
		return nil
	}
	return entries
}

// Append adds one entry and persists the full ledger. An unreadable
// existing file is moved aside rather than overwritten, so recorded human
// decisions survive a partial write for manual recovery.
func (l *Ledger) Append(entry Entry) error {
	entries, err := l.load()
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", l.path, time.Now().Unix())
		if renameErr := os.Rename(l.path, backup); renameErr != nil {
			return fmt.Errorf("ledger unreadable (%v) and could not be set aside: %w", err, renameErr)
		}
		l.logger.Printf("unreadable ledger moved to %s: %v", backup, err)
	}

	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create feedback dir: %w", err)
		}
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	return nil
}

// Latest returns the most recent entry per fingerprint. When a fingerprint
// has both approved and rejected entries over time, the newest decision
// wins; entries are already in append order so the last one seen is kept.
func (l *Ledger) Latest() map[string]Entry {
	latest := make(map[string]Entry)
	for _, e := range l.Load() {
		if e.Fingerprint == "" {
			continue
		}
		latest[e.Fingerprint] = e
	}
	return latest
}

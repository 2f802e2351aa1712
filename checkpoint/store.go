// Package checkpoint accumulates extracted records and persists crawl
// progress so an interrupted run can resume without loss or duplication.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"imovelscan/models"
)

// Recorder receives snapshot outcomes for metrics. May be nil.
type Recorder interface {
	IncSnapshot(result string)
}

// Store owns the checkpoint mapping. Records are keyed by identity with
// last-write-wins semantics and kept in discovery order.
type Store struct {
	path      string
	interval  int
	recorder  Recorder
	exporters []Exporter

	mu            sync.Mutex
	records       []*models.ListingRecord
	index         map[string]int
	urls          map[string]struct{}
	lastPage      int
	startedAt     time.Time
	failures      int
	sinceSnapshot int
}

// snapshotFile is the durable JSON layout of the checkpoint.
type snapshotFile struct {
	StartedAt time.Time               `json:"started_at"`
	LastPage  int                     `json:"last_page"`
	Failures  int                     `json:"failures"`
	Records   []*models.ListingRecord `json:"records"`
}

// NewStore builds a store that snapshots to path after every interval
// upserts and mirrors the dataset through the given exporters.
func NewStore(path string, interval int, recorder Recorder, exporters ...Exporter) *Store {
	if interval <= 0 {
		interval = 50
	}
	return &Store{
		path:      path,
		interval:  interval,
		recorder:  recorder,
		exporters: exporters,
		index:     make(map[string]int),
		urls:      make(map[string]struct{}),
		startedAt: time.Now(),
	}
}

// Load restores the last persisted snapshot. A missing file leaves the
// store empty and is not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read checkpoint: %w", err)
	}

	var snapshot snapshotFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
	s.index = make(map[string]int, len(snapshot.Records))
	s.urls = make(map[string]struct{}, len(snapshot.Records))
	for _, rec := range snapshot.Records {
		if rec == nil || rec.Identity() == "" {
			continue
		}
		s.index[rec.Identity()] = len(s.records)
		s.records = append(s.records, rec)
		if rec.URL != "" {
			s.urls[models.NormalizeURL(rec.URL)] = struct{}{}
		}
	}
	s.lastPage = snapshot.LastPage
	s.failures = snapshot.Failures
	if !snapshot.StartedAt.IsZero() {
		s.startedAt = snapshot.StartedAt
	}
	return nil
}

// Upsert inserts or replaces a record by identity. Insertion order is
// preserved on replacement. Counter-triggered snapshots happen here; their
// failures degrade to a warning and never fail the upsert.
func (s *Store) Upsert(rec *models.ListingRecord) error {
	if rec == nil {
		return fmt.Errorf("upsert: nil record")
	}
	identity := rec.Identity()
	if identity == "" {
		return fmt.Errorf("upsert: record has empty identity")
	}

	s.mu.Lock()
	if i, ok := s.index[identity]; ok {
		s.records[i] = rec
	} else {
		s.index[identity] = len(s.records)
		s.records = append(s.records, rec)
	}
	if rec.URL != "" {
		s.urls[models.NormalizeURL(rec.URL)] = struct{}{}
	}
	s.sinceSnapshot++
	flush := s.sinceSnapshot >= s.interval
	if flush {
		s.sinceSnapshot = 0
	}
	s.mu.Unlock()

	if flush {
		if err := s.Snapshot(); err != nil {
			slog.Warn("periodic snapshot failed, continuing in memory",
				slog.String("path", s.path),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// Snapshot atomically persists the checkpoint and both dataset exports.
// A failed write is retried once, then surfaced as a *PersistenceError;
// the previous good snapshot is never clobbered.
func (s *Store) Snapshot() error {
	err := s.write()
	if err != nil {
		err = s.write()
	}
	if s.recorder != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.recorder.IncSnapshot(result)
	}
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) write() error {
	s.mu.Lock()
	snapshot := snapshotFile{
		StartedAt: s.startedAt,
		LastPage:  s.lastPage,
		Failures:  s.failures,
		Records:   make([]*models.ListingRecord, len(s.records)),
	}
	copy(snapshot.Records, s.records)
	s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	if err := atomicWrite(s.path, func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	}); err != nil {
		return err
	}

	for _, exporter := range s.exporters {
		if err := exporter.Export(snapshot.Records); err != nil {
			return err
		}
	}
	return nil
}

// SetLastPage records the last fully processed index page.
func (s *Store) SetLastPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page > s.lastPage {
		s.lastPage = page
	}
}

// LastPage returns the resume position.
func (s *Store) LastPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPage
}

// AddFailure bumps the tolerated-failure counter.
func (s *Store) AddFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

// Failures returns the tolerated-failure count.
func (s *Store) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Len returns the number of accumulated records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// HasURL reports whether a listing URL is already captured.
func (s *Store) HasURL(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[models.NormalizeURL(url)]
	return ok
}

// Has reports whether an identity is already captured.
func (s *Store) Has(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[identity]
	return ok
}

// Records returns a copy of the accumulated records in discovery order.
func (s *Store) Records() []*models.ListingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ListingRecord, len(s.records))
	copy(out, s.records)
	return out
}

// StartedAt returns the run start time, surviving resume.
func (s *Store) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// atomicWrite writes through a temp file in the target directory and
// renames it over the destination, so readers never see a torn file.
func atomicWrite(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/internal/domain/entities"
	"github.com/mytegroup/billtracker/internal/domain/repositories"
)

// JSONBillStore keeps every bill in a single JSON array file. All reads that
// precede a write happen under the same mutex as the write.
type JSONBillStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJSONBillStore creates a store backed by path. The file is created on first write.
func NewJSONBillStore(path string) *JSONBillStore {
	return &JSONBillStore{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *JSONBillStore) Path() string {
	return s.path
}

// Load returns every stored bill keyed by href.
func (s *JSONBillStore) Load(ctx context.Context) (map[string]*entities.BillRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return index(records), nil
}

// List returns every stored bill in file order.
func (s *JSONBillStore) List(ctx context.Context) ([]*entities.BillRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// MergeAndSave merges updates into the stored set with a single write.
func (s *JSONBillStore) MergeAndSave(ctx context.Context, updates []*entities.BillRecord) error {
	return s.Update(ctx, func(map[string]*entities.BillRecord) ([]*entities.BillRecord, error) {
		return updates, nil
	})
}

// Update reads the file, passes a copy of its contents to fn and merges what fn
// returns. Nothing is written when fn fails or returns no records.
func (s *JSONBillStore) Update(ctx context.Context, fn repositories.BillMutator) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}

	snapshot := make(map[string]*entities.BillRecord, len(records))
	for _, r := range records {
		snapshot[r.Href] = r.Clone()
	}

	updates, err := fn(snapshot)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	byHref := index(records)
	for _, u := range updates {
		if u == nil {
			continue
		}
		if u.Href == "" {
			log.Warn().Str("bill_number", u.BillNumber).Msg("dropping bill update without href")
			continue
		}
		if existing, ok := byHref[u.Href]; ok {
			existing.MergeFrom(u)
			continue
		}
		added := u.Clone()
		records = append(records, added)
		byHref[added.Href] = added
	}

	return s.write(records)
}

func (s *JSONBillStore) read() ([]*entities.BillRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*entities.BillRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bill store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []*entities.BillRecord{}, nil
	}

	var decoded []*entities.BillRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		if qerr := s.quarantine(err); qerr != nil {
			return nil, qerr
		}
		return []*entities.BillRecord{}, nil
	}

	records := make([]*entities.BillRecord, 0, len(decoded))
	seen := make(map[string]*entities.BillRecord, len(decoded))
	for i, r := range decoded {
		if r == nil || r.Href == "" {
			log.Warn().Str("path", s.path).Int("position", i).Msg("dropping stored bill without href")
			continue
		}
		if prior, ok := seen[r.Href]; ok {
			prior.MergeFrom(r)
			continue
		}
		seen[r.Href] = r
		records = append(records, r)
	}
	return records, nil
}

// quarantine moves an unreadable file aside so the next write cannot destroy it.
func (s *JSONBillStore) quarantine(cause error) error {
	aside := s.quarantineName()
	if err := os.Rename(s.path, aside); err != nil {
		return fmt.Errorf("bill store %s is corrupt (%v) and could not be moved aside: %w", s.path, cause, err)
	}
	log.Warn().
		Err(cause).
		Str("path", s.path).
		Str("moved_to", aside).
		Msg("bill store unreadable, continuing with empty store")
	return nil
}

// quarantineName returns an unused name next to the store file, so a second
// corruption never replaces an earlier quarantined copy.
func (s *JSONBillStore) quarantineName() string {
	base := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
	name := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(name); errors.Is(err, os.ErrNotExist) {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *JSONBillStore) write(records []*entities.BillRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode bill store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace bill store: %w", err)
	}

	log.Debug().Str("path", s.path).Int("bills", len(records)).Msg("bill store written")
	return nil
}

func index(records []*entities.BillRecord) map[string]*entities.BillRecord {
	out := make(map[string]*entities.BillRecord, len(records))
	for _, r := range records {
		out[r.Href] = r
	}
	return out
}

// LoadScrapeFile reads a JSON array of bills that is not managed by a store,
// such as raw scraper output.
func LoadScrapeFile(path string) ([]*entities.BillRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []*entities.BillRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

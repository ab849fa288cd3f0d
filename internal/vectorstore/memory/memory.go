package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/vectorstore"
)

// Verify interface compliance
var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// With a snapshot path it is shared across processes: writes hold an exclusive
// file lock and re-read the snapshot before changing it, and reads reload it
// whenever another process has rewritten the file.
type Storage struct {
	mu          sync.RWMutex
	path        string
	lock        *flock.Flock
	loaded      stamp
	collections map[string]*collection
}

type collection struct {
	Dimension int               `json:"dimension"`
	Metric    string            `json:"metric"`
	Documents []domain.Document `json:"documents"`
	Vectors   [][]float64       `json:"vectors"`
}

// stamp identifies the snapshot version held in memory.
type stamp struct {
	mod  time.Time
	size int64
}

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

// Open returns a storage persisted at path, loading it if the file exists.
func Open(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := NewStorage()
	s.path = path
	s.lock = flock.New(path + ".lock")
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock snapshot %s: %w", path, err)
	}
	defer s.lock.Unlock()
	if err := s.reload(true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) EnsureIndex(_ context.Context, spec vectorstore.IndexSpec) (bool, error) {
	if spec.Dimension <= 0 {
		return false, errors.New("invalid dimension")
	}
	var created bool
	err := s.write(func() (bool, error) {
		if _, ok := s.collections[spec.Name]; ok {
			return false, nil
		}
		s.collections[spec.Name] = &collection{Dimension: spec.Dimension, Metric: spec.Metric}
		created = true
		return true, nil
	})
	return created, err
}

func (s *Storage) Upsert(_ context.Context, index string, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	return s.write(func() (bool, error) {
		c, ok := s.collections[index]
		if !ok {
			return false, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
		}
		for _, v := range vectors {
			if len(v) != c.Dimension {
				return false, fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(v), c.Dimension)
			}
		}
		pos := make(map[string]int, len(c.Documents))
		for i, d := range c.Documents {
			pos[d.ID] = i
		}
		for i, d := range docs {
			if j, ok := pos[d.ID]; ok {
				c.Documents[j] = d
				c.Vectors[j] = vectors[i]
				continue
			}
			pos[d.ID] = len(c.Documents)
			c.Documents = append(c.Documents, d)
			c.Vectors = append(c.Vectors, vectors[i])
		}
		return true, nil
	})
}

// write runs mutate against the latest snapshot under the exclusive file lock
// and persists the result when mutate reports a change.
func (s *Storage) write(mutate func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		_, err := mutate()
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot %s: %w", s.path, err)
	}
	defer s.lock.Unlock()
	if err := s.reload(false); err != nil {
		return err
	}
	changed, err := mutate()
	if err != nil || !changed {
		return err
	}
	return s.save()
}

// refresh reloads the snapshot if another process rewrote it since the last load.
func (s *Storage) refresh() error {
	if s.lock == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("lock snapshot %s: %w", s.path, err)
	}
	defer s.lock.Unlock()
	return s.reload(false)
}

// reload replaces the in-memory collections with the file contents. Unless
// force is set it skips the read when the file is unchanged. Callers hold
// s.mu and the file lock.
func (s *Storage) reload(force bool) error {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if force || s.loaded != (stamp{}) {
			s.collections = make(map[string]*collection)
			s.loaded = stamp{}
		}
		return nil
	}
	if err != nil {
		return err
	}
	cur := stamp{mod: info.ModTime(), size: info.Size()}
	if !force && cur == s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	collections := make(map[string]*collection)
	if err := json.Unmarshal(data, &collections); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if collections == nil {
		collections = make(map[string]*collection)
	}
	s.collections = collections
	s.loaded = cur
	return nil
}

func (s *Storage) Search(_ context.Context, index string, vector []float64, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if err := s.refresh(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, index)
	}
	if topK <= 0 {
		topK = 5
	}
	var results []domain.SearchResult
	for i, d := range c.Documents {
		if !filter.Matches(d.Metadata) {
			continue
		}
		results = append(results, domain.SearchResult{Document: d, Score: cosine(c.Vectors[i], vector)})
	}
	// stable keeps insertion order among equal scores
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of documents stored in index.
func (s *Storage) Count(index string) int {
	_ = s.refresh()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[index]; ok {
		return len(c.Documents)
	}
	return 0
}

// save must be called with the write lock and the exclusive file lock held.
func (s *Storage) save() error {
	data, err := json.Marshal(s.collections)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	s.loaded = stamp{mod: info.ModTime(), size: info.Size()}
	return nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"eventbot/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu      sync.RWMutex
	meta    domain.IndexMeta
	records []domain.IndexRecord
	norms   []float64
}

func NewStorage() *Storage { return &Storage{} }

// Exists reports whether any records are loaded.
func (s *Storage) Exists(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0, nil
}

// BulkLoad replaces the stored records.
func (s *Storage) BulkLoad(_ context.Context, records []domain.IndexRecord, meta domain.IndexMeta) error {
	dim := 0
	for i, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %d has an empty vector", i)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return errors.New("vector dimension mismatch")
		}
	}
	norms := make([]float64, len(records))
	for i, r := range records {
		norms[i] = norm(r.Vector)
	}
	meta.Dimension = dim
	meta.Records = len(records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]domain.IndexRecord(nil), records...)
	s.norms = norms
	s.meta = meta
	return nil
}

// Search implements vectorstore.Index. k larger than the record count
// returns every record.
func (s *Storage) Search(_ context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.records) == 0 {
		return nil, nil
	}
	if len(vector) != s.meta.Dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), s.meta.Dimension)
	}
	qn := norm(vector)
	scores := make([]float64, len(s.records))
	for i, r := range s.records {
		scores[i] = cosine(r.Vector, vector, s.norms[i], qn)
	}
	idxs := s.argsortDesc(scores)
	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		results = append(results, domain.SearchResult{Chunk: s.records[j].Chunk, Score: scores[j]})
	}
	return results, nil
}

// Meta implements vectorstore.Index.
func (s *Storage) Meta() domain.IndexMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Storage) Close() error { return nil }

func (s *Storage) argsortDesc(scores []float64) []int {
	idxs := make([]int, len(scores))
	for i := range scores {
		idxs[i] = i
	}
	sort.Slice(idxs, func(a, b int) bool {
		ia, ib := idxs[a], idxs[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return s.records[ia].Chunk.Seq < s.records[ib].Chunk.Seq
	})
	return idxs
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (na * nb)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

package vectorstore

import (
	"fmt"
	"sort"
	"sync"
)

// Neighbor is one entry of a ranked distance query.
type Neighbor struct {
	ID       string
	Distance float64
}

// Store holds one embedding per note. It is safe for concurrent use:
// reads (distance queries) may run while the simulator ticks elsewhere,
// writes are serialized internally.
//
// The first inserted vector fixes the store's dimensionality; later inserts
// with a different length are rejected.
type Store struct {
	mu        sync.RWMutex
	metric    Metric
	precision Precision
	dist      func(a, b []float32) (float64, error)
	dim       int

	full map[string][]float32
	half map[string][]uint16
}

// New creates an empty store with the given metric and storage precision.
func New(metric Metric, precision Precision) (*Store, error) {
	dist, err := distanceFunc(metric)
	if err != nil {
		return nil, err
	}
	s := &Store{
		metric:    metric,
		precision: precision,
		dist:      dist,
	}
	switch precision {
	case Float32:
		s.full = make(map[string][]float32)
	case Float16:
		s.half = make(map[string][]uint16)
	default:
		return nil, fmt.Errorf("unsupported precision: %s", precision)
	}
	return s, nil
}

// Metric returns the store-wide distance metric.
func (s *Store) Metric() Metric { return s.metric }

// Set stores or replaces the embedding for a note.
func (s *Store) Set(id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding for note %s", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(vec)
	} else if len(vec) != s.dim {
		return fmt.Errorf("embedding dimension %d does not match store dimension %d", len(vec), s.dim)
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)
	if s.metric == Cosine {
		normalize(cp)
	}

	if s.half != nil {
		s.half[id] = toHalf(cp)
	} else {
		s.full[id] = cp
	}
	return nil
}

// Delete removes a note's embedding. Unknown ids are a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.full, id)
	delete(s.half, id)
}

// Has reports whether a note has a stored embedding. Notes without one are
// excluded from all similarity-based operations.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(id)
	return ok
}

// Get returns a copy of the stored embedding, expanded to float32.
func (s *Store) Get(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp, true
}

// Len returns the number of stored embeddings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.half != nil {
		return len(s.half)
	}
	return len(s.full)
}

// IDs returns the ids of all notes with a stored embedding.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	if s.half != nil {
		for id := range s.half {
			out = append(out, id)
		}
	} else {
		for id := range s.full {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// lookup fetches the float32 view of an embedding. Caller holds the lock.
func (s *Store) lookup(id string) ([]float32, bool) {
	if s.half != nil {
		h, ok := s.half[id]
		if !ok {
			return nil, false
		}
		return fromHalf(h), true
	}
	v, ok := s.full[id]
	return v, ok
}

// Distance computes the distance between two stored embeddings.
func (s *Store) Distance(a, b string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	va, ok := s.lookup(a)
	if !ok {
		return 0, fmt.Errorf("no embedding for note %s", a)
	}
	vb, ok := s.lookup(b)
	if !ok {
		return 0, fmt.Errorf("no embedding for note %s", b)
	}
	return s.dist(va, vb)
}

// Nearest ranks all stored embeddings by ascending distance from the given
// note's embedding and returns the top k. The note itself is excluded; the
// optional skip callback excludes further ids (e.g. archived notes).
//
// Returns nil if the note has no embedding: a normal skip, not an error.
func (s *Store) Nearest(id string, k int, skip func(id string) bool) []Neighbor {
	s.mu.RLock()
	query, ok := s.lookup(id)
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.nearestTo(query, k, func(other string) bool {
		return other == id || (skip != nil && skip(other))
	})
}

// NearestToVector ranks stored embeddings by ascending distance from an
// arbitrary query vector.
func (s *Store) NearestToVector(query []float32, k int, skip func(id string) bool) []Neighbor {
	if s.metric == Cosine {
		cp := make([]float32, len(query))
		copy(cp, query)
		normalize(cp)
		query = cp
	}
	return s.nearestTo(query, k, skip)
}

func (s *Store) nearestTo(query []float32, k int, skip func(id string) bool) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scan := func(id string, vec []float32, out []Neighbor) []Neighbor {
		if skip != nil && skip(id) {
			return out
		}
		d, err := s.dist(query, vec)
		if err != nil {
			return out
		}
		return append(out, Neighbor{ID: id, Distance: d})
	}

	var all []Neighbor
	if s.half != nil {
		for id, h := range s.half {
			all = scan(id, fromHalf(h), all)
		}
	} else {
		for id, v := range s.full {
			all = scan(id, v, all)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].ID < all[j].ID
	})
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	return all
}

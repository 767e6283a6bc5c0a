package tenantcache

import (
	"container/list"
	"context"
	"slices"
	"strconv"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// DefaultMemoryCapacity bounds a MemoryStore created without WithCapacity.
const DefaultMemoryCapacity = 10000

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an LRU Store with per-key TTL for tests and single-process
// deployments.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	eviction *list.List
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity sets the maximum number of keys. The least recently used key
// is evicted first.
func WithCapacity(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		capacity: DefaultMemoryCapacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return slices.Clone(e.value), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, slices.Clone(value), ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if elem, ok := s.items[k]; ok {
			s.remove(elem)
		}
	}
	return nil
}

// Incr keeps the remaining TTL of an existing key.
func (s *MemoryStore) Incr(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		current   int64
		expiresAt time.Time
	)
	if e, ok := s.live(key); ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, ErrNotNumber
		}
		current, expiresAt = n, e.expiresAt
	}

	next := current + delta
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now())
	}
	s.put(key, []byte(strconv.FormatInt(next, 10)), ttl)
	return next, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	re, err := globRegexp(pattern)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for k := range s.items {
		if _, ok := s.live(k); ok && re.MatchString(k) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *MemoryStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := s.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return len(keys), s.Delete(ctx, keys...)
}

// Len returns the number of stored keys, expired ones included until they
// are touched.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eviction.Len()
}

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (s *MemoryStore) live(key string) (*memoryEntry, bool) {
	elem, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*memoryEntry)
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.remove(elem)
		return nil, false
	}
	s.eviction.MoveToFront(elem)
	return e, true
}

func (s *MemoryStore) put(key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	if elem, ok := s.items[key]; ok {
		e := elem.Value.(*memoryEntry)
		e.value, e.expiresAt = value, expiresAt
		s.eviction.MoveToFront(elem)
		return
	}

	s.items[key] = s.eviction.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	if s.eviction.Len() > s.capacity {
		if oldest := s.eviction.Back(); oldest != nil {
			s.remove(oldest)
		}
	}
}

func (s *MemoryStore) remove(elem *list.Element) {
	s.eviction.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).key)
}

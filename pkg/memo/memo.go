// Package memo caches pure derivations by the identity of their inputs.
//
// Keys are compared with ==, so pointer keys hit only for the very same
// object. Callers must treat every value reachable from a key as immutable.
package memo

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Observer is told about every lookup. It must be safe for concurrent use.
type Observer interface {
	Hit(name string)
	Miss(name string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)  {}
func (nopObserver) Miss(string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// Memo remembers the result of the most recent computation.
// A call with a different key recomputes and replaces the entry.
type Memo[K comparable, V any] struct {
	name string
	obs  Observer

	mu    sync.Mutex
	valid bool
	key   K
	val   V
	err   error
}

func New[K comparable, V any](name string, obs Observer) *Memo[K, V] {
	return &Memo[K, V]{name: name, obs: observerOrNop(obs)}
}

// Get returns the cached result for key, or runs compute and caches its result.
// Errors are cached like values. compute runs with the memo locked and must not
// call back into the same Memo.
func (m *Memo[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.key == key {
		m.obs.Hit(m.name)
		return m.val, m.err
	}
	m.obs.Miss(m.name)
	m.val, m.err = compute()
	m.key = key
	m.valid = true
	return m.val, m.err
}

// Reset drops the cached entry.
func (m *Memo[K, V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero V
	var zk K
	m.valid, m.key, m.val, m.err = false, zk, zero, nil
}

type result[V any] struct {
	val V
	err error
}

// Table is a bounded external memo table holding many keys at once, evicting
// the least recently used entry when full.
type Table[K comparable, V any] struct {
	name  string
	obs   Observer
	cache *lru.Cache[K, result[V]]
}

func NewTable[K comparable, V any](name string, size int, obs Observer) (*Table[K, V], error) {
	cache, err := lru.New[K, result[V]](size)
	if err != nil {
		return nil, err
	}
	return &Table[K, V]{name: name, obs: observerOrNop(obs), cache: cache}, nil
}

// Get behaves like Memo.Get. Concurrent misses on the same key may both compute;
// the last one stored wins.
func (t *Table[K, V]) Get(key K, compute func() (V, error)) (V, error) {
	if r, ok := t.cache.Get(key); ok {
		t.obs.Hit(t.name)
		return r.val, r.err
	}
	t.obs.Miss(t.name)
	v, err := compute()
	t.cache.Add(key, result[V]{val: v, err: err})
	return v, err
}

func (t *Table[K, V]) Len() int { return t.cache.Len() }

func (t *Table[K, V]) Purge() { t.cache.Purge() }

// Package staged provides copy-on-access maps that buffer writes on top of a
// committed parent until they are committed or dropped.
package staged

// Map is a keyed store. A root Map holds committed values; a Map returned by
// Stage reads through to its parent, copies values on first access, and keeps
// all writes local until Commit.
type Map[K comparable, V any] struct {
	parent  *Map[K, V]
	clone   func(V) V
	entries map[K]V
	deleted map[K]struct{}
}

// New returns an empty root map. clone must return an independent copy of a value.
func New[K comparable, V any](clone func(V) V) *Map[K, V] {
	return &Map[K, V]{
		clone:   clone,
		entries: make(map[K]V),
	}
}

// Stage returns a child map layered over m.
func (m *Map[K, V]) Stage() *Map[K, V] {
	return &Map[K, V]{
		parent:  m,
		clone:   m.clone,
		entries: make(map[K]V),
		deleted: make(map[K]struct{}),
	}
}

// Get returns the value for key. In a staged map the returned value is a private
// copy, so callers may mutate it in place.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if v, ok := m.entries[key]; ok {
		return v, true
	}
	var zero V
	if m.parent == nil {
		return zero, false
	}
	if _, gone := m.deleted[key]; gone {
		return zero, false
	}
	v, ok := m.parent.Get(key)
	if !ok {
		return zero, false
	}
	v = m.clone(v)
	m.entries[key] = v
	return v, true
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	m.entries[key] = value
	if m.deleted != nil {
		delete(m.deleted, key)
	}
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	delete(m.entries, key)
	if m.parent != nil {
		m.deleted[key] = struct{}{}
	}
}

// Commit folds the staged writes into the parent. It is a no-op on a root map.
func (m *Map[K, V]) Commit() {
	if m.parent == nil {
		return
	}
	for key := range m.deleted {
		m.parent.Delete(key)
	}
	for key, value := range m.entries {
		m.parent.Set(key, value)
	}
	m.entries = make(map[K]V)
	m.deleted = make(map[K]struct{})
}

// Range calls fn for every committed key of a root map in unspecified order.
// Staged maps only visit values they have touched.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for key, value := range m.entries {
		if !fn(key, value) {
			return
		}
	}
}

// Len returns the number of values held locally.
func (m *Map[K, V]) Len() int {
	return len(m.entries)
}

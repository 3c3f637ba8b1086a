package realtime

import "sync"

// KeyFunc derives the subscription key of a published value. ok is false when
// the value carries no usable key.
type KeyFunc[K comparable, V any] func(v V) (key K, ok bool)

// Broker fans published values out to per-subscriber queues grouped by key.
type Broker[K comparable, V any] struct {
	mu    sync.Mutex
	subs  map[K]map[*Queue[V]]struct{}
	keyOf KeyFunc[K, V]
}

// NewBroker creates an empty broker that routes values with keyOf.
func NewBroker[K comparable, V any](keyOf KeyFunc[K, V]) *Broker[K, V] {
	return &Broker[K, V]{
		subs:  make(map[K]map[*Queue[V]]struct{}),
		keyOf: keyOf,
	}
}

// Subscribe registers a new empty queue for key. Every call gets its own queue.
func (b *Broker[K, V]) Subscribe(key K) *Queue[V] {
	q := NewQueue[V]()
	b.mu.Lock()
	set, ok := b.subs[key]
	if !ok {
		set = make(map[*Queue[V]]struct{})
		b.subs[key] = set
	}
	set[q] = struct{}{}
	b.mu.Unlock()
	return q
}

// Unsubscribe removes q from key and drops the key once nobody is left.
// Calling it twice, or with an unknown key, does nothing.
func (b *Broker[K, V]) Unsubscribe(key K, q *Queue[V]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[key]
	if !ok {
		return
	}
	delete(set, q)
	if len(set) == 0 {
		delete(b.subs, key)
	}
}

// Publish delivers v to every queue subscribed to its key and reports how many
// queues were reached. Values without a key are dropped.
func (b *Broker[K, V]) Publish(v V) int {
	key, ok := b.keyOf(v)
	if !ok {
		return 0
	}

	b.mu.Lock()
	set := b.subs[key]
	targets := make([]*Queue[V], 0, len(set))
	for q := range set {
		targets = append(targets, q)
	}
	b.mu.Unlock()

	// Queues are unbounded, so a slow reader never holds up the others.
	for _, q := range targets {
		q.Push(v)
	}
	return len(targets)
}

// Subscribers returns the number of live queues for key.
func (b *Broker[K, V]) Subscribers(key K) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

// Keys returns the number of keys with at least one subscriber.
func (b *Broker[K, V]) Keys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

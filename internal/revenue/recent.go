package revenue

import (
	"container/list"
	"sync"
)

// DefaultRecentCapacity is how many accrual ids the pool remembers in memory.
const DefaultRecentCapacity = 65_536

// recentAccruals is an LRU of accrual ids already recorded. It sits in front
// of AccrualStore.Record so redelivered messages skip the store round trip;
// a miss falls through to the store, which stays authoritative.
type recentAccruals struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*list.Element
	order    *list.List
}

func newRecentAccruals(capacity int) *recentAccruals {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &recentAccruals{
		capacity: capacity,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Contains reports whether id was seen, promoting it when it was.
func (r *recentAccruals) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.index[id]
	if ok {
		r.order.MoveToFront(elem)
	}
	return ok
}

func (r *recentAccruals) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[id]; ok {
		r.order.MoveToFront(elem)
		return
	}
	r.index[id] = r.order.PushFront(id)

	if r.order.Len() > r.capacity {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(string))
	}
}

func (r *recentAccruals) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

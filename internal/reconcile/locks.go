package reconcile

import (
	"fmt"
	"slices"
	"sync"
)

// Lock key prefixes.
const (
	keyNetwork = "network"
	keyVM      = "vm"
	keyNic     = "nic"
)

func lockKey(kind string, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// Locker serializes operations per entity. Unrelated keys never block each
// other.
type Locker struct {
	mu sync.Map
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{}
}

// Lock acquires every key in sorted order and returns the release function.
// Duplicate keys are acquired once.
func (l *Locker) Lock(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		v, _ := l.mu.LoadOrStore(k, &sync.Mutex{})
		mtx := v.(*sync.Mutex)
		mtx.Lock()
		held = append(held, mtx)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

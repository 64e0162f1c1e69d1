package inject

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// lazyValue caches one produced instance. Reads of a published value take
// no lock; the first producer holds the mutex while the factory runs so
// racing callers block and then observe the same instance.
type lazyValue struct {
	done  atomic.Bool
	mu    sync.Mutex
	value any
}

// get returns the cached value, producing it with produce on first use.
// A failed production is not cached; the next caller retries.
func (l *lazyValue) get(produce func() (any, error)) (any, error) {
	if l.done.Load() {
		return l.value, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done.Load() {
		return l.value, nil
	}

	v, err := produce()
	if err != nil {
		return nil, err
	}

	l.value = v
	l.done.Store(true)
	return v, nil
}

// peek returns the cached value without producing it.
func (l *lazyValue) peek() (any, bool) {
	if l.done.Load() {
		return l.value, true
	}
	return nil, false
}

// resolution is one node of the call path of a single resolve call. Nodes
// are immutable apart from active, which is set while the descriptor is in
// production on this path. Paths are never shared between calls, so
// concurrent resolutions never observe each other's nodes.
type resolution struct {
	parent     *resolution
	descriptor *Descriptor
	active     atomic.Bool
}

// enter pushes d onto the path and marks it in production. The caller must
// call leave on the returned node.
func (r *resolution) enter(d *Descriptor) *resolution {
	node := &resolution{parent: r, descriptor: d}
	node.active.Store(true)
	return node
}

func (r *resolution) leave() {
	r.active.Store(false)
}

// checkCircular fails when d is already in production on this path.
func (r *resolution) checkCircular(d *Descriptor) error {
	for n := r; n != nil; n = n.parent {
		if n.descriptor == d && n.active.Load() {
			return &CircularDependencyError{
				Contract: d.contract,
				Path:     r.pathFrom(n),
			}
		}
	}
	return nil
}

// pathFrom returns the contracts from start down to r in call order.
func (r *resolution) pathFrom(start *resolution) []reflect.Type {
	var path []reflect.Type
	for n := r; n != nil; n = n.parent {
		path = append(path, n.descriptor.contract)
		if n == start {
			break
		}
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

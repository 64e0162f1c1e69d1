package inject

import (
	"reflect"
	"time"
)

// Observer receives resolution events. Implementations must be safe for
// concurrent use and should return quickly; they run on the resolving
// goroutine.
type Observer interface {
	// OnResolved is called after a top-level Resolve, TryResolve or
	// ResolveMany succeeds.
	OnResolved(contract reflect.Type, duration time.Duration)

	// OnActivated is called after a descriptor produced a new instance.
	OnActivated(descriptor *Descriptor, duration time.Duration)

	// OnError is called when a top-level resolution fails.
	OnError(contract reflect.Type, err error)
}

// NopObserver returns an Observer that ignores every event.
func NopObserver() Observer {
	return nopObserver{}
}

type nopObserver struct{}

func (nopObserver) OnResolved(reflect.Type, time.Duration) {}

func (nopObserver) OnActivated(*Descriptor, time.Duration) {}

func (nopObserver) OnError(reflect.Type, error) {}

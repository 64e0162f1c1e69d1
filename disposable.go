package inject

import (
	"context"
	"sync"
	"time"
)

// Disposable is implemented by services that release resources when the
// scope owning them is closed.
//
// Example:
//
//	type DatabaseConnection struct {
//	    conn *sql.DB
//	}
//
//	func (dc *DatabaseConnection) Close() error {
//	    return dc.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful shutdown.
// The context is bounded by Options.DisposeTimeout.
//
// Example:
//
//	func (dc *DatabaseConnection) Close(ctx context.Context) error {
//	    done := make(chan error, 1)
//	    go func() {
//	        done <- dc.conn.Close()
//	    }()
//
//	    select {
//	    case err := <-done:
//	        return err
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    }
//	}
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

// lifecycleManager tracks disposable instances in creation order.
type lifecycleManager struct {
	mu          sync.Mutex
	disposables []DisposableWithContext
}

// track records instance if it is disposable.
func (m *lifecycleManager) track(instance any) {
	var disposable DisposableWithContext
	switch v := instance.(type) {
	case DisposableWithContext:
		disposable = v
	case Disposable:
		disposable = contextDisposable{v}
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposables = append(m.disposables, disposable)
}

// dispose closes every tracked instance in reverse creation order and
// returns all errors. Tracked instances are released even on failure.
func (m *lifecycleManager) dispose(ctx context.Context, timeout time.Duration) []error {
	m.mu.Lock()
	disposables := m.disposables
	m.disposables = nil
	m.mu.Unlock()

	var errs []error
	for i := len(disposables) - 1; i >= 0; i-- {
		if err := closeWithTimeout(ctx, timeout, disposables[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (m *lifecycleManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.disposables)
}

func closeWithTimeout(ctx context.Context, timeout time.Duration, d DisposableWithContext) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.Close(ctx)
}

// contextDisposable adapts Disposable to DisposableWithContext.
type contextDisposable struct {
	disposable Disposable
}

func (w contextDisposable) Close(context.Context) error {
	return w.disposable.Close()
}

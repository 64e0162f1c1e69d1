package inject

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// Resolver resolves contracts. Factories receive a Resolver bound to the
// resolution in progress, so dependencies they resolve take part in
// circular dependency detection.
type Resolver interface {
	// Resolve returns an instance of contract. It fails with
	// ServiceNotFoundError when nothing is registered and no source
	// matches. For a multiple registration it returns the last one.
	Resolve(contract reflect.Type) (any, error)

	// TryResolve is Resolve reporting a missing contract as found=false
	// instead of an error. Errors of a found contract are returned.
	TryResolve(contract reflect.Type) (value any, found bool, err error)

	// ResolveMany returns every instance of contract in registration order.
	// An unknown contract yields an empty slice and a singular registration
	// a single element.
	ResolveMany(contract reflect.Type, opts ...ResolveManyOption) ([]any, error)
}

// Injector is a built container or one of its scopes.
//
// The root Injector returned by Registry.Build owns the singletons; every
// Injector owns the scoped instances it produced. Closing an Injector closes
// its child scopes first, then disposes what it owns in reverse creation
// order.
//
// Example:
//
//	scope, err := injector.CreateScope(r.Context())
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	repo, err := inject.Resolve[Repository](scope)
type Injector interface {
	Resolver

	// ID returns the unique ID of this injector or scope.
	ID() string

	// Registry returns the registry the injector was built from.
	Registry() *Registry

	// ResolveDescriptor produces an instance of one specific registration,
	// honouring its lifetime.
	ResolveDescriptor(d *Descriptor) (any, error)

	// CreateScope creates a child scope. Singletons are shared with the
	// parent; scoped services get instances of their own. The scope closes
	// itself when ctx is cancelled, and a ctx that is already done fails
	// with ctx.Err().
	CreateScope(ctx context.Context) (Injector, error)

	// Context returns the context of this scope. FromContext recovers the
	// scope from it.
	Context() context.Context

	// IsRoot reports whether this is the root injector.
	IsRoot() bool

	// IsDisposed reports whether Close has been called.
	IsDisposed() bool

	// Close disposes owned instances and child scopes. It is safe to call
	// multiple times.
	Disposable
}

// injector holds the state shared by the root and all of its scopes.
type injector struct {
	registry *Registry
	options  *Options
	logger   *zap.Logger
	observer Observer

	// singletons tracks disposable singletons in activation order
	singletons lifecycleManager

	root *scope
}

func newInjector(registry *Registry, options *Options) *injector {
	inj := &injector{
		registry: registry,
		options:  options,
		logger:   options.Logger,
		observer: options.Observer,
	}
	inj.root = newScope(inj, nil, context.Background())
	return inj
}

// boundResolver resolves within a scope on one call path.
type boundResolver struct {
	scope *scope
	chain *resolution
}

func (b *boundResolver) Resolve(contract reflect.Type) (any, error) {
	return b.scope.resolve(contract, b.chain)
}

func (b *boundResolver) TryResolve(contract reflect.Type) (any, bool, error) {
	return b.scope.tryResolve(contract, b.chain)
}

func (b *boundResolver) ResolveMany(contract reflect.Type, opts ...ResolveManyOption) ([]any, error) {
	return b.scope.resolveMany(contract, b.chain, opts...)
}

// Context returns the context of the scope the resolution runs in.
func (b *boundResolver) Context() context.Context {
	return b.scope.ctx
}

func asBound(res Resolver) (*boundResolver, error) {
	switch v := res.(type) {
	case *boundResolver:
		return v, nil
	case *scope:
		return &boundResolver{scope: v}, nil
	default:
		return nil, fmt.Errorf("resolver %T is not provided by an injector", res)
	}
}

// scopeContextKey is the key for storing the current scope in context.
type scopeContextKey struct{}

// FromContext returns the scope whose Context is ctx or derives from it.
func FromContext(ctx context.Context) (Injector, error) {
	if ctx == nil {
		return nil, ErrScopeNotInContext
	}

	s, ok := ctx.Value(scopeContextKey{}).(*scope)
	if !ok || s == nil {
		return nil, ErrScopeNotInContext
	}

	if err := s.checkDisposed(); err != nil {
		return nil, err
	}

	return s, nil
}

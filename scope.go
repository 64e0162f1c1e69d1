package inject

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// scope implements Injector for the root and for child scopes.
type scope struct {
	id       string
	injector *injector
	parent   *scope
	ctx      context.Context
	stop     func() bool

	disposed atomic.Bool

	mu       sync.Mutex
	scoped   map[*Descriptor]*lazyValue
	children []*scope

	// lifecycle tracks disposable scoped instances produced by this scope
	lifecycle lifecycleManager
}

func newScope(inj *injector, parent *scope, ctx context.Context) *scope {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &scope{
		id:       uuid.NewString(),
		injector: inj,
		parent:   parent,
		scoped:   make(map[*Descriptor]*lazyValue),
	}

	s.ctx = context.WithValue(ctx, scopeContextKey{}, s)

	return s
}

// closeOnDone closes s once its context is done. It must run after s is
// linked to its parent so a cancellation can never observe a scope the
// parent does not know about yet.
func (s *scope) closeOnDone() {
	if s.ctx.Done() == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return
	}

	s.stop = context.AfterFunc(s.ctx, func() {
		if err := s.Close(); err != nil {
			s.injector.logger.Warn("failed to close cancelled scope",
				zap.String("scope", s.id),
				zap.Error(err))
		}
	})
}

func (s *scope) ID() string {
	return s.id
}

func (s *scope) Registry() *Registry {
	return s.injector.registry
}

func (s *scope) Context() context.Context {
	return s.ctx
}

func (s *scope) IsRoot() bool {
	return s.parent == nil
}

func (s *scope) IsDisposed() bool {
	return s.disposed.Load()
}

func (s *scope) checkDisposed() error {
	if !s.disposed.Load() {
		return nil
	}
	if s.parent == nil {
		return ErrInjectorDisposed
	}
	return ErrScopeDisposed
}

// CreateScope implements Injector. A context that is already done fails
// with its error.
func (s *scope) CreateScope(ctx context.Context) (Injector, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}

	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	child := newScope(s.injector, s, ctx)

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		child.Close()
		return nil, s.checkDisposed()
	}
	s.children = append(s.children, child)
	s.mu.Unlock()

	child.closeOnDone()

	s.injector.logger.Debug("scope created",
		zap.String("scope", child.id),
		zap.String("parent", s.id))

	return child, nil
}

// Resolve implements Resolver.
func (s *scope) Resolve(contract reflect.Type) (any, error) {
	start := time.Now()
	v, err := s.resolve(contract, nil)
	s.observe(contract, start, err)
	return v, err
}

// TryResolve implements Resolver.
func (s *scope) TryResolve(contract reflect.Type) (any, bool, error) {
	start := time.Now()
	v, found, err := s.tryResolve(contract, nil)
	s.observe(contract, start, err)
	return v, found, err
}

// ResolveMany implements Resolver.
func (s *scope) ResolveMany(contract reflect.Type, opts ...ResolveManyOption) ([]any, error) {
	start := time.Now()
	values, err := s.resolveMany(contract, nil, opts...)
	s.observe(contract, start, err)
	return values, err
}

// ResolveDescriptor implements Injector.
func (s *scope) ResolveDescriptor(d *Descriptor) (any, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}

	if d == nil {
		return nil, ErrDescriptorNil
	}

	if d.owner != s.injector.registry {
		return nil, &ValidationError{Contract: d.contract, Cause: ErrDescriptorForeign}
	}

	start := time.Now()
	v, err := s.produce(d, nil)
	s.observe(d.contract, start, err)
	return v, err
}

func (s *scope) observe(contract reflect.Type, start time.Time, err error) {
	if err != nil {
		s.injector.observer.OnError(contract, err)
		return
	}
	s.injector.observer.OnResolved(contract, time.Since(start))
}

func (s *scope) resolve(contract reflect.Type, chain *resolution) (any, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}

	if contract == nil {
		return nil, ErrContractNil
	}

	e, ok, err := s.injector.registry.lookup(contract)
	if err != nil {
		return nil, err
	}

	var d *Descriptor
	if ok {
		d = e.last()
	}

	if d == nil {
		return nil, &ServiceNotFoundError{
			Contract:  contract,
			Available: s.injector.registry.Contracts(),
		}
	}

	return s.produce(d, chain)
}

func (s *scope) tryResolve(contract reflect.Type, chain *resolution) (any, bool, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, false, err
	}

	if contract == nil {
		return nil, false, ErrContractNil
	}

	e, ok, err := s.injector.registry.lookup(contract)
	if err != nil {
		return nil, false, err
	}

	if !ok {
		return nil, false, nil
	}

	d := e.last()
	if d == nil {
		return nil, false, nil
	}

	v, err := s.produce(d, chain)
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

func (s *scope) resolveMany(contract reflect.Type, chain *resolution, opts ...ResolveManyOption) ([]any, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}

	if contract == nil {
		return nil, ErrContractNil
	}

	options := &resolveManyOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyResolveManyOption(options)
		}
	}

	e, ok, err := s.injector.registry.lookup(contract)
	if err != nil {
		return nil, err
	}

	if !ok {
		return []any{}, nil
	}

	descriptors := e.all()
	if options.byPriority {
		sortByPriority(s.injector.registry, descriptors)
	}

	values := make([]any, 0, len(descriptors))
	for _, d := range descriptors {
		v, err := s.produce(d, chain)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, nil
}

// produce returns the instance of d for this scope, honouring its lifetime.
// The circular check runs before any lock is taken, so a re-entrant request
// fails instead of deadlocking on the singleton lock it already holds.
func (s *scope) produce(d *Descriptor, chain *resolution) (any, error) {
	if err := chain.checkCircular(d); err != nil {
		return nil, err
	}

	switch d.lifetime {
	case Singleton:
		root := s.injector.root
		return d.singleton.get(func() (any, error) {
			return root.activate(d, chain)
		})

	case Scoped:
		holder, err := s.scopedHolder(d)
		if err != nil {
			return nil, err
		}
		return holder.get(func() (any, error) {
			return s.activate(d, chain)
		})

	default:
		return s.activate(d, chain)
	}
}

func (s *scope) scopedHolder(d *Descriptor) (*lazyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return nil, s.checkDisposed()
	}

	holder, ok := s.scoped[d]
	if !ok {
		holder = &lazyValue{}
		s.scoped[d] = holder
	}
	return holder, nil
}

// activate runs the strategy of d with d marked in production on the path.
func (s *scope) activate(d *Descriptor, chain *resolution) (value any, err error) {
	node := chain.enter(d)
	defer node.leave()

	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = &ConstructorPanicError{
				Contract: d.contract,
				Panic:    p,
				Stack:    debug.Stack(),
			}
		}
	}()

	switch d.strategy.kind {
	case InstanceStrategy:
		value = d.strategy.instance

	case FactoryStrategy:
		value, err = d.strategy.factory(&boundResolver{scope: s, chain: node})
		if err != nil {
			return nil, &ConstructorInvocationError{Contract: d.contract, Cause: err}
		}

		if value != nil && !reflect.TypeOf(value).AssignableTo(d.contract) {
			return nil, &ContractMismatchError{
				Contract: d.contract,
				Actual:   reflect.TypeOf(value),
				Reason:   "factory result does not implement the contract",
			}
		}

	case ImplementationStrategy:
		var candidate *constructorCandidate
		candidate, err = d.constructorFor(s.injector.registry)
		if err != nil {
			return nil, err
		}

		value, err = candidate.invoke(d.contract, s.parameterResolver(node))
		if err != nil {
			return nil, err
		}

	default:
		return nil, &ValidationError{Contract: d.contract, Cause: ErrStrategyMissing}
	}

	s.track(d, value)

	duration := time.Since(start)
	s.injector.observer.OnActivated(d, duration)

	if d.lifetime == Singleton {
		s.injector.logger.Debug("singleton activated",
			zap.Stringer("contract", d.contract),
			zap.Duration("duration", duration))
	}

	return value, nil
}

func (s *scope) parameterResolver(node *resolution) parameterResolver {
	return func(t reflect.Type, optional bool) (any, bool, error) {
		if optional {
			return s.tryResolve(t, node)
		}

		v, err := s.resolve(t, node)
		return v, true, err
	}
}

// track records a produced instance for disposal by its owner. Transient
// and externally owned instances are never tracked.
func (s *scope) track(d *Descriptor, value any) {
	if value == nil || d.externallyOwned {
		return
	}

	switch d.lifetime {
	case Singleton:
		s.injector.singletons.track(value)
	case Scoped:
		s.lifecycle.track(value)
	}
}

func (s *scope) removeChild(child *scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// Close implements Disposable. Child scopes are closed first in reverse
// creation order, then the scoped instances of this scope, and for the
// root the singletons, each in reverse creation order.
func (s *scope) Close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	children := s.children
	s.children = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	ctx := context.WithoutCancel(s.ctx)
	timeout := s.injector.options.DisposeTimeout

	errs = append(errs, s.lifecycle.dispose(ctx, timeout)...)

	kind := "scope"
	if s.parent == nil {
		kind = "injector"
		errs = append(errs, s.injector.singletons.dispose(ctx, timeout)...)
	}

	s.injector.logger.Debug(kind+" closed",
		zap.String("id", s.id),
		zap.Int("errors", len(errs)))

	if len(errs) > 0 {
		return &DisposalError{Context: kind, Errors: errs}
	}

	return nil
}

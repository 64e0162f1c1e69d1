package inject

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/junioryono/inject/internal/reflection"
)

// Registry maps contract types to their registrations and holds the service
// sources consulted for contracts that are not registered explicitly.
//
// A Registry follows a build-then-use split: registrations are added first,
// then Build seals it and returns the Injector. Reads are safe for concurrent
// use at any time; writes after Build fail with ErrRegistrySealed.
//
// Example:
//
//	registry := inject.NewRegistry()
//	inject.AddSingleton[Logger](registry, NewLogger)
//	inject.AddScoped[Repository](registry, NewRepository)
//
//	injector, err := registry.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer injector.Close()
type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*entry
	order   []reflect.Type
	sources []Source
	sealed  bool

	// synthesized caches source results per closed contract once sealed
	synthesized sync.Map // reflect.Type -> *entry

	metadataProvider MetadataProvider
	metadataCache    sync.Map // reflect.Type -> *derivedMetadata

	analyzer *reflection.Analyzer
	logger   *zap.Logger
}

// entry is the registration of one contract: a single descriptor or a
// multi descriptor.
type entry struct {
	single *Descriptor
	multi  *MultiDescriptor
}

// last returns the descriptor Resolve uses: the single registration, or the
// last registration of a multi entry.
func (e *entry) last() *Descriptor {
	if e.single != nil {
		return e.single
	}
	if e.multi != nil && len(e.multi.descriptors) > 0 {
		return e.multi.descriptors[len(e.multi.descriptors)-1]
	}
	return nil
}

// all returns every descriptor in registration order.
func (e *entry) all() []*Descriptor {
	if e.single != nil {
		return []*Descriptor{e.single}
	}
	if e.multi != nil {
		return e.multi.Descriptors()
	}
	return nil
}

// RegistryOption configures a Registry.
type RegistryOption interface {
	applyRegistryOption(*Registry)
}

type registryOptionFunc func(*Registry)

func (f registryOptionFunc) applyRegistryOption(r *Registry) {
	f(r)
}

// WithMetadataProvider sets the provider deriving metadata from
// implementation types. The provider runs at most once per type.
func WithMetadataProvider(provider MetadataProvider) RegistryOption {
	return registryOptionFunc(func(r *Registry) {
		r.metadataProvider = provider
	})
}

// WithRegistryLogger sets the logger used for registration events.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return registryOptionFunc(func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	})
}

// WithoutBuiltinSources disables the collection, Lazy and ExportFactory
// sources that NewRegistry registers by default.
func WithoutBuiltinSources() RegistryOption {
	return registryOptionFunc(func(r *Registry) {
		r.sources = nil
	})
}

// NewRegistry creates an empty registry with the built-in sources.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:  make(map[reflect.Type]*entry),
		analyzer: reflection.New(),
		logger:   zap.NewNop(),
	}

	r.sources = builtinSources()

	for _, opt := range opts {
		if opt != nil {
			opt.applyRegistryOption(r)
		}
	}

	return r
}

// Register inserts a descriptor.
//
// A multiple registration is appended to an existing multiple registration
// of the same contract. A singular registration replaces an existing
// singular one: the last registration wins. Mixing singular and multiple
// registrations of one contract fails with RegistrationConflictError.
func (r *Registry) Register(d *Descriptor) error {
	if r == nil {
		return ErrRegistryNil
	}

	if d == nil {
		return ErrDescriptorNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	if d.owner != nil && d.owner != r {
		return &ValidationError{Contract: d.contract, Cause: ErrDescriptorForeign}
	}

	existing, ok := r.entries[d.contract]

	switch {
	case !ok:
		e := &entry{}
		if d.allowMultiple {
			e.multi = &MultiDescriptor{contract: d.contract, descriptors: []*Descriptor{d}}
		} else {
			e.single = d
		}
		r.entries[d.contract] = e
		r.order = append(r.order, d.contract)

	case d.allowMultiple:
		if existing.multi == nil {
			return &RegistrationConflictError{Contract: d.contract, ExistingMultiple: false}
		}
		existing.multi.descriptors = append(existing.multi.descriptors, d)

	default:
		if existing.multi != nil {
			return &RegistrationConflictError{Contract: d.contract, ExistingMultiple: true}
		}

		r.logger.Debug("registration replaced",
			zap.Stringer("contract", d.contract),
			zap.Stringer("previous", existing.single),
			zap.Stringer("descriptor", d))
		existing.single = d
	}

	d.owner = r
	return nil
}

// Add creates a descriptor and registers it.
func (r *Registry) Add(contract reflect.Type, strategy Strategy, opts ...DescriptorOption) error {
	if r == nil {
		return ErrRegistryNil
	}

	d, err := newDescriptorWithAnalyzer(contract, strategy, r.analyzer, opts...)
	if err != nil {
		return err
	}

	return r.Register(d)
}

// DeclareMultiple registers an empty multiple registration for contract,
// so ResolveMany returns an empty slice and later AllowMultiple
// registrations append to it. It is a no-op when a multiple registration
// already exists.
func (r *Registry) DeclareMultiple(contract reflect.Type) error {
	if r == nil {
		return ErrRegistryNil
	}

	if contract == nil {
		return &ContractMismatchError{Reason: "contract type cannot be nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	if existing, ok := r.entries[contract]; ok {
		if existing.multi == nil {
			return &RegistrationConflictError{Contract: contract, ExistingMultiple: false}
		}
		return nil
	}

	r.entries[contract] = &entry{multi: &MultiDescriptor{contract: contract}}
	r.order = append(r.order, contract)
	return nil
}

// RegisterSource appends a service source. Sources are consulted in
// registration order for contracts without an explicit registration.
func (r *Registry) RegisterSource(source Source) error {
	if r == nil {
		return ErrRegistryNil
	}

	if source.Matches == nil || source.Resolve == nil {
		return ErrSourceIncomplete
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}

	r.sources = append(r.sources, source)
	return nil
}

// IsRegistered reports whether contract has a registration or a source
// matches it.
func (r *Registry) IsRegistered(contract reflect.Type) bool {
	if r == nil || contract == nil {
		return false
	}

	r.mu.RLock()
	_, ok := r.entries[contract]
	sources := r.sources
	r.mu.RUnlock()

	if ok {
		return true
	}

	if _, ok := r.synthesized.Load(contract); ok {
		return true
	}

	for _, s := range sources {
		if s.Matches(r, contract) {
			return true
		}
	}

	return false
}

// TryGet returns the descriptor Resolve would use for contract. For a
// multiple registration this is its last registration.
func (r *Registry) TryGet(contract reflect.Type) (*Descriptor, bool) {
	e, ok, err := r.lookup(contract)
	if err != nil || !ok {
		return nil, false
	}

	d := e.last()
	return d, d != nil
}

// TryGetMany returns every descriptor of contract in registration order.
func (r *Registry) TryGetMany(contract reflect.Type) ([]*Descriptor, bool) {
	e, ok, err := r.lookup(contract)
	if err != nil || !ok {
		return nil, false
	}

	return e.all(), true
}

// Contracts returns the explicitly registered contracts in registration order.
func (r *Registry) Contracts() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]reflect.Type, len(r.order))
	copy(result, r.order)
	return result
}

// Descriptors returns every explicit registration in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Descriptor
	for _, t := range r.order {
		result = append(result, r.entries[t].all()...)
	}
	return result
}

// Len returns the number of explicitly registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// MetadataOf returns the metadata of d: metadata derived by the registry's
// MetadataProvider from the implementation type, overlaid with the
// metadata declared at registration.
func (r *Registry) MetadataOf(d *Descriptor) Metadata {
	if d == nil {
		return Metadata{}
	}

	if r == nil || r.metadataProvider == nil || d.implementation == nil {
		return d.metadata
	}

	cached, ok := r.metadataCache.Load(d.implementation)
	if !ok {
		cached, _ = r.metadataCache.LoadOrStore(d.implementation, &derivedMetadata{})
	}

	derived := cached.(*derivedMetadata)
	derived.once.Do(func() {
		derived.metadata = r.metadataProvider(d.implementation)
	})

	return derived.metadata.Merge(d.metadata)
}

// derivedMetadata holds the provider result for one implementation type.
type derivedMetadata struct {
	once     sync.Once
	metadata Metadata
}

// IsSealed reports whether Build has been called.
func (r *Registry) IsSealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Build seals the registry and creates the root Injector with default options.
func (r *Registry) Build() (Injector, error) {
	return r.BuildWithOptions(nil)
}

// BuildWithOptions seals the registry and creates the root Injector.
// A registry can be built once.
func (r *Registry) BuildWithOptions(options *Options) (Injector, error) {
	if r == nil {
		return nil, ErrRegistryNil
	}

	options = options.withDefaults()

	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		return nil, ErrRegistrySealed
	}
	r.sealed = true
	r.mu.Unlock()

	var singletons []*Descriptor
	if options.ValidateOnBuild || options.EagerSingletons {
		var err error
		if singletons, err = r.validate(); err != nil {
			return nil, err
		}
	}

	inj := newInjector(r, options)

	if options.EagerSingletons {
		if err := inj.root.activateSingletons(singletons); err != nil {
			inj.root.Close()
			return nil, err
		}
	}

	options.Logger.Debug("injector built",
		zap.String("injector", inj.root.id),
		zap.Int("contracts", r.Len()))

	return inj.root, nil
}

// AddModules applies modules in order, stopping at the first error.
func (r *Registry) AddModules(modules ...Module) error {
	for _, module := range modules {
		if module == nil {
			continue
		}

		if err := module(r); err != nil {
			return err
		}
	}
	return nil
}

// lookup finds the registration of contract: the explicit table first, then
// results already synthesized by sources, then the sources in registration
// order. Synthesized entries are cached only once the registry is sealed,
// since a source result reflects the registrations present when it ran.
func (r *Registry) lookup(contract reflect.Type) (*entry, bool, error) {
	if r == nil || contract == nil {
		return nil, false, nil
	}

	r.mu.RLock()
	e, ok := r.entries[contract]
	sources := r.sources
	sealed := r.sealed
	r.mu.RUnlock()

	if ok {
		return e, true, nil
	}

	if sealed {
		if cached, ok := r.synthesized.Load(contract); ok {
			return cached.(*entry), true, nil
		}
	}

	for _, s := range sources {
		if !s.Matches(r, contract) {
			continue
		}

		e, err := r.synthesize(s, contract)
		if err != nil {
			return nil, false, err
		}

		if !sealed {
			return e, true, nil
		}

		actual, _ := r.synthesized.LoadOrStore(contract, e)
		return actual.(*entry), true, nil
	}

	return nil, false, nil
}

// synthesize turns the descriptors of a matching source into an entry.
func (r *Registry) synthesize(s Source, contract reflect.Type) (*entry, error) {
	descriptors, err := s.Resolve(r, contract)
	if err != nil {
		return nil, &SourceError{Source: s.Name, Contract: contract, Cause: err}
	}

	for _, d := range descriptors {
		if d == nil {
			return nil, &SourceError{Source: s.Name, Contract: contract, Cause: ErrDescriptorNil}
		}

		if d.contract != contract {
			return nil, &SourceError{Source: s.Name, Contract: contract, Cause: &ContractMismatchError{
				Contract: contract,
				Actual:   d.contract,
				Reason:   "source produced a descriptor for a different contract",
			}}
		}
		d.owner = r
	}

	if len(descriptors) == 1 && !descriptors[0].allowMultiple {
		return &entry{single: descriptors[0]}, nil
	}

	for _, d := range descriptors {
		if !d.allowMultiple {
			return nil, &SourceError{Source: s.Name, Contract: contract, Cause: &RegistrationConflictError{Contract: contract, ExistingMultiple: true}}
		}
	}

	return &entry{multi: &MultiDescriptor{contract: contract, descriptors: descriptors}}, nil
}

// newDescriptor creates a descriptor sharing the registry's analyzer cache.
func (r *Registry) newDescriptor(contract reflect.Type, strategy Strategy, opts ...DescriptorOption) (*Descriptor, error) {
	return newDescriptorWithAnalyzer(contract, strategy, r.analyzer, opts...)
}

// Add registers an implementation of T with the given lifetime, built by
// one of constructors.
func Add[T any](r *Registry, lifetime Lifetime, constructors ...any) error {
	return r.Add(reflect.TypeFor[T](), Implementation(constructors...), WithLifetime(lifetime))
}

// AddSingleton registers a Singleton implementation of T.
func AddSingleton[T any](r *Registry, constructor any, opts ...DescriptorOption) error {
	return r.Add(reflect.TypeFor[T](), Implementation(constructor), append([]DescriptorOption{WithLifetime(Singleton)}, opts...)...)
}

// AddScoped registers a Scoped implementation of T.
func AddScoped[T any](r *Registry, constructor any, opts ...DescriptorOption) error {
	return r.Add(reflect.TypeFor[T](), Implementation(constructor), append([]DescriptorOption{WithLifetime(Scoped)}, opts...)...)
}

// AddTransient registers a Transient implementation of T.
func AddTransient[T any](r *Registry, constructor any, opts ...DescriptorOption) error {
	return r.Add(reflect.TypeFor[T](), Implementation(constructor), append([]DescriptorOption{WithLifetime(Transient)}, opts...)...)
}

// AddInstance registers an existing value as the Singleton instance of T.
func AddInstance[T any](r *Registry, instance T, opts ...DescriptorOption) error {
	return r.Add(reflect.TypeFor[T](), Instance(instance), opts...)
}

// AddFactory registers a factory for T.
func AddFactory[T any](r *Registry, factory func(Resolver) (T, error), opts ...DescriptorOption) error {
	if factory == nil {
		return &ValidationError{Contract: reflect.TypeFor[T](), Cause: ErrConstructorNil}
	}

	return r.Add(reflect.TypeFor[T](), Factory(func(res Resolver) (any, error) {
		return factory(res)
	}), opts...)
}

package inject

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/junioryono/inject/internal/reflection"
)

// Descriptor describes how to produce instances for a contract: the
// contract type used as lookup key, the lifetime, the instancing strategy,
// metadata, whether the contract is a collection, and whether the container
// owns disposal of what it produces.
//
// Descriptors are immutable once created and belong to at most one Registry.
type Descriptor struct {
	contract        reflect.Type
	lifetime        Lifetime
	allowMultiple   bool
	strategy        Strategy
	metadata        Metadata
	externallyOwned bool

	// implementation is the concrete type produced, when known
	implementation reflect.Type
	candidates     []*constructorCandidate

	// singleton holds the cached instance of Singleton registrations
	singleton lazyValue

	selectOnce sync.Once
	selected   *constructorCandidate
	selectErr  error

	owner *Registry
}

// MultiDescriptor is the ordered set of registrations of an AllowMultiple
// contract, in registration order.
type MultiDescriptor struct {
	contract    reflect.Type
	descriptors []*Descriptor
}

// Contract returns the shared contract type.
func (m *MultiDescriptor) Contract() reflect.Type {
	return m.contract
}

// Descriptors returns a copy of the registrations in registration order.
func (m *MultiDescriptor) Descriptors() []*Descriptor {
	result := make([]*Descriptor, len(m.descriptors))
	copy(result, m.descriptors)
	return result
}

// Len returns the number of registrations.
func (m *MultiDescriptor) Len() int {
	return len(m.descriptors)
}

// NewDescriptor creates a descriptor for contract. Incompatibilities between
// the strategy and the contract are reported here as ContractMismatchError,
// never deferred to resolve time.
func NewDescriptor(contract reflect.Type, strategy Strategy, opts ...DescriptorOption) (*Descriptor, error) {
	return newDescriptorWithAnalyzer(contract, strategy, nil, opts...)
}

// newDescriptorWithAnalyzer creates a descriptor using the provided analyzer for caching
func newDescriptorWithAnalyzer(contract reflect.Type, strategy Strategy, analyzer *reflection.Analyzer, opts ...DescriptorOption) (*Descriptor, error) {
	if contract == nil {
		return nil, &ContractMismatchError{Reason: "contract type cannot be nil"}
	}

	options := &descriptorOptions{lifetime: Singleton}
	for _, opt := range opts {
		if opt != nil {
			opt.applyDescriptorOption(options)
		}
	}

	if !options.lifetime.IsValid() {
		return nil, &LifetimeError{Value: int(options.lifetime)}
	}

	d := &Descriptor{
		contract:        contract,
		lifetime:        options.lifetime,
		allowMultiple:   options.allowMultiple,
		strategy:        strategy,
		metadata:        options.metadata,
		externallyOwned: options.externallyOwned,
	}

	switch strategy.kind {
	case InstanceStrategy:
		if strategy.instance == nil {
			return nil, &ValidationError{Contract: contract, Cause: errors.New("instance cannot be nil")}
		}

		instanceType := reflect.TypeOf(strategy.instance)
		if !instanceType.AssignableTo(contract) {
			return nil, &ContractMismatchError{
				Contract: contract,
				Actual:   instanceType,
				Reason:   "instance does not implement the contract",
			}
		}
		d.implementation = instanceType

	case FactoryStrategy:
		if strategy.factory == nil {
			return nil, &ValidationError{Contract: contract, Cause: ErrConstructorNil}
		}

	case ImplementationStrategy:
		if analyzer == nil {
			analyzer = reflection.New()
		}

		if err := d.analyzeConstructors(analyzer); err != nil {
			return nil, err
		}

	default:
		return nil, &ValidationError{Contract: contract, Cause: ErrStrategyMissing}
	}

	return d, nil
}

// analyzeConstructors validates the constructors of an implementation
// strategy and prepares them as candidates.
func (d *Descriptor) analyzeConstructors(analyzer *reflection.Analyzer) error {
	implementation := d.strategy.implementation

	if len(d.strategy.constructors) == 0 {
		if implementation == nil {
			return &ValidationError{Contract: d.contract, Cause: errors.New("implementation requires at least one constructor")}
		}

		candidate, err := zeroValueCandidate(implementation)
		if err != nil {
			return &ValidationError{Contract: d.contract, Cause: err}
		}
		d.candidates = []*constructorCandidate{candidate}
	}

	for i, c := range d.strategy.constructors {
		if c.Func == nil {
			return &ValidationError{Contract: d.contract, Cause: ErrConstructorNil}
		}

		info, err := analyzer.Analyze(c.Func)
		if err != nil {
			return &ValidationError{Contract: d.contract, Cause: fmt.Errorf("constructor %d: %w", i, err)}
		}

		if implementation == nil {
			implementation = info.Result
		} else if info.Result != implementation {
			return &ContractMismatchError{
				Contract: d.contract,
				Actual:   info.Result,
				Reason:   fmt.Sprintf("constructor %d produces a different type than %s", i, formatType(implementation)),
			}
		}

		candidate, err := newConstructorCandidate(c, info)
		if err != nil {
			return &ValidationError{Contract: d.contract, Cause: fmt.Errorf("constructor %d: %w", i, err)}
		}
		d.candidates = append(d.candidates, candidate)
	}

	if !implementation.AssignableTo(d.contract) {
		return &ContractMismatchError{
			Contract: d.contract,
			Actual:   implementation,
			Reason:   "implementation does not implement the contract",
		}
	}

	d.implementation = implementation
	return nil
}

// Contract returns the contract type used as lookup key.
func (d *Descriptor) Contract() reflect.Type {
	return d.contract
}

// Lifetime returns the lifetime of produced instances.
func (d *Descriptor) Lifetime() Lifetime {
	return d.lifetime
}

// AllowMultiple reports whether the contract resolves to a collection.
func (d *Descriptor) AllowMultiple() bool {
	return d.allowMultiple
}

// Strategy returns the instancing strategy.
func (d *Descriptor) Strategy() Strategy {
	return d.strategy
}

// Metadata returns the metadata declared at registration. Use
// Registry.MetadataOf to include metadata from the MetadataProvider.
func (d *Descriptor) Metadata() Metadata {
	return d.metadata
}

// ExternallyOwned reports whether the container must never dispose
// instances produced for this descriptor.
func (d *Descriptor) ExternallyOwned() bool {
	return d.externallyOwned
}

// ImplementationType returns the concrete produced type, or nil for
// factories.
func (d *Descriptor) ImplementationType() reflect.Type {
	return d.implementation
}

// GetType implements graph.Provider.
func (d *Descriptor) GetType() reflect.Type {
	return d.contract
}

// LifetimeName is used by the graph visualizer to color nodes.
func (d *Descriptor) LifetimeName() string {
	return d.lifetime.String()
}

// String describes the descriptor for logs and errors.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s{%s, %s, multiple=%t}",
		formatType(d.contract), d.strategy.kind, d.lifetime, d.allowMultiple)
}

// DescriptorOption modifies the defaults of a registration.
type DescriptorOption interface {
	applyDescriptorOption(*descriptorOptions)
}

type descriptorOptions struct {
	lifetime        Lifetime
	allowMultiple   bool
	metadata        Metadata
	externallyOwned bool
}

// WithLifetime sets the lifetime. The default is Singleton.
func WithLifetime(lifetime Lifetime) DescriptorOption {
	return lifetimeOption(lifetime)
}

type lifetimeOption Lifetime

func (o lifetimeOption) String() string {
	return fmt.Sprintf("WithLifetime(%s)", Lifetime(o))
}

func (o lifetimeOption) applyDescriptorOption(opts *descriptorOptions) {
	opts.lifetime = Lifetime(o)
}

// AllowMultiple marks the registration as one element of a collection
// contract. All registrations of one contract must agree on this flag.
func AllowMultiple() DescriptorOption {
	return allowMultipleOption{}
}

type allowMultipleOption struct{}

func (allowMultipleOption) String() string {
	return "AllowMultiple()"
}

func (allowMultipleOption) applyDescriptorOption(opts *descriptorOptions) {
	opts.allowMultiple = true
}

// WithMetadata adds one metadata entry. Repeated options accumulate in order.
func WithMetadata(key string, value any) DescriptorOption {
	return metadataOption{key: key, value: value}
}

// WithPriority sets the OverridePriority metadata entry.
func WithPriority(priority int) DescriptorOption {
	return metadataOption{key: OverridePriorityKey, value: priority}
}

type metadataOption struct {
	key   string
	value any
}

func (o metadataOption) String() string {
	return fmt.Sprintf("WithMetadata(%q, %v)", o.key, o.value)
}

func (o metadataOption) applyDescriptorOption(opts *descriptorOptions) {
	opts.metadata = opts.metadata.Set(o.key, o.value)
}

// ExternallyOwned prevents the container from disposing produced instances.
func ExternallyOwned() DescriptorOption {
	return externallyOwnedOption{}
}

type externallyOwnedOption struct{}

func (externallyOwnedOption) String() string {
	return "ExternallyOwned()"
}

func (externallyOwnedOption) applyDescriptorOption(opts *descriptorOptions) {
	opts.externallyOwned = true
}

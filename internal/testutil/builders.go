package testutil

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
)

// RegistryBuilder provides a fluent interface for building test registries
type RegistryBuilder struct {
	t        testing.TB
	registry *inject.Registry
	options  *inject.Options
}

// NewRegistryBuilder creates a new RegistryBuilder
func NewRegistryBuilder(t testing.TB, opts ...inject.RegistryOption) *RegistryBuilder {
	return &RegistryBuilder{
		t:        t,
		registry: inject.NewRegistry(opts...),
	}
}

// WithSingleton registers a singleton implementation of contract.
func (b *RegistryBuilder) WithSingleton(contract reflect.Type, constructor any, opts ...inject.DescriptorOption) *RegistryBuilder {
	return b.with(contract, inject.Singleton, constructor, opts)
}

// WithScoped registers a scoped implementation of contract.
func (b *RegistryBuilder) WithScoped(contract reflect.Type, constructor any, opts ...inject.DescriptorOption) *RegistryBuilder {
	return b.with(contract, inject.Scoped, constructor, opts)
}

// WithTransient registers a transient implementation of contract.
func (b *RegistryBuilder) WithTransient(contract reflect.Type, constructor any, opts ...inject.DescriptorOption) *RegistryBuilder {
	return b.with(contract, inject.Transient, constructor, opts)
}

// WithInstance registers an existing value for contract.
func (b *RegistryBuilder) WithInstance(contract reflect.Type, instance any, opts ...inject.DescriptorOption) *RegistryBuilder {
	require.NoError(b.t, b.registry.Add(contract, inject.Instance(instance), opts...))
	return b
}

// WithModule applies a module.
func (b *RegistryBuilder) WithModule(module inject.Module) *RegistryBuilder {
	require.NoError(b.t, b.registry.AddModules(module))
	return b
}

// WithOptions sets the options used to build the injector.
func (b *RegistryBuilder) WithOptions(options *inject.Options) *RegistryBuilder {
	b.options = options
	return b
}

func (b *RegistryBuilder) with(contract reflect.Type, lifetime inject.Lifetime, constructor any, opts []inject.DescriptorOption) *RegistryBuilder {
	opts = append([]inject.DescriptorOption{inject.WithLifetime(lifetime)}, opts...)
	require.NoError(b.t, b.registry.Add(contract, inject.Implementation(constructor), opts...))
	return b
}

// Registry returns the registry being built
func (b *RegistryBuilder) Registry() *inject.Registry {
	return b.registry
}

// Build builds the injector and closes it when the test ends.
func (b *RegistryBuilder) Build() (inject.Injector, error) {
	injector, err := b.registry.BuildWithOptions(b.options)
	if err != nil {
		return nil, err
	}

	b.t.Cleanup(func() {
		if !injector.IsDisposed() {
			require.NoError(b.t, injector.Close())
		}
	})

	return injector, nil
}

// MustBuild builds the injector and fails the test if there's an error
func (b *RegistryBuilder) MustBuild() inject.Injector {
	injector, err := b.Build()
	require.NoError(b.t, err, "failed to build injector")
	return injector
}

// InjectorWithBasicServices returns an injector with a singleton logger, a
// singleton database and a scoped repository.
func InjectorWithBasicServices(t testing.TB) inject.Injector {
	return NewRegistryBuilder(t).
		WithSingleton(reflect.TypeFor[TestLogger](), NewTestLogger).
		WithSingleton(reflect.TypeFor[TestDatabase](), NewTestDatabase).
		WithScoped(reflect.TypeFor[*TestRepository](), NewTestRepository).
		MustBuild()
}

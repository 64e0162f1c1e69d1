package inject_test

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
	"github.com/junioryono/inject/internal/testutil"
)

var serviceType = reflect.TypeFor[*testutil.TestService]()

func TestResolve_Lifetimes(t *testing.T) {
	t.Run("singleton returns the same instance", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(serviceType, testutil.NewTestService).
			MustBuild()

		first := testutil.AssertResolvable[*testutil.TestService](t, injector)
		second := testutil.AssertResolvable[*testutil.TestService](t, injector)
		assert.Same(t, first, second)
	})

	t.Run("transient returns distinct instances", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).
			WithTransient(serviceType, testutil.NewTestService).
			MustBuild()

		first := testutil.AssertResolvable[*testutil.TestService](t, injector)
		second := testutil.AssertResolvable[*testutil.TestService](t, injector)
		assert.NotSame(t, first, second)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("instance is returned as registered", func(t *testing.T) {
		t.Parallel()

		instance := testutil.NewTestService()
		injector := testutil.NewRegistryBuilder(t).WithInstance(serviceType, instance).MustBuild()

		resolved := testutil.AssertResolvable[*testutil.TestService](t, injector)
		assert.Same(t, instance, resolved)
	})

	t.Run("dependencies are injected", func(t *testing.T) {
		t.Parallel()

		injector := testutil.InjectorWithBasicServices(t)

		scope, err := injector.CreateScope(t.Context())
		require.NoError(t, err)
		t.Cleanup(func() { scope.Close() })

		repo := testutil.AssertResolvable[*testutil.TestRepository](t, scope)
		logger := testutil.AssertResolvable[testutil.TestLogger](t, injector)
		assert.Same(t, logger, repo.Logger)
		assert.Equal(t, "testdb: SELECT 1", repo.Database.Query("SELECT 1"))
	})
}

func TestResolve_ConcurrentSingleton(t *testing.T) {
	t.Parallel()

	counter := &testutil.CountingConstructor{}
	create := counter.NewService()

	injector := testutil.NewRegistryBuilder(t).
		WithSingleton(serviceType, func() *testutil.TestService {
			time.Sleep(10 * time.Millisecond)
			return create()
		}).
		MustBuild()

	const goroutines = 64

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*testutil.TestService, goroutines)
	errs := make([]error, goroutines)

	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = inject.Resolve[*testutil.TestService](injector)
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, counter.Calls())
	for i := range goroutines {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

type pipelineStage struct {
	next *pipelineSink
}

type pipelineSink struct{}

func TestResolve_ConcurrentPathsAreIndependent(t *testing.T) {
	t.Parallel()

	injector := testutil.NewRegistryBuilder(t).
		WithTransient(reflect.TypeFor[*pipelineStage](), func(next *pipelineSink) *pipelineStage {
			return &pipelineStage{next: next}
		}).
		WithTransient(reflect.TypeFor[*pipelineSink](), func() *pipelineSink {
			time.Sleep(time.Millisecond)
			return &pipelineSink{}
		}).
		MustBuild()

	var failures atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inject.Resolve[*pipelineStage](injector); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
}

func TestResolve_Factory(t *testing.T) {
	t.Run("factory receives a resolver", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		require.NoError(t, inject.AddSingleton[testutil.TestLogger](registry, testutil.NewTestLogger))
		require.NoError(t, inject.AddFactory(registry, func(r inject.Resolver) (*testutil.TestRepository, error) {
			logger, err := inject.Resolve[testutil.TestLogger](r)
			if err != nil {
				return nil, err
			}
			return testutil.NewTestRepository(logger, testutil.NewTestDatabase()), nil
		}, inject.WithLifetime(inject.Transient)))

		injector, err := registry.Build()
		require.NoError(t, err)
		t.Cleanup(func() { injector.Close() })

		repo := testutil.AssertResolvable[*testutil.TestRepository](t, injector)
		assert.NotNil(t, repo.Logger)
	})

	t.Run("factory error is wrapped", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		require.NoError(t, inject.AddFactory(registry, func(inject.Resolver) (testutil.TestDatabase, error) {
			return nil, testutil.ErrConstructor
		}))

		injector, err := registry.Build()
		require.NoError(t, err)
		t.Cleanup(func() { injector.Close() })

		_, err = inject.Resolve[testutil.TestDatabase](injector)
		var invocation *inject.ConstructorInvocationError
		require.True(t, errors.As(err, &invocation))
		assert.Equal(t, databaseType, invocation.Contract)
		assert.ErrorIs(t, err, testutil.ErrConstructor)
	})

	t.Run("factory result must implement the contract", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		require.NoError(t, registry.Add(databaseType, inject.Factory(func(inject.Resolver) (any, error) {
			return "not a database", nil
		})))

		injector, err := registry.Build()
		require.NoError(t, err)
		t.Cleanup(func() { injector.Close() })

		_, err = injector.Resolve(databaseType)
		var mismatch *inject.ContractMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, reflect.TypeFor[string](), mismatch.Actual)
	})

	t.Run("panics are recovered", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(serviceType, func() *testutil.TestService {
				panic("boom")
			}).
			MustBuild()

		_, err := inject.Resolve[*testutil.TestService](injector)
		var panicked *inject.ConstructorPanicError
		require.True(t, errors.As(err, &panicked))
		assert.Equal(t, "boom", panicked.Panic)
		assert.NotEmpty(t, panicked.Stack)
	})

	t.Run("failed singleton production is retried", func(t *testing.T) {
		t.Parallel()

		var attempts atomic.Int32
		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(serviceType, func() (*testutil.TestService, error) {
				if attempts.Add(1) == 1 {
					return nil, testutil.ErrConstructor
				}
				return testutil.NewTestService(), nil
			}).
			MustBuild()

		_, err := inject.Resolve[*testutil.TestService](injector)
		assert.ErrorIs(t, err, testutil.ErrConstructor)

		first := testutil.AssertResolvable[*testutil.TestService](t, injector)
		second := testutil.AssertResolvable[*testutil.TestService](t, injector)
		assert.Same(t, first, second)
		assert.Equal(t, int32(2), attempts.Load())
	})
}

func TestResolve_Many(t *testing.T) {
	t.Run("singular registration yields one element", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(loggerType, testutil.NewTestLogger).
			MustBuild()

		loggers, err := inject.ResolveMany[testutil.TestLogger](injector)
		require.NoError(t, err)
		assert.Len(t, loggers, 1)
	})

	t.Run("unknown contract yields an empty slice", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).MustBuild()

		loggers, err := inject.ResolveMany[testutil.TestLogger](injector)
		require.NoError(t, err)
		assert.NotNil(t, loggers)
		assert.Empty(t, loggers)
	})

	t.Run("priority ordering", func(t *testing.T) {
		t.Parallel()

		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(pluginType, testutil.NewNamedPlugin("low"), inject.AllowMultiple(), inject.WithPriority(10)).
			WithSingleton(pluginType, testutil.NewNamedPlugin("unset"), inject.AllowMultiple()).
			WithSingleton(pluginType, testutil.NewNamedPlugin("high"), inject.AllowMultiple(), inject.WithPriority(-5)).
			WithSingleton(pluginType, testutil.NewNamedPlugin("processing"), inject.AllowMultiple(),
				inject.WithMetadata(inject.ProcessingPriorityKey, -1)).
			MustBuild()

		names := func(plugins []testutil.TestPlugin) []string {
			result := make([]string, len(plugins))
			for i, p := range plugins {
				result[i] = p.Name()
			}
			return result
		}

		plugins, err := inject.ResolveMany[testutil.TestPlugin](injector)
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "unset", "high", "processing"}, names(plugins))

		plugins, err = inject.ResolveMany[testutil.TestPlugin](injector, inject.OrderByPriority())
		require.NoError(t, err)
		assert.Equal(t, []string{"high", "processing", "unset", "low"}, names(plugins))
	})

	t.Run("collection parameter", func(t *testing.T) {
		t.Parallel()

		type pluginHost struct {
			plugins []testutil.TestPlugin
		}

		injector := testutil.NewRegistryBuilder(t).
			WithSingleton(pluginType, testutil.NewNamedPlugin("a"), inject.AllowMultiple()).
			WithSingleton(pluginType, testutil.NewNamedPlugin("b"), inject.AllowMultiple()).
			WithTransient(reflect.TypeFor[*pluginHost](), func(plugins []testutil.TestPlugin) *pluginHost {
				return &pluginHost{plugins: plugins}
			}).
			MustBuild()

		host := testutil.AssertResolvable[*pluginHost](t, injector)
		require.Len(t, host.plugins, 2)
		assert.Equal(t, "a", host.plugins[0].Name())
		assert.Equal(t, "b", host.plugins[1].Name())
	})
}

func TestResolve_TypedHelpers(t *testing.T) {
	t.Parallel()

	injector := testutil.NewRegistryBuilder(t).
		WithSingleton(loggerType, testutil.NewTestLogger).
		MustBuild()

	assert.NotPanics(t, func() {
		inject.MustResolve[testutil.TestLogger](injector)
	})
	assert.Panics(t, func() {
		inject.MustResolve[testutil.TestDatabase](injector)
	})

	logger, found, err := inject.TryResolve[testutil.TestLogger](injector)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, logger)

	_, err = inject.Resolve[testutil.TestLogger](nil)
	assert.ErrorIs(t, err, inject.ErrInjectorNil)

	_, err = injector.Resolve(nil)
	assert.ErrorIs(t, err, inject.ErrContractNil)
}

type recordingObserver struct {
	mu        sync.Mutex
	resolved  []reflect.Type
	activated []*inject.Descriptor
	failed    []error
}

func (o *recordingObserver) OnResolved(contract reflect.Type, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolved = append(o.resolved, contract)
}

func (o *recordingObserver) OnActivated(d *inject.Descriptor, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activated = append(o.activated, d)
}

func (o *recordingObserver) OnError(_ reflect.Type, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func TestResolve_Observer(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	injector := testutil.NewRegistryBuilder(t).
		WithSingleton(loggerType, testutil.NewTestLogger).
		WithOptions(&inject.Options{Observer: obs}).
		MustBuild()

	testutil.AssertResolvable[testutil.TestLogger](t, injector)
	testutil.AssertResolvable[testutil.TestLogger](t, injector)
	testutil.AssertNotFound[testutil.TestDatabase](t, injector)

	obs.mu.Lock()
	defer obs.mu.Unlock()

	assert.Equal(t, []reflect.Type{loggerType, loggerType}, obs.resolved)
	require.Len(t, obs.activated, 1)
	assert.Equal(t, loggerType, obs.activated[0].Contract())
	require.Len(t, obs.failed, 1)
	assert.ErrorIs(t, obs.failed[0], inject.ErrServiceNotFound)
}

func TestResolveDescriptor(t *testing.T) {
	t.Parallel()

	registry := inject.NewRegistry()
	require.NoError(t, registry.Add(pluginType, inject.Implementation(testutil.NewNamedPlugin("a")), inject.AllowMultiple()))
	require.NoError(t, registry.Add(pluginType, inject.Implementation(testutil.NewNamedPlugin("b")), inject.AllowMultiple()))

	injector, err := registry.Build()
	require.NoError(t, err)
	t.Cleanup(func() { injector.Close() })

	descriptors, ok := registry.TryGetMany(pluginType)
	require.True(t, ok)

	v, err := injector.ResolveDescriptor(descriptors[0])
	require.NoError(t, err)
	assert.Equal(t, "a", v.(testutil.TestPlugin).Name())

	again, err := injector.ResolveDescriptor(descriptors[0])
	require.NoError(t, err)
	assert.Same(t, v, again)

	foreign, err := inject.NewDescriptor(pluginType, inject.Instance(&testutil.NamedPlugin{}))
	require.NoError(t, err)
	_, err = injector.ResolveDescriptor(foreign)
	assert.ErrorIs(t, err, inject.ErrDescriptorForeign)

	_, err = injector.ResolveDescriptor(nil)
	assert.ErrorIs(t, err, inject.ErrDescriptorNil)
}

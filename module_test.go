package inject_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
	"github.com/junioryono/inject/internal/testutil"
)

func TestNewModule(t *testing.T) {
	t.Run("registers services", func(t *testing.T) {
		t.Parallel()

		module := inject.NewModule("test-module",
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
			inject.ProvideScoped[*testutil.TestService](testutil.NewTestService),
		)

		registry := inject.NewRegistry()
		require.NoError(t, registry.AddModules(module))
		assert.Equal(t, 2, registry.Len())

		d, ok := registry.TryGet(serviceType)
		require.True(t, ok)
		assert.Equal(t, inject.Scoped, d.Lifetime())
	})

	t.Run("empty module", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		require.NoError(t, registry.AddModules(inject.NewModule("empty-module")))
		assert.Zero(t, registry.Len())
	})

	t.Run("nil builders are skipped", func(t *testing.T) {
		t.Parallel()

		module := inject.NewModule("module-with-nils",
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
			nil,
			inject.ProvideTransient[*testutil.TestService](testutil.NewTestService),
		)

		registry := inject.NewRegistry()
		require.NoError(t, registry.AddModules(module, nil))
		assert.Equal(t, 2, registry.Len())
	})
}

func TestModule_Composition(t *testing.T) {
	t.Parallel()

	loggingModule := inject.NewModule("logging",
		inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
	)

	dataModule := inject.NewModule("data",
		inject.ProvideValue[testutil.TestDatabase](testutil.NewTestDatabase()),
		inject.ProvideScoped[*testutil.TestRepository](testutil.NewTestRepository),
	)

	pluginModule := inject.NewModule("plugins",
		inject.ProvideTransient[testutil.TestPlugin](testutil.NewNamedPlugin("audit"), inject.AllowMultiple()),
		inject.ProvideStrategy(pluginType, inject.Instance(&testutil.NamedPlugin{PluginName: "metrics"}), inject.AllowMultiple()),
	)

	appModule := inject.NewModule("app", loggingModule, dataModule, pluginModule)

	registry := inject.NewRegistry()
	require.NoError(t, registry.AddModules(appModule))

	assert.Equal(t, []reflect.Type{
		loggerType,
		databaseType,
		reflect.TypeFor[*testutil.TestRepository](),
		pluginType,
	}, registry.Contracts())

	injector, err := registry.Build()
	require.NoError(t, err)
	defer injector.Close()

	scope, err := injector.CreateScope(t.Context())
	require.NoError(t, err)
	defer scope.Close()

	repo := testutil.AssertResolvable[*testutil.TestRepository](t, scope)
	assert.NotNil(t, repo.Database)

	plugins, err := inject.ResolveMany[testutil.TestPlugin](scope)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "audit", plugins[0].Name())
	assert.Equal(t, "metrics", plugins[1].Name())
}

func TestModule_ErrorHandling(t *testing.T) {
	t.Run("names the failing module", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("module error")
		reached := false

		module := inject.NewModule("error-module",
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
			func(*inject.Registry) error {
				return expectedErr
			},
			func(*inject.Registry) error {
				reached = true
				return nil
			},
		)

		registry := inject.NewRegistry()
		err := registry.AddModules(module)

		var moduleErr *inject.ModuleError
		require.True(t, errors.As(err, &moduleErr))
		assert.Equal(t, "error-module", moduleErr.Module)
		assert.ErrorIs(t, err, expectedErr)
		assert.False(t, reached)
		assert.Equal(t, 1, registry.Len())
	})

	t.Run("nested failures wrap each level", func(t *testing.T) {
		t.Parallel()

		inner := inject.NewModule("inner",
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestDatabase),
		)

		err := inject.NewRegistry().AddModules(inject.NewModule("outer", inner))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `module "outer": module "inner"`)

		var mismatch *inject.ContractMismatchError
		assert.True(t, errors.As(err, &mismatch))
	})

	t.Run("later modules are not applied", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		err := registry.AddModules(
			inject.NewModule("broken", inject.ProvideSource(inject.Source{Name: "incomplete"})),
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
		)

		assert.ErrorIs(t, err, inject.ErrSourceIncomplete)
		assert.Zero(t, registry.Len())
	})

	t.Run("sealed registries", func(t *testing.T) {
		t.Parallel()

		registry := inject.NewRegistry()
		injector, err := registry.Build()
		require.NoError(t, err)
		defer injector.Close()

		err = registry.AddModules(inject.NewModule("late",
			inject.ProvideSingleton[testutil.TestLogger](testutil.NewTestLogger),
		))
		assert.ErrorIs(t, err, inject.ErrRegistrySealed)
	})
}

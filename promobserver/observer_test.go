package promobserver_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
	"github.com/junioryono/inject/promobserver"
)

type (
	clock   struct{}
	handler struct{ clock *clock }
	missing struct{}
)

func newObserved(t *testing.T) (*promobserver.Observer, inject.Injector) {
	t.Helper()

	observer, err := promobserver.New(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	registry := inject.NewRegistry()
	require.NoError(t, inject.AddSingleton[*clock](registry, func() *clock { return &clock{} }))
	require.NoError(t, inject.AddTransient[*handler](registry, func(c *clock) *handler { return &handler{clock: c} }))

	injector, err := registry.BuildWithOptions(&inject.Options{Observer: observer})
	require.NoError(t, err)
	t.Cleanup(func() { injector.Close() })

	return observer, injector
}

func TestObserver(t *testing.T) {
	t.Run("counts resolutions and activations", func(t *testing.T) {
		observer, injector := newObserved(t)

		for range 3 {
			_, err := inject.Resolve[*handler](injector)
			require.NoError(t, err)
		}

		handlerName := reflect.TypeFor[*handler]().String()
		clockName := reflect.TypeFor[*clock]().String()

		assert.Equal(t, 3.0, testutil.ToFloat64(observer.Resolutions.WithLabelValues(handlerName)))
		assert.Equal(t, 3.0, testutil.ToFloat64(observer.Activations.WithLabelValues(handlerName, "Transient")))
		assert.Equal(t, 1.0, testutil.ToFloat64(observer.Activations.WithLabelValues(clockName, "Singleton")))
		assert.Equal(t, 0, testutil.CollectAndCount(observer.Errors))
		assert.Equal(t, 1, testutil.CollectAndCount(observer.ResolveDuration))
	})

	t.Run("counts errors by kind", func(t *testing.T) {
		observer, injector := newObserved(t)

		_, err := inject.Resolve[*missing](injector)
		require.Error(t, err)

		name := reflect.TypeFor[*missing]().String()
		assert.Equal(t, 1.0, testutil.ToFloat64(observer.Errors.WithLabelValues(name, "not_found")))
		assert.Equal(t, 0, testutil.CollectAndCount(observer.Resolutions))
	})

	t.Run("duplicate registration", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		_, err := promobserver.New(reg, "dup")
		require.NoError(t, err)

		_, err = promobserver.New(reg, "dup")
		var already prometheus.AlreadyRegisteredError
		assert.True(t, errors.As(err, &already))
	})
}

func TestErrorKind(t *testing.T) {
	contract := reflect.TypeFor[*clock]()

	tests := []struct {
		err      error
		expected string
	}{
		{&inject.CircularDependencyError{Contract: contract}, "circular_dependency"},
		{&inject.AmbiguousConstructorError{Implementation: contract}, "ambiguous_constructor"},
		{&inject.MissingResolvableConstructorError{Implementation: contract}, "missing_constructor"},
		{&inject.ConstructorPanicError{Contract: contract, Panic: "boom"}, "panic"},
		{&inject.ContractMismatchError{Contract: contract}, "contract_mismatch"},
		{&inject.ServiceNotFoundError{Contract: contract}, "not_found"},
		{&inject.ConstructorInvocationError{Contract: contract, Cause: errors.New("boom")}, "constructor_error"},
		{fmt.Errorf("resolve: %w", inject.ErrScopeDisposed), "disposed"},
		{inject.ErrInjectorDisposed, "disposed"},
		{context.Canceled, "other"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.expected, promobserver.ErrorKind(tt.err))
		})
	}

	t.Run("missing services inside constructors are not found errors", func(t *testing.T) {
		err := &inject.ConstructorInvocationError{
			Contract: contract,
			Cause:    &inject.ServiceNotFoundError{Contract: reflect.TypeFor[*missing]()},
		}
		assert.Equal(t, "not_found", promobserver.ErrorKind(err))
	})
}

package testutil

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/inject"
)

// AssertResolvable checks that T resolves to a non-nil value
func AssertResolvable[T any](t testing.TB, r inject.Resolver) T {
	t.Helper()
	service, err := inject.Resolve[T](r)
	require.NoError(t, err, "failed to resolve %v", reflect.TypeFor[T]())
	require.NotNil(t, service, "resolved service is nil")
	return service
}

// AssertNotFound checks that resolving T fails with ServiceNotFoundError
func AssertNotFound[T any](t testing.TB, r inject.Resolver) {
	t.Helper()
	_, err := inject.Resolve[T](r)
	require.Error(t, err)

	var notFound *inject.ServiceNotFoundError
	require.True(t, errors.As(err, &notFound), "expected service not found error, got: %v", err)
	assert.Equal(t, reflect.TypeFor[T](), notFound.Contract)
}

// AssertCircular checks that err is a CircularDependencyError for contract
func AssertCircular(t testing.TB, err error, contract reflect.Type) *inject.CircularDependencyError {
	t.Helper()
	require.Error(t, err)

	var circular *inject.CircularDependencyError
	require.True(t, errors.As(err, &circular), "expected circular dependency error, got: %v", err)
	assert.Equal(t, contract, circular.Contract)
	return circular
}

// AssertInjectorDisposed checks that operations on a closed injector fail
func AssertInjectorDisposed(t testing.TB, injector inject.Injector) {
	t.Helper()
	assert.True(t, injector.IsDisposed())

	want := inject.ErrScopeDisposed
	if injector.IsRoot() {
		want = inject.ErrInjectorDisposed
	}

	_, err := injector.Resolve(reflect.TypeFor[TestLogger]())
	assert.ErrorIs(t, err, want)

	_, err = injector.ResolveMany(reflect.TypeFor[TestLogger]())
	assert.ErrorIs(t, err, want)

	_, err = injector.CreateScope(t.Context())
	assert.ErrorIs(t, err, want)
}

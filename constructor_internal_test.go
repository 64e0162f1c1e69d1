package inject

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type selectionTarget struct{}

func candidateOf(params ...reflect.Type) *constructorCandidate {
	return &constructorCandidate{
		params:         params,
		implementation: reflect.TypeFor[*selectionTarget](),
	}
}

func resolvable(types ...reflect.Type) func(reflect.Type) bool {
	set := make(map[reflect.Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(t reflect.Type) bool { return set[t] }
}

func TestSelectConstructor(t *testing.T) {
	var (
		intType    = reflect.TypeFor[int]()
		stringType = reflect.TypeFor[string]()
		boolType   = reflect.TypeFor[bool]()
		target     = reflect.TypeFor[*selectionTarget]()
	)

	t.Run("stops at the first shorter candidate once matched", func(t *testing.T) {
		long := candidateOf(intType, stringType)
		short := candidateOf(intType)

		selected, err := selectConstructor(target, []*constructorCandidate{short, long}, resolvable(intType, stringType))
		require.NoError(t, err)
		assert.Same(t, long, selected)
	})

	t.Run("skips ineligible longer candidates", func(t *testing.T) {
		long := candidateOf(intType, boolType)
		short := candidateOf(stringType)

		selected, err := selectConstructor(target, []*constructorCandidate{long, short}, resolvable(intType, stringType))
		require.NoError(t, err)
		assert.Same(t, short, selected)
	})

	t.Run("reports ties among eligible candidates", func(t *testing.T) {
		first := candidateOf(intType)
		second := candidateOf(stringType)
		ineligible := candidateOf(boolType)

		_, err := selectConstructor(target, []*constructorCandidate{ineligible, first, second}, resolvable(intType, stringType))
		var ambiguous *AmbiguousConstructorError
		require.True(t, errors.As(err, &ambiguous))
		assert.Equal(t, []reflect.Type{intType}, ambiguous.First)
		assert.Equal(t, []reflect.Type{stringType}, ambiguous.Second)
	})

	t.Run("keeps declaration order for equal arity", func(t *testing.T) {
		first := candidateOf(intType)
		second := candidateOf(stringType)

		selected, err := selectConstructor(target, []*constructorCandidate{first, second}, resolvable(intType))
		require.NoError(t, err)
		assert.Same(t, first, selected)
	})

	t.Run("defaults make a parameter eligible", func(t *testing.T) {
		c := candidateOf(intType, boolType)
		c.defaults = map[int]reflect.Value{1: reflect.ValueOf(true)}

		selected, err := selectConstructor(target, []*constructorCandidate{c}, resolvable(intType))
		require.NoError(t, err)
		assert.Same(t, c, selected)
	})

	t.Run("no eligible candidate", func(t *testing.T) {
		_, err := selectConstructor(target, []*constructorCandidate{candidateOf(boolType)}, resolvable())
		var missing *MissingResolvableConstructorError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, [][]reflect.Type{{boolType}}, missing.Candidates)
	})

	t.Run("parameterless constructor is always eligible", func(t *testing.T) {
		empty := candidateOf()

		selected, err := selectConstructor(target, []*constructorCandidate{candidateOf(boolType), empty}, resolvable())
		require.NoError(t, err)
		assert.Same(t, empty, selected)
	})
}

func TestResolutionPath(t *testing.T) {
	a := &Descriptor{contract: reflect.TypeFor[int]()}
	b := &Descriptor{contract: reflect.TypeFor[string]()}

	var root *resolution
	require.NoError(t, root.checkCircular(a))

	nodeA := root.enter(a)
	nodeB := nodeA.enter(b)

	err := nodeB.checkCircular(a)
	var circular *CircularDependencyError
	require.True(t, errors.As(err, &circular))
	assert.Equal(t, a.contract, circular.Contract)
	assert.Equal(t, []reflect.Type{a.contract, b.contract}, circular.Path)

	nodeB.leave()
	nodeA.leave()
	assert.NoError(t, nodeB.checkCircular(a), "finished productions are not cycles")
}

func TestLazyValue(t *testing.T) {
	var holder lazyValue

	_, ok := holder.peek()
	assert.False(t, ok)

	_, err := holder.get(func() (any, error) { return nil, errors.New("failed") })
	require.Error(t, err)

	_, ok = holder.peek()
	assert.False(t, ok, "failures are not cached")

	calls := 0
	produce := func() (any, error) {
		calls++
		return calls, nil
	}

	v, err := holder.get(produce)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = holder.get(produce)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)
}

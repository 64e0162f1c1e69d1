package inject

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/junioryono/inject/internal/reflection"
)

// constructorCandidate is one way of activating an implementation type.
type constructorCandidate struct {
	fn             reflect.Value
	params         []reflect.Type
	defaults       map[int]reflect.Value
	returnsError   bool
	implementation reflect.Type

	// zeroValue activates the implementation by allocating its zero value
	zeroValue bool
}

func newConstructorCandidate(c Constructor, info *reflection.ConstructorInfo) (*constructorCandidate, error) {
	candidate := &constructorCandidate{
		fn:             reflect.ValueOf(c.Func),
		params:         info.ParameterTypes(),
		returnsError:   info.HasErrorReturn,
		implementation: info.Result,
	}

	if len(c.Defaults) == 0 {
		return candidate, nil
	}

	candidate.defaults = make(map[int]reflect.Value, len(c.Defaults))
	for index, value := range c.Defaults {
		if index < 0 || index >= len(candidate.params) {
			return nil, fmt.Errorf("default for parameter %d is out of range (%d parameters)", index, len(candidate.params))
		}

		paramType := candidate.params[index]
		if value == nil {
			candidate.defaults[index] = reflect.Zero(paramType)
			continue
		}

		v := reflect.ValueOf(value)
		if !v.Type().AssignableTo(paramType) {
			return nil, fmt.Errorf("default %v for parameter %d is not assignable to %s", value, index, formatType(paramType))
		}
		candidate.defaults[index] = v
	}

	return candidate, nil
}

func zeroValueCandidate(implementation reflect.Type) (*constructorCandidate, error) {
	switch {
	case implementation.Kind() == reflect.Struct:
	case implementation.Kind() == reflect.Pointer && implementation.Elem().Kind() == reflect.Struct:
	default:
		return nil, fmt.Errorf("%s has no constructors and is not a struct type", formatType(implementation))
	}

	return &constructorCandidate{implementation: implementation, zeroValue: true}, nil
}

func (c *constructorCandidate) hasDefault(index int) bool {
	_, ok := c.defaults[index]
	return ok
}

// eligible reports whether every parameter has a default or is resolvable.
func (c *constructorCandidate) eligible(canResolve func(reflect.Type) bool) bool {
	for i, p := range c.params {
		if !c.hasDefault(i) && !canResolve(p) {
			return false
		}
	}
	return true
}

// selectConstructor picks the constructor with the most resolvable
// parameters. Candidates are walked by descending arity (stable on
// declaration order); the walk stops at the first strictly shorter
// candidate once a match is found, and a second eligible candidate of the
// same arity is an AmbiguousConstructorError.
func selectConstructor(implementation reflect.Type, candidates []*constructorCandidate, canResolve func(reflect.Type) bool) (*constructorCandidate, error) {
	sorted := make([]*constructorCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].params) > len(sorted[j].params)
	})

	maxLength := -1
	var maxCtor *constructorCandidate

	for _, candidate := range sorted {
		length := len(candidate.params)
		if maxCtor != nil && length < maxLength {
			break
		}

		if !candidate.eligible(canResolve) {
			continue
		}

		if maxCtor != nil {
			return nil, &AmbiguousConstructorError{
				Implementation: implementation,
				First:          maxCtor.params,
				Second:         candidate.params,
			}
		}

		maxLength = length
		maxCtor = candidate
	}

	if maxCtor == nil {
		params := make([][]reflect.Type, len(sorted))
		for i, c := range sorted {
			params[i] = c.params
		}
		return nil, &MissingResolvableConstructorError{
			Implementation: implementation,
			Candidates:     params,
		}
	}

	return maxCtor, nil
}

// parameterResolver resolves one constructor parameter. optional is true
// when the parameter has a default; found=false then selects the default.
type parameterResolver func(t reflect.Type, optional bool) (value any, found bool, err error)

// invoke calls the constructor, resolving each parameter through resolve.
func (c *constructorCandidate) invoke(contract reflect.Type, resolve parameterResolver) (any, error) {
	if c.zeroValue {
		if c.implementation.Kind() == reflect.Pointer {
			return reflect.New(c.implementation.Elem()).Interface(), nil
		}
		return reflect.New(c.implementation).Elem().Interface(), nil
	}

	args := make([]reflect.Value, len(c.params))
	for i, paramType := range c.params {
		optional := c.hasDefault(i)

		value, found, err := resolve(paramType, optional)
		if err != nil {
			return nil, err
		}

		if !found {
			args[i] = c.defaults[i]
			continue
		}

		arg, err := toArgument(value, paramType)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	out := c.fn.Call(args)

	if c.returnsError && !out[1].IsNil() {
		return nil, &ConstructorInvocationError{
			Contract:    contract,
			Constructor: c.fn.Type(),
			Cause:       out[1].Interface().(error),
		}
	}

	return out[0].Interface(), nil
}

// toArgument converts a resolved value into a call argument of type t.
func toArgument(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &TypeMismatchError{
			Expected: t,
			Actual:   v.Type(),
			Context:  "constructor parameter",
		}
	}
	return v, nil
}

// constructorFor selects the constructor of d against the registrations of
// r. The choice is memoized once r is sealed, as it can no longer change.
func (d *Descriptor) constructorFor(r *Registry) (*constructorCandidate, error) {
	if !r.IsSealed() {
		return selectConstructor(d.implementation, d.candidates, r.IsRegistered)
	}

	d.selectOnce.Do(func() {
		d.selected, d.selectErr = selectConstructor(d.implementation, d.candidates, r.IsRegistered)
	})
	return d.selected, d.selectErr
}

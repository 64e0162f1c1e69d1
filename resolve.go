package inject

import (
	"fmt"
	"reflect"
	"sort"
)

// Resolve resolves a service of type T.
//
// Example:
//
//	logger, err := inject.Resolve[Logger](injector)
//	if err != nil {
//	    return err
//	}
func Resolve[T any](r Resolver) (T, error) {
	var zero T

	if r == nil {
		return zero, ErrInjectorNil
	}

	service, err := r.Resolve(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}

	return castTo[T](service, "type assertion")
}

// MustResolve resolves a service of type T and panics on failure.
// Use it where a missing service is a programming error, such as in main.
func MustResolve[T any](r Resolver) T {
	service, err := Resolve[T](r)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", formatType(reflect.TypeFor[T]()), err))
	}
	return service
}

// TryResolve resolves a service of type T, reporting found=false instead of
// an error when T is not registered.
func TryResolve[T any](r Resolver) (T, bool, error) {
	var zero T

	if r == nil {
		return zero, false, ErrInjectorNil
	}

	service, found, err := r.TryResolve(reflect.TypeFor[T]())
	if err != nil || !found {
		return zero, found, err
	}

	result, err := castTo[T](service, "type assertion")
	if err != nil {
		return zero, true, err
	}
	return result, true, nil
}

// ResolveMany resolves every registration of T in registration order.
func ResolveMany[T any](r Resolver, opts ...ResolveManyOption) ([]T, error) {
	if r == nil {
		return nil, ErrInjectorNil
	}

	services, err := r.ResolveMany(reflect.TypeFor[T](), opts...)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(services))
	for _, service := range services {
		typed, err := castTo[T](service, "collection element")
		if err != nil {
			return nil, err
		}
		result = append(result, typed)
	}

	return result, nil
}

// ResolveManyOption modifies ResolveMany.
type ResolveManyOption interface {
	applyResolveManyOption(*resolveManyOptions)
}

type resolveManyOptions struct {
	byPriority bool
}

// OrderByPriority sorts the registrations by their OverridePriority, then
// ProcessingPriority metadata, lower values first. Registrations with equal
// priorities keep registration order.
func OrderByPriority() ResolveManyOption {
	return orderByPriorityOption{}
}

type orderByPriorityOption struct{}

func (orderByPriorityOption) String() string {
	return "OrderByPriority()"
}

func (orderByPriorityOption) applyResolveManyOption(opts *resolveManyOptions) {
	opts.byPriority = true
}

func sortByPriority(r *Registry, descriptors []*Descriptor) {
	type ranked struct {
		override   int
		processing int
	}

	ranks := make(map[*Descriptor]ranked, len(descriptors))
	for _, d := range descriptors {
		m := r.MetadataOf(d)
		ranks[d] = ranked{override: m.OverridePriority(), processing: m.ProcessingPriority()}
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		a, b := ranks[descriptors[i]], ranks[descriptors[j]]
		if a.override != b.override {
			return a.override < b.override
		}
		return a.processing < b.processing
	})
}

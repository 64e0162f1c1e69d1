package inject

import (
	"fmt"
	"reflect"

	"github.com/junioryono/inject/internal/reflection"
)

// Source synthesizes registrations for contracts that are not registered
// explicitly, such as closed instantiations of generic types or wrapper
// contracts. Sources are consulted in registration order and the first
// whose Matches returns true resolves the contract. Results are cached per
// contract for the lifetime of the registry.
//
// Resolve returns either a single non-multiple descriptor or any number of
// AllowMultiple descriptors, all for exactly the requested contract.
type Source struct {
	Name    string
	Matches func(r *Registry, contract reflect.Type) bool
	Resolve func(r *Registry, contract reflect.Type) ([]*Descriptor, error)
}

func builtinSources() []Source {
	return []Source{
		collectionSource(),
		lazySource(),
		exportFactorySource(),
	}
}

// collectionSource resolves []E, for a registered E, to every instance of E
// in registration order.
func collectionSource() Source {
	return Source{
		Name: "collection",
		Matches: func(r *Registry, contract reflect.Type) bool {
			return contract.Kind() == reflect.Slice && r.IsRegistered(contract.Elem())
		},
		Resolve: func(r *Registry, contract reflect.Type) ([]*Descriptor, error) {
			elem := contract.Elem()

			d, err := r.newDescriptor(contract, Factory(func(res Resolver) (any, error) {
				values, err := res.ResolveMany(elem)
				if err != nil {
					return nil, err
				}

				slice := reflect.MakeSlice(contract, 0, len(values))
				for _, v := range values {
					item, err := toArgument(v, elem)
					if err != nil {
						return nil, err
					}
					slice = reflect.Append(slice, item)
				}
				return slice.Interface(), nil
			}), WithLifetime(Transient))
			if err != nil {
				return nil, err
			}

			return []*Descriptor{d}, nil
		},
	}
}

// lazySource resolves *Lazy[T], for a registered T, to a Lazy bound to the
// resolving scope and call path.
func lazySource() Source {
	return Source{
		Name: "lazy",
		Matches: func(r *Registry, contract reflect.Type) bool {
			if !contract.Implements(lazyBinderType) {
				return false
			}
			inner, _ := wrappedContract(contract)
			return r.IsRegistered(inner)
		},
		Resolve: func(r *Registry, contract reflect.Type) ([]*Descriptor, error) {
			inner, _ := wrappedContract(contract)

			d, err := r.newDescriptor(contract, Factory(func(res Resolver) (any, error) {
				bound, err := asBound(res)
				if err != nil {
					return nil, err
				}

				wrapper := reflect.New(contract.Elem()).Interface().(lazyBinder)
				wrapper.bindLazy(func() (any, error) {
					return bound.scope.resolve(inner, bound.chain)
				})
				return wrapper, nil
			}), WithLifetime(Transient))
			if err != nil {
				return nil, err
			}

			return []*Descriptor{d}, nil
		},
	}
}

// exportFactorySource resolves *ExportFactory[T], for a registered T, to
// one factory per registration of T. A multiple registration of T yields a
// multiple registration of the factory.
func exportFactorySource() Source {
	return Source{
		Name: "export-factory",
		Matches: func(r *Registry, contract reflect.Type) bool {
			if !contract.Implements(exportBinderType) {
				return false
			}
			inner, _ := wrappedContract(contract)
			return r.IsRegistered(inner)
		},
		Resolve: func(r *Registry, contract reflect.Type) ([]*Descriptor, error) {
			inner, _ := wrappedContract(contract)

			e, ok, err := r.lookup(inner)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &ServiceNotFoundError{Contract: inner}
			}

			var opts []DescriptorOption
			if e.multi != nil {
				opts = append(opts, AllowMultiple())
			}
			opts = append(opts, WithLifetime(Transient))

			underlying := e.all()
			descriptors := make([]*Descriptor, 0, len(underlying))
			for _, u := range underlying {
				d, err := r.newDescriptor(contract, Factory(exportFactoryFor(r, contract, u)), opts...)
				if err != nil {
					return nil, err
				}
				descriptors = append(descriptors, d)
			}

			return descriptors, nil
		},
	}
}

func exportFactoryFor(r *Registry, contract reflect.Type, u *Descriptor) FactoryFunc {
	return func(res Resolver) (any, error) {
		bound, err := asBound(res)
		if err != nil {
			return nil, err
		}

		wrapper := reflect.New(contract.Elem()).Interface().(exportBinder)
		wrapper.bindExport(func() (any, error) {
			return bound.scope.produce(u, bound.chain)
		}, r.MetadataOf(u))
		return wrapper, nil
	}
}

// OpenGeneric returns a source for every closed instantiation of the
// generic type family of family, which may be any instantiation of it.
// Go cannot instantiate generic code at run time, so the constructors must
// be the instantiations to serve (for example NewRepo[int] and
// NewRepo[string]). A contract matches when one of them returns a type
// assignable to it; every constructor returning that same type becomes a
// candidate of the synthesized registration.
//
// Example:
//
//	registry.RegisterSource(inject.OpenGeneric(
//	    reflect.TypeFor[Repository[any]](), inject.Scoped,
//	    NewRepo[User], NewRepo[Order],
//	))
func OpenGeneric(family reflect.Type, lifetime Lifetime, constructors ...any) Source {
	name, _ := reflection.GenericFamily(family)

	return Source{
		Name: "open-generic " + name,
		Matches: func(_ *Registry, contract reflect.Type) bool {
			return len(openGenericConstructors(name, contract, constructors)) > 0
		},
		Resolve: func(r *Registry, contract reflect.Type) ([]*Descriptor, error) {
			matched := openGenericConstructors(name, contract, constructors)
			if len(matched) == 0 {
				return nil, fmt.Errorf("no constructor produces %s", formatType(contract))
			}

			d, err := r.newDescriptor(contract, Implementation(matched...), WithLifetime(lifetime))
			if err != nil {
				return nil, err
			}

			return []*Descriptor{d}, nil
		},
	}
}

// openGenericConstructors returns the constructors producing the first
// result type assignable to contract, when contract belongs to family.
func openGenericConstructors(family string, contract reflect.Type, constructors []any) []any {
	if family == "" {
		return nil
	}

	if got, ok := reflection.GenericFamily(contract); !ok || got != family {
		return nil
	}

	var result reflect.Type
	var matched []any
	for _, c := range constructors {
		out := constructorResult(c)
		if out == nil || !out.AssignableTo(contract) {
			continue
		}

		if result == nil {
			result = out
		}
		if out == result {
			matched = append(matched, c)
		}
	}

	return matched
}

// constructorResult returns the first result type of a constructor, or nil.
func constructorResult(c any) reflect.Type {
	var fn any
	switch v := c.(type) {
	case Constructor:
		fn = v.Func
	case *Constructor:
		if v == nil {
			return nil
		}
		fn = v.Func
	default:
		fn = c
	}

	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
		return nil
	}
	return t.Out(0)
}

package inject

import (
	"fmt"
	"reflect"
)

// StrategyKind identifies how a registration produces instances.
type StrategyKind int

const (
	NoStrategy StrategyKind = iota
	InstanceStrategy
	FactoryStrategy
	ImplementationStrategy
)

// String returns the name of the strategy kind.
func (k StrategyKind) String() string {
	switch k {
	case NoStrategy:
		return "None"
	case InstanceStrategy:
		return "Instance"
	case FactoryStrategy:
		return "Factory"
	case ImplementationStrategy:
		return "Implementation"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// FactoryFunc produces an instance. The Resolver it receives is bound to
// the resolution in progress, so cycles through factories are detected.
// Only that Resolver carries the resolution path: resolving through an
// Injector captured elsewhere starts a new path, and a cycle through it
// deadlocks on a singleton or scoped instance, or recurses without bound
// on transients. Use the Resolver passed in, or depend on *Lazy[T] to
// defer the dependency.
type FactoryFunc func(r Resolver) (any, error)

// Strategy is the instancing strategy of a registration: an existing
// instance, a factory, or an implementation type with its constructors.
// Exactly one is set; build values with Instance, Factory,
// Implementation or ImplementationType.
type Strategy struct {
	kind           StrategyKind
	instance       any
	factory        FactoryFunc
	implementation reflect.Type
	constructors   []Constructor
}

// Constructor is a constructor function together with the default values of
// its optional parameters. A parameter with a default is satisfied even when
// its type is not registered.
type Constructor struct {
	Func     any
	Defaults map[int]any
}

// ParamDefault declares the default value of one constructor parameter.
type ParamDefault struct {
	Index int
	Value any
}

// WithDefault declares that parameter index falls back to value when its
// type is not registered. A nil value means the zero value of the parameter.
func WithDefault(index int, value any) ParamDefault {
	return ParamDefault{Index: index, Value: value}
}

// Ctor builds a Constructor from a function and its parameter defaults.
//
// Example:
//
//	inject.Implementation(
//	    NewClient,
//	    inject.Ctor(NewClientWithTimeout, inject.WithDefault(1, 30*time.Second)),
//	)
func Ctor(fn any, defaults ...ParamDefault) Constructor {
	c := Constructor{Func: fn}
	if len(defaults) > 0 {
		c.Defaults = make(map[int]any, len(defaults))
		for _, d := range defaults {
			c.Defaults[d.Index] = d.Value
		}
	}
	return c
}

// Instance returns a strategy that always yields v itself.
func Instance(v any) Strategy {
	return Strategy{kind: InstanceStrategy, instance: v}
}

// Factory returns a strategy that calls fn to produce instances.
func Factory(fn FactoryFunc) Strategy {
	return Strategy{kind: FactoryStrategy, factory: fn}
}

// Implementation returns a strategy that activates an implementation type
// through one of its constructors. Each argument is a constructor function
// (func(deps...) T or func(deps...) (T, error)) or a Constructor value; all
// of them must produce the same T. The constructor with the most
// resolvable parameters is chosen at first activation.
func Implementation(constructors ...any) Strategy {
	return ImplementationType(nil, constructors...)
}

// ImplementationType is Implementation with an explicit implementation
// type. Without constructors, a struct or pointer-to-struct type is
// activated by allocating its zero value.
func ImplementationType(implementation reflect.Type, constructors ...any) Strategy {
	s := Strategy{kind: ImplementationStrategy, implementation: implementation}
	for _, c := range constructors {
		switch v := c.(type) {
		case Constructor:
			s.constructors = append(s.constructors, v)
		case *Constructor:
			if v != nil {
				s.constructors = append(s.constructors, *v)
			} else {
				s.constructors = append(s.constructors, Constructor{})
			}
		default:
			s.constructors = append(s.constructors, Constructor{Func: c})
		}
	}
	return s
}

// Kind returns the strategy kind.
func (s Strategy) Kind() StrategyKind {
	return s.kind
}

// InstanceValue returns the instance of an InstanceStrategy.
func (s Strategy) InstanceValue() any {
	return s.instance
}

// IsZero reports whether no strategy is set.
func (s Strategy) IsZero() bool {
	return s.kind == NoStrategy
}

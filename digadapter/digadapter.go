// Package digadapter bridges an inject.Injector and a go.uber.org/dig
// container in both directions.
//
// Populate makes every contract registered with an injector available to
// dig: singular contracts as constructors, multiple registrations as value
// groups. Source exposes types provided to a dig container as an
// inject.Source, so injector registrations can depend on them.
package digadapter

import (
	"fmt"
	"reflect"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/junioryono/inject"
)

var errorType = reflect.TypeFor[error]()

// Option configures Populate and Source.
type Option interface {
	apply(*options)
}

type options struct {
	groupName func(reflect.Type) string
	logger    *zap.Logger
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithGroupNamer sets the dig value group name used for a multiple
// registration. The default is the contract's type string.
func WithGroupNamer(namer func(contract reflect.Type) string) Option {
	return optionFunc(func(o *options) {
		if namer != nil {
			o.groupName = namer
		}
	})
}

// WithLogger sets the logger receiving one debug entry per bridged contract.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	})
}

func newOptions(opts []Option) *options {
	o := &options{
		groupName: func(t reflect.Type) string { return t.String() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}

// Populate provides every explicitly registered contract of inj to c.
// A singular contract T becomes a constructor of T that resolves it from
// inj. Each registration of a multiple contract is provided to the value
// group named by the group namer, in registration order.
//
// Values keep the lifetime of their registration in inj; dig caches what it
// receives, so a Transient registration is produced once per container.
//
// Example:
//
//	c := dig.New()
//	if err := digadapter.Populate(c, injector); err != nil {
//	    return err
//	}
//
//	err := c.Invoke(func(logger Logger) { ... })
func Populate(c *dig.Container, inj inject.Injector, opts ...Option) error {
	if c == nil {
		return fmt.Errorf("dig container cannot be nil")
	}

	if inj == nil {
		return inject.ErrInjectorNil
	}

	o := newOptions(opts)
	registry := inj.Registry()

	for _, contract := range registry.Contracts() {
		descriptors, _ := registry.TryGetMany(contract)

		if len(descriptors) == 1 && !descriptors[0].AllowMultiple() {
			ctor := constructorFor(contract, func() (any, error) {
				return inj.Resolve(contract)
			})

			if err := c.Provide(ctor); err != nil {
				return fmt.Errorf("provide %s: %w", contract, err)
			}

			o.logger.Debug("contract bridged to dig", zap.Stringer("contract", contract))
			continue
		}

		group := o.groupName(contract)
		for _, d := range descriptors {
			ctor := constructorFor(contract, func() (any, error) {
				return inj.ResolveDescriptor(d)
			})

			if err := c.Provide(ctor, dig.Group(group)); err != nil {
				return fmt.Errorf("provide %s to group %q: %w", contract, group, err)
			}
		}

		o.logger.Debug("contract bridged to dig group",
			zap.Stringer("contract", contract),
			zap.String("group", group),
			zap.Int("registrations", len(descriptors)))
	}

	return nil
}

// constructorFor builds a dig constructor func() (contract, error).
func constructorFor(contract reflect.Type, produce func() (any, error)) any {
	fnType := reflect.FuncOf(nil, []reflect.Type{contract, errorType}, false)

	return reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		v, err := produce()
		if err != nil {
			return []reflect.Value{reflect.Zero(contract), reflect.ValueOf(&err).Elem()}
		}

		result := reflect.New(contract).Elem()
		if v != nil {
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(contract) {
				err := fmt.Errorf("injector produced %s for %s", rv.Type(), contract)
				return []reflect.Value{reflect.Zero(contract), reflect.ValueOf(&err).Elem()}
			}
			result.Set(rv)
		}
		return []reflect.Value{result, reflect.Zero(errorType)}
	}).Interface()
}

// Source returns an inject.Source serving the given types from c. Values
// are obtained through c.Invoke on each resolution and are externally
// owned: dig caches them and the injector never disposes them.
//
// Example:
//
//	c := dig.New()
//	c.Provide(NewConfig)
//
//	registry := inject.NewRegistry()
//	registry.RegisterSource(digadapter.Source(c, reflect.TypeFor[*Config]()))
func Source(c *dig.Container, types ...reflect.Type) inject.Source {
	served := make(map[reflect.Type]bool, len(types))
	for _, t := range types {
		if t != nil {
			served[t] = true
		}
	}

	return inject.Source{
		Name: "dig",
		Matches: func(_ *inject.Registry, contract reflect.Type) bool {
			return served[contract]
		},
		Resolve: func(_ *inject.Registry, contract reflect.Type) ([]*inject.Descriptor, error) {
			d, err := inject.NewDescriptor(contract, inject.Factory(func(inject.Resolver) (any, error) {
				return invoke(c, contract)
			}), inject.WithLifetime(inject.Transient), inject.ExternallyOwned())
			if err != nil {
				return nil, err
			}

			return []*inject.Descriptor{d}, nil
		},
	}
}

// invoke extracts one value of type t from c.
func invoke(c *dig.Container, t reflect.Type) (any, error) {
	var result any

	fnType := reflect.FuncOf([]reflect.Type{t}, nil, false)
	fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		result = args[0].Interface()
		return nil
	})

	if err := c.Invoke(fn.Interface()); err != nil {
		return nil, err
	}

	return result, nil
}

package inject

import (
	"reflect"
)

// Module represents a group of registrations applied to a Registry.
type Module func(*Registry) error

// NewModule creates a new module with the given name and builders.
// Modules are a way to group related service registrations together.
// Errors of a builder are wrapped in a ModuleError naming the module.
//
// Example:
//
//	var DatabaseModule = inject.NewModule("database",
//	    inject.ProvideSingleton[*sql.DB](OpenDatabase),
//	    inject.ProvideScoped[UserRepository](NewUserRepository),
//	)
//
//	var AppModule = inject.NewModule("app",
//	    DatabaseModule,
//	    inject.ProvideTransient[Handler](NewHandler),
//	)
//
//	registry := inject.NewRegistry()
//	if err := registry.AddModules(AppModule); err != nil {
//	    log.Fatal(err)
//	}
func NewModule(name string, builders ...Module) Module {
	return func(r *Registry) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(r); err != nil {
				return &ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// ProvideSingleton creates a Module registering a Singleton implementation of T.
func ProvideSingleton[T any](constructor any, opts ...DescriptorOption) Module {
	return func(r *Registry) error {
		return AddSingleton[T](r, constructor, opts...)
	}
}

// ProvideScoped creates a Module registering a Scoped implementation of T.
func ProvideScoped[T any](constructor any, opts ...DescriptorOption) Module {
	return func(r *Registry) error {
		return AddScoped[T](r, constructor, opts...)
	}
}

// ProvideTransient creates a Module registering a Transient implementation of T.
func ProvideTransient[T any](constructor any, opts ...DescriptorOption) Module {
	return func(r *Registry) error {
		return AddTransient[T](r, constructor, opts...)
	}
}

// ProvideValue creates a Module registering instance as the Singleton instance of T.
func ProvideValue[T any](instance T, opts ...DescriptorOption) Module {
	return func(r *Registry) error {
		return AddInstance[T](r, instance, opts...)
	}
}

// ProvideStrategy creates a Module registering a strategy for contract.
func ProvideStrategy(contract reflect.Type, strategy Strategy, opts ...DescriptorOption) Module {
	return func(r *Registry) error {
		return r.Add(contract, strategy, opts...)
	}
}

// ProvideSource creates a Module registering a service source.
func ProvideSource(source Source) Module {
	return func(r *Registry) error {
		return r.RegisterSource(source)
	}
}

// Package inject composes object graphs from registered contracts.
//
// A Registry maps contract types to descriptors. Building the registry
// produces an Injector, the root scope, which activates implementations on
// demand, injects their constructor parameters and disposes what it created.
//
// # Overview
//
// The package provides:
//   - Three lifetimes: Singleton, Scoped, and Transient
//   - Instance, factory and implementation strategies
//   - Constructor selection by the most resolvable parameters
//   - Multi-registrations resolved as slices, ordered by priority metadata
//   - Lazy[T] and ExportFactory[T] wrappers for deferred production
//   - Open generic registrations through service sources
//   - Circular dependency detection on every resolution path
//
// # Basic Usage
//
//	registry := inject.NewRegistry()
//	inject.AddSingleton[Logger](registry, NewLogger)
//	inject.AddScoped[*UserService](registry, NewUserService)
//
//	injector, err := registry.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer injector.Close()
//
//	userService, err := inject.Resolve[*UserService](injector)
//
// Building seals the registry; later registrations fail with
// ErrRegistrySealed.
//
// # Lifetimes
//
//   - Singleton: one instance per injector, disposed when the injector closes
//   - Scoped: one instance per scope, disposed when that scope closes
//   - Transient: a new instance on every request, never tracked
//
// Instances registered with ExternallyOwned are never disposed.
//
// # Constructors
//
// An implementation may offer several constructors. The one with the most
// parameters that can all be satisfied is used; two eligible constructors of
// the same arity are ambiguous. Parameters with a default declared through
// WithDefault are always satisfiable:
//
//	inject.Implementation(
//	    NewClient,
//	    inject.Ctor(NewClientWithTimeout, inject.WithDefault(1, 30*time.Second)),
//	)
//
// # Multiple Registrations
//
// Registrations with AllowMultiple accumulate under one contract:
//
//	inject.AddSingleton[Plugin](registry, NewAuditPlugin, inject.AllowMultiple())
//	inject.AddSingleton[Plugin](registry, NewMetricsPlugin, inject.AllowMultiple())
//
//	plugins, err := inject.ResolveMany[Plugin](injector, inject.OrderByPriority())
//
// Constructors may also take a []Plugin parameter.
//
// # Deferred Resolution
//
// Depending on *Lazy[T] postpones producing T until Value is called, which
// breaks constructor cycles. *ExportFactory[T] produces a new T on each
// call and exposes the registration metadata.
//
// # Scopes
//
//	http.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
//	    scope, err := injector.CreateScope(r.Context())
//	    if err != nil {
//	        http.Error(w, err.Error(), http.StatusInternalServerError)
//	        return
//	    }
//	    defer scope.Close()
//
//	    service, _ := inject.Resolve[*UserService](scope)
//	})
//
// A scope closes itself when its context is cancelled. FromContext returns
// the scope carried by a context derived from Scope.Context.
//
// # Thread Safety
//
// Injectors and scopes may be used from multiple goroutines. Each singleton
// and scoped instance is produced once per owner.
//
// # Error Handling
//
// Failures are reported as typed errors that wrap the package sentinels:
//   - ServiceNotFoundError: no registration or source serves the contract
//   - CircularDependencyError: a contract was requested while being produced
//   - AmbiguousConstructorError, MissingResolvableConstructorError
//   - LifetimeConflictError: a singleton depends on a scoped service
//   - DisposalError: one or more instances failed to close
package inject

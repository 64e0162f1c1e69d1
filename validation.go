package inject

import (
	"errors"
	"io"
	"reflect"

	"github.com/junioryono/inject/internal/graph"
)

// graphProvider adapts a descriptor and its constructor parameters to
// graph.Provider.
type graphProvider struct {
	descriptor   *Descriptor
	dependencies []reflect.Type
}

func (p *graphProvider) GetType() reflect.Type {
	return p.descriptor.contract
}

func (p *graphProvider) GetDependencies() []reflect.Type {
	return p.dependencies
}

func (p *graphProvider) LifetimeName() string {
	return p.descriptor.lifetime.String()
}

// WriteGraph writes the dependency graph of the explicit registrations in
// Graphviz DOT format.
func (r *Registry) WriteGraph(w io.Writer) error {
	g, err := r.dependencyGraph()
	if err != nil {
		return err
	}

	return graph.NewVisualizer(g).WriteDOT(w)
}

// validate checks the explicit registrations: every constructor must be
// selectable, the graph must be acyclic and no singleton may capture a
// scoped service. It returns the singletons in dependency order.
func (r *Registry) validate() ([]*Descriptor, error) {
	g, err := r.dependencyGraph()
	if err != nil {
		return nil, err
	}

	if err := g.DetectCycles(); err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			path := make([]reflect.Type, len(cycle.Cycle))
			for i, key := range cycle.Cycle {
				path[i] = key.Type
			}
			return nil, &CircularDependencyError{Contract: cycle.Start().Type, Path: path}
		}
		return nil, err
	}

	if err := r.validateLifetimes(); err != nil {
		return nil, err
	}

	nodes, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	var singletons []*Descriptor
	for _, node := range nodes {
		for _, p := range node.Providers {
			if gp, ok := p.(*graphProvider); ok && gp.descriptor.lifetime == Singleton {
				singletons = append(singletons, gp.descriptor)
			}
		}
	}

	return singletons, nil
}

func (r *Registry) dependencyGraph() (*graph.DependencyGraph, error) {
	g := graph.NewDependencyGraph()

	for _, d := range r.Descriptors() {
		deps, err := r.dependenciesOf(d)
		if err != nil {
			return nil, err
		}

		if err := g.AddProvider(&graphProvider{descriptor: d, dependencies: deps}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// dependenciesOf returns the contracts the selected constructor of d
// resolves eagerly. Lazy and ExportFactory parameters resolve on use and
// add no dependency; a collection []E depends on E.
func (r *Registry) dependenciesOf(d *Descriptor) ([]reflect.Type, error) {
	if d.strategy.kind != ImplementationStrategy {
		return nil, nil
	}

	candidate, err := d.constructorFor(r)
	if err != nil {
		return nil, err
	}

	var deps []reflect.Type
	for i, p := range candidate.params {
		if candidate.hasDefault(i) && !r.IsRegistered(p) {
			continue
		}

		if dep, ok := r.dependencyEdge(p); ok {
			deps = append(deps, dep)
		}
	}

	return deps, nil
}

func (r *Registry) dependencyEdge(p reflect.Type) (reflect.Type, bool) {
	if r.hasEntry(p) {
		return p, true
	}

	if isDeferredWrapper(p) {
		return nil, false
	}

	if p.Kind() == reflect.Slice && r.IsRegistered(p.Elem()) {
		return r.dependencyEdge(p.Elem())
	}

	return p, true
}

func (r *Registry) hasEntry(contract reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[contract]
	return ok
}

// validateLifetimes rejects singletons that depend on scoped services,
// directly or through transient services.
func (r *Registry) validateLifetimes() error {
	for _, d := range r.Descriptors() {
		if d.lifetime != Singleton {
			continue
		}

		if err := r.checkCaptive(d, d, make(map[*Descriptor]bool)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkCaptive(singleton, d *Descriptor, visited map[*Descriptor]bool) error {
	if visited[d] {
		return nil
	}
	visited[d] = true

	deps, err := r.dependenciesOf(d)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		descriptors, ok := r.TryGetMany(dep)
		if !ok {
			continue
		}

		for _, dd := range descriptors {
			switch dd.lifetime {
			case Scoped:
				return &LifetimeConflictError{
					Contract:           singleton.contract,
					Lifetime:           singleton.lifetime,
					DependencyContract: dd.contract,
					DependencyLifetime: dd.lifetime,
				}
			case Transient:
				if err := r.checkCaptive(singleton, dd, visited); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// activateSingletons produces the given singletons in order.
func (s *scope) activateSingletons(order []*Descriptor) error {
	for _, d := range order {
		if _, err := s.produce(d, nil); err != nil {
			return err
		}
	}
	return nil
}

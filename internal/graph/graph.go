package graph

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Provider defines the interface for registrations that can be added to the graph.
type Provider interface {
	// GetType returns the contract type this provider produces
	GetType() reflect.Type

	// GetDependencies returns the contract types this provider needs
	GetDependencies() []reflect.Type
}

// DependencyGraph manages the dependency relationships between contracts.
// It provides cycle detection, topological sorting, and dependency analysis.
//
// Several providers may share one contract (multi-registrations); their
// dependencies are merged into a single node.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[NodeKey]*Node
	order []NodeKey // insertion order for deterministic traversal
}

// NodeKey uniquely identifies a node in the graph
type NodeKey struct {
	Type reflect.Type
}

// Node represents a contract in the dependency graph
type Node struct {
	Key       NodeKey
	Providers []Provider

	// Dependency information
	Dependencies []NodeKey // contracts this node depends on
	Dependents   []NodeKey // contracts that depend on this node
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[NodeKey]*Node),
	}
}

// AddProvider adds a provider to the graph and records its dependencies.
func (g *DependencyGraph) AddProvider(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	if provider.GetType() == nil {
		return fmt.Errorf("provider type cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	node := g.ensureNode(NodeKey{Type: provider.GetType()})
	node.Providers = append(node.Providers, provider)

	for _, dep := range provider.GetDependencies() {
		if dep == nil {
			continue
		}

		depKey := NodeKey{Type: dep}
		if containsKey(node.Dependencies, depKey) {
			continue
		}

		node.Dependencies = append(node.Dependencies, depKey)
		depNode := g.ensureNode(depKey)
		depNode.Dependents = append(depNode.Dependents, node.Key)
	}

	return nil
}

func (g *DependencyGraph) ensureNode(key NodeKey) *Node {
	node, exists := g.nodes[key]
	if !exists {
		node = &Node{Key: key}
		g.nodes[key] = node
		g.order = append(g.order, key)
	}
	return node
}

// DetectCycles checks if the graph contains any cycles and returns a
// CycleError describing the first one found.
func (g *DependencyGraph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		visited
	)

	state := make(map[NodeKey]int, len(g.nodes))
	var path []NodeKey

	var visit func(key NodeKey) error
	visit = func(key NodeKey) error {
		switch state[key] {
		case visiting:
			// Trim the path to the start of the cycle
			start := 0
			for i, k := range path {
				if k == key {
					start = i
					break
				}
			}
			cycle := make([]NodeKey, len(path)-start)
			copy(cycle, path[start:])
			return &CycleError{Cycle: cycle}
		case visited:
			return nil
		}

		state[key] = visiting
		path = append(path, key)

		if node := g.nodes[key]; node != nil {
			for _, dep := range node.Dependencies {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		path = path[:len(path)-1]
		state[key] = visited
		return nil
	}

	for _, key := range g.order {
		if state[key] == unvisited {
			if err := visit(key); err != nil {
				return err
			}
		}
	}

	return nil
}

// TopologicalSort returns nodes in dependency order (dependencies first).
// Nodes with equal rank keep insertion order.
func (g *DependencyGraph) TopologicalSort() ([]*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Kahn's algorithm over the reversed edges: a node is ready once all
	// of its dependencies have been emitted.
	remaining := make(map[NodeKey]int, len(g.nodes))
	for _, key := range g.order {
		remaining[key] = len(g.nodes[key].Dependencies)
	}

	queue := make([]NodeKey, 0)
	for _, key := range g.order {
		if remaining[key] == 0 {
			queue = append(queue, key)
		}
	}

	result := make([]*Node, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.nodes[current]
		result = append(result, node)

		for _, dependent := range node.Dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("circular dependency detected: graph contains %d nodes but only %d could be sorted",
			len(g.nodes), len(result))
	}

	return result, nil
}

// GetDependencies returns the direct dependencies of a contract
func (g *DependencyGraph) GetDependencies(serviceType reflect.Type) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if node, exists := g.nodes[NodeKey{Type: serviceType}]; exists {
		result := make([]NodeKey, len(node.Dependencies))
		copy(result, node.Dependencies)
		return result
	}

	return nil
}

// GetDependents returns contracts that depend on the given contract
func (g *DependencyGraph) GetDependents(serviceType reflect.Type) []NodeKey {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if node, exists := g.nodes[NodeKey{Type: serviceType}]; exists {
		result := make([]NodeKey, len(node.Dependents))
		copy(result, node.Dependents)
		return result
	}

	return nil
}

// GetNode returns the node for a given contract
func (g *DependencyGraph) GetNode(serviceType reflect.Type) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.nodes[NodeKey{Type: serviceType}]
}

// HasNode checks if a node exists in the graph
func (g *DependencyGraph) HasNode(serviceType reflect.Type) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, exists := g.nodes[NodeKey{Type: serviceType}]
	return exists
}

// Size returns the number of nodes in the graph
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// sortedKeys returns node keys ordered by their string form.
func (g *DependencyGraph) sortedKeys() []NodeKey {
	keys := make([]NodeKey, len(g.order))
	copy(keys, g.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func containsKey(keys []NodeKey, key NodeKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// String returns a string representation of the node key
func (k NodeKey) String() string {
	return fmt.Sprintf("%v", k.Type)
}

// String returns a string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("Node{%s, deps:%d, dependents:%d, providers:%d}",
		n.Key.String(), len(n.Dependencies), len(n.Dependents), len(n.Providers))
}

package graph

import (
	"fmt"
	"io"
	"strings"
)

// lifetimeNamer is implemented by providers that can report their lifetime.
type lifetimeNamer interface {
	LifetimeName() string
}

// Visualizer provides methods to visualize the dependency graph
type Visualizer struct {
	graph *DependencyGraph
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(graph *DependencyGraph) *Visualizer {
	return &Visualizer{graph: graph}
}

// WriteDOT writes the graph in Graphviz DOT format. Output is sorted so
// that equal graphs render identically.
func (v *Visualizer) WriteDOT(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	keys := v.graph.sortedKeys()
	nodeIDs := make(map[NodeKey]string, len(keys))
	for i, key := range keys {
		nodeID := fmt.Sprintf("n%d", i)
		nodeIDs[key] = nodeID

		node := v.graph.nodes[key]
		fmt.Fprintf(&b, "  %s [label=\"%s\", fillcolor=\"%s\", style=filled];\n",
			nodeID, v.formatNodeLabel(node), v.getNodeColor(node))
	}

	for _, key := range keys {
		for _, dep := range v.graph.nodes[key].Dependencies {
			fmt.Fprintf(&b, "  %s -> %s;\n", nodeIDs[key], nodeIDs[dep])
		}
	}

	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteAdjacencyList writes the graph as an adjacency list
func (v *Visualizer) WriteAdjacencyList(w io.Writer) error {
	v.graph.mu.RLock()
	defer v.graph.mu.RUnlock()

	var b strings.Builder
	for _, from := range v.graph.sortedKeys() {
		deps := v.graph.nodes[from].Dependencies
		toStrs := make([]string, len(deps))
		for i, to := range deps {
			toStrs[i] = to.String()
		}
		fmt.Fprintf(&b, "%s -> [%s]\n", from.String(), strings.Join(toStrs, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// formatNodeLabel creates a label for a node
func (v *Visualizer) formatNodeLabel(node *Node) string {
	typeStr := node.Key.String()

	// Drop the package path for readability
	if i := strings.LastIndex(typeStr, "/"); i >= 0 {
		typeStr = typeStr[i+1:]
	}
	typeStr = strings.ReplaceAll(typeStr, `"`, `\"`)

	if len(node.Providers) > 1 {
		return fmt.Sprintf("%s\\n(%d registrations)", typeStr, len(node.Providers))
	}

	return typeStr
}

// getNodeColor determines the color for a node based on its lifetime
func (v *Visualizer) getNodeColor(node *Node) string {
	if len(node.Providers) == 0 {
		return "lightgray" // Missing or source-provided
	}

	namer, ok := node.Providers[len(node.Providers)-1].(lifetimeNamer)
	if !ok {
		return "white"
	}

	switch namer.LifetimeName() {
	case "Singleton":
		return "lightblue"
	case "Scoped":
		return "lightgreen"
	case "Transient":
		return "lightyellow"
	default:
		return "white"
	}
}

package graph

import "strings"

// CycleError reports registrations that depend on each other. Cycle lists
// the contracts in dependency order; the last one depends on the first.
type CycleError struct {
	Cycle []NodeKey
}

// Start returns the contract where the cycle was entered.
func (e *CycleError) Start() NodeKey {
	if len(e.Cycle) == 0 {
		return NodeKey{}
	}
	return e.Cycle[0]
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle between registrations"
	}

	names := make([]string, 0, len(e.Cycle)+1)
	for _, key := range e.Cycle {
		names = append(names, key.String())
	}
	names = append(names, e.Cycle[0].String())

	return "dependency cycle between registrations: " + strings.Join(names, " -> ") +
		"; depend on *Lazy[T] or *ExportFactory[T] on one edge to defer it"
}

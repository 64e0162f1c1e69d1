package inject

import (
	"fmt"
	"reflect"
)

// Well-known metadata keys used to rank multi-registrations.
// Lower values mean higher priority; a missing key counts as 0.
const (
	OverridePriorityKey   = "OverridePriority"
	ProcessingPriorityKey = "ProcessingPriority"
)

// MetadataEntry is a single key/value pair of Metadata.
type MetadataEntry struct {
	Key   string
	Value any
}

// Metadata is an ordered key/value mapping attached to registrations.
// The zero value is empty and ready to use. Metadata values are treated as
// immutable: mutating methods return a new Metadata.
type Metadata struct {
	entries []MetadataEntry
}

// MetadataProvider derives metadata from an implementation type. It stands
// in for attribute discovery: the registry calls it at most once per
// implementation type and caches the result.
type MetadataProvider func(implementation reflect.Type) Metadata

// NewMetadata builds metadata from alternating key/value arguments.
// It panics if a key is not a string or a value is missing, as this is a
// programming error at registration sites.
func NewMetadata(kv ...any) Metadata {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("inject: NewMetadata requires key/value pairs, got %d arguments", len(kv)))
	}

	var m Metadata
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("inject: metadata key at position %d must be a string, got %T", i, kv[i]))
		}
		m = m.Set(key, kv[i+1])
	}

	return m
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Int returns the value stored under key when it is an integer type.
func (m Metadata) Int(key string) (int, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	default:
		return 0, false
	}
}

// Set returns a copy of m with key set to value. An existing key keeps its
// position.
func (m Metadata) Set(key string, value any) Metadata {
	entries := make([]MetadataEntry, len(m.entries), len(m.entries)+1)
	copy(entries, m.entries)

	for i := range entries {
		if entries[i].Key == key {
			entries[i].Value = value
			return Metadata{entries: entries}
		}
	}

	return Metadata{entries: append(entries, MetadataEntry{Key: key, Value: value})}
}

// Merge returns m overlaid with other: keys of m keep their order, other's
// values win on conflict, and new keys of other follow in other's order.
func (m Metadata) Merge(other Metadata) Metadata {
	result := m
	for _, e := range other.entries {
		result = result.Set(e.Key, e.Value)
	}
	return result
}

// Keys returns the keys in insertion order.
func (m Metadata) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in insertion order.
func (m Metadata) Entries() []MetadataEntry {
	entries := make([]MetadataEntry, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Len returns the number of entries.
func (m Metadata) Len() int {
	return len(m.entries)
}

// OverridePriority returns the OverridePriority entry, or 0.
func (m Metadata) OverridePriority() int {
	p, _ := m.Int(OverridePriorityKey)
	return p
}

// ProcessingPriority returns the ProcessingPriority entry, or 0.
func (m Metadata) ProcessingPriority() int {
	p, _ := m.Int(ProcessingPriorityKey)
	return p
}

package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[Kind]*ImportSchema)
	registryMu sync.RWMutex
)

func init() {
	register(attendeesSchema())
	register(meetingsSchema())
}

// register adds a schema to the registry.
// Panics if a schema with the same kind is already registered.
func register(s *ImportSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Kind]; exists {
		panic(fmt.Sprintf("import schema already registered: %s", s.Kind))
	}
	registry[s.Kind] = s
}

// GetSchema returns the schema for kind.
// Returns ErrUnknownImportKind if not found.
func GetSchema(kind Kind) (*ImportSchema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImportKind, kind)
	}
	return s, nil
}

// All returns every registered schema, sorted by kind.
func All() []*ImportSchema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*ImportSchema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []Kind {
	schemas := All()
	kinds := make([]Kind, len(schemas))
	for i, s := range schemas {
		kinds[i] = s.Kind
	}
	return kinds
}

package work

import (
	"fmt"
	"reflect"
	"sync"
)

// Dependencies is a typed registry of collaborators handed to Injectable
// tasks before they run. Values are keyed by their static type.
type Dependencies struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// NewDependencies creates an empty dependency registry.
func NewDependencies() *Dependencies {
	return &Dependencies{values: make(map[reflect.Type]any)}
}

// Provide registers v as the collaborator of type T, replacing any previous one.
func Provide[T any](d *Dependencies, v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[reflect.TypeFor[T]()] = v
}

// Resolve returns the collaborator of type T.
func Resolve[T any](d *Dependencies) (T, error) {
	var zero T
	if d == nil {
		return zero, fmt.Errorf("%w: %v", ErrMissingDependency, reflect.TypeFor[T]())
	}

	d.mu.RLock()
	v, ok := d.values[reflect.TypeFor[T]()]
	d.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrMissingDependency, reflect.TypeFor[T]())
	}
	return v.(T), nil
}

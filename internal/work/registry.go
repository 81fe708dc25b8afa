package work

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// decodeFunc rebuilds a task from its persisted data.
type decodeFunc func(data []byte) (Task, error)

// Registry maps task type names to the functions that rebuild them from
// durable storage. Only registered tasks can be enqueued. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	values    map[string]decodeFunc
	factories map[string]decodeFunc
	names     map[reflect.Type]string
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		values:    make(map[string]decodeFunc),
		factories: make(map[string]decodeFunc),
		names:     make(map[reflect.Type]string),
	}
}

// RegisterTask registers T as a value task under name. Values of T are
// persisted as JSON and must decode back to a deeply equal value, so they
// cannot hold collaborators. Injectable tasks receive those at run time.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterTask[T Task](r *Registry, name string) {
	decode := func(data []byte) (Task, error) {
		var t T
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task %q: %w", name, err)
		}
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = decode
	r.names[reflect.TypeFor[T]()] = name
}

// RegisterFactory registers a task type that is constructed from arguments
// of type A. Only the name and the JSON-encoded arguments are persisted, so
// the factory may return tasks holding closures or other transient state.
func RegisterFactory[A any](r *Registry, name string, factory func(args A) (Task, error)) {
	decode := func(data []byte) (Task, error) {
		var args A
		if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			if err := json.Unmarshal(data, &args); err != nil {
				return nil, fmt.Errorf("unmarshal arguments for task %q: %w", name, err)
			}
		}
		return factory(args)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = decode
}

// Names returns the registered task type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.values)+len(r.factories))
	for name := range r.values {
		names = append(names, name)
	}
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFactory reports whether name is a registered factory task type.
func (r *Registry) HasFactory(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Decode rebuilds the task described by p.
func (r *Registry) Decode(p Payload) (Task, error) {
	r.mu.RLock()
	var decode decodeFunc
	var ok bool
	switch p.Kind {
	case PayloadValue:
		decode, ok = r.values[p.Type]
	case PayloadFactory:
		decode, ok = r.factories[p.Type]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownTaskType, p.Kind, p.Type)
	}

	task, err := decode(p.Data)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %q decoded to nil", p.Type)
	}
	return task, nil
}

// encodeValue captures a registered task value. The returned task is the
// reconstructed copy, so a fresh run sees exactly what a recovered run would.
func (r *Registry) encodeValue(task Task) (Payload, Task, error) {
	if task == nil {
		return Payload{}, nil, fmt.Errorf("%w: task is nil", ErrNonPersistableTask)
	}

	r.mu.RLock()
	name, ok := r.names[reflect.TypeOf(task)]
	r.mu.RUnlock()
	if !ok {
		return Payload{}, nil, fmt.Errorf("%w: type %T is not registered", ErrNonPersistableTask, task)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return Payload{}, nil, fmt.Errorf("%w: %s: %v", ErrNonPersistableTask, name, err)
	}

	p := Payload{Kind: PayloadValue, Type: name, Data: data}
	restored, err := r.Decode(p)
	if err != nil {
		return Payload{}, nil, fmt.Errorf("%w: %s cannot be reconstructed: %v", ErrNonPersistableTask, name, err)
	}

	again, err := json.Marshal(restored)
	if err != nil || !bytes.Equal(data, again) {
		return Payload{}, nil, fmt.Errorf("%w: %s does not survive a round trip", ErrNonPersistableTask, name)
	}

	// JSON drops unexported fields and empties structs without exported
	// ones, so a captured collaborator only shows up in the values.
	if !reflect.DeepEqual(task, restored) {
		return Payload{}, nil, fmt.Errorf("%w: %s holds state that is not persisted", ErrNonPersistableTask, name)
	}

	return p, restored, nil
}

// encodeFactory captures a factory task reference and builds the task once
// to reject invalid arguments before anything is stored.
func (r *Registry) encodeFactory(name string, args any) (Payload, Task, error) {
	if !r.HasFactory(name) {
		return Payload{}, nil, fmt.Errorf("%w: %w: factory %q", ErrNonPersistableTask, ErrUnknownTaskType, name)
	}

	var data json.RawMessage
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return Payload{}, nil, fmt.Errorf("%w: arguments for %s: %v", ErrNonPersistableTask, name, err)
		}
		data = raw
	}

	p := Payload{Kind: PayloadFactory, Type: name, Data: data}
	task, err := r.Decode(p)
	if err != nil {
		return Payload{}, nil, fmt.Errorf("%w: %s: %v", ErrNonPersistableTask, name, err)
	}

	return p, task, nil
}

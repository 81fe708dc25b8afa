package work

import (
	"cmp"
	"fmt"
	"slices"
)

// Lock identifies a contested resource by type and optional instance id.
// A lock without an id is a type-level lock and conflicts with every lock of
// the same resource type. A lock with an id conflicts only with the type-level
// lock of its resource and with an identical instance lock.
type Lock struct {
	Resource string `json:"resource"     yaml:"resource"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	HasID    bool   `json:"has_id"       yaml:"has_id"`
}

// TypeLock returns a lock on the whole resource type.
func TypeLock(resource string) Lock {
	return Lock{Resource: resource}
}

// InstanceLock returns a lock on a single instance of the resource type.
// An empty id yields a type-level lock.
func InstanceLock(resource, id string) Lock {
	if id == "" {
		return TypeLock(resource)
	}
	return Lock{Resource: resource, ID: id, HasID: true}
}

// IsTypeLevel reports whether the lock covers the whole resource type.
func (l Lock) IsTypeLevel() bool {
	return !l.HasID
}

// ConflictsWith reports whether the two locks may not be held at the same time.
func (l Lock) ConflictsWith(o Lock) bool {
	if l.Resource != o.Resource {
		return false
	}
	return !l.HasID || !o.HasID || l.ID == o.ID
}

// String implements fmt.Stringer.
func (l Lock) String() string {
	if !l.HasID {
		return l.Resource
	}
	return fmt.Sprintf("%s/%s", l.Resource, l.ID)
}

func compareLocks(a, b Lock) int {
	if c := cmp.Compare(a.Resource, b.Resource); c != 0 {
		return c
	}
	// type-level sorts before instance locks of the same resource
	if a.HasID != b.HasID {
		if !a.HasID {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}

// normalizeLocks returns a sorted, de-duplicated copy of locks. A type-level
// lock absorbs instance locks of the same resource, so a lock set never
// conflicts with itself.
func normalizeLocks(locks []Lock) []Lock {
	sorted := slices.Clone(locks)
	slices.SortFunc(sorted, compareLocks)
	sorted = slices.Compact(sorted)

	out := sorted[:0]
	for _, l := range sorted {
		if n := len(out); n > 0 && out[n-1].Resource == l.Resource && out[n-1].IsTypeLevel() {
			continue
		}
		out = append(out, l)
	}
	return slices.Clip(out)
}

// anyConflict reports whether any lock in a conflicts with any lock in b.
func anyConflict(a, b []Lock) bool {
	for _, x := range a {
		for _, y := range b {
			if x.ConflictsWith(y) {
				return true
			}
		}
	}
	return false
}

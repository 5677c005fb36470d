package identity

import (
	"math"
	"sync"
)

// AuthorId is the dense identifier assigned to an author display name.
// Ids are allocated monotonically starting from 0 and are never reused.
type AuthorId uint32

const (
	// AuthorMissing denotes an unresolvable author reference, e.g. the old
	// side of a TreePatch synthesized against an empty tree.
	AuthorMissing = AuthorId(math.MaxUint32)

	// OlderCodeName is the display name reserved for lines which existed
	// before the first commit admitted by the history filter.
	OlderCodeName = "Older Code"

	// UnknownAuthorName substitutes a null author name in commit metadata.
	UnknownAuthorName = "<Unknown>"
)

// Registry interns author display names into AuthorId-s.
//
// A Registry is scoped to a single analysis run and is shared by every
// component of that run. The engine is single-threaded, but the callback may
// fan results out to other goroutines which resolve names back, hence the
// mutex.
type Registry struct {
	mutex sync.Mutex
	// nameToId maps display name -> author id.
	nameToId map[string]AuthorId
	// idToName maps author id -> display name.
	idToName []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nameToId: map[string]AuthorId{}}
}

// IdOf returns the id interned for name, assigning the next unused id if the
// name has not been seen before. An empty name is treated as unknown.
func (registry *Registry) IdOf(name string) AuthorId {
	if name == "" {
		name = UnknownAuthorName
	}
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if id, exists := registry.nameToId[name]; exists {
		return id
	}
	id := AuthorId(len(registry.idToName))
	registry.nameToId[name] = id
	registry.idToName = append(registry.idToName, name)
	return id
}

// NameOf performs the reverse lookup. The second value is false when the id
// was never allocated by this Registry.
func (registry *Registry) NameOf(id AuthorId) (string, bool) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if int(id) >= len(registry.idToName) {
		return "", false
	}
	return registry.idToName[id], true
}

// FriendlyNameOf is NameOf which falls back to UnknownAuthorName instead of
// reporting a miss.
func (registry *Registry) FriendlyNameOf(id AuthorId) string {
	if name, exists := registry.NameOf(id); exists {
		return name
	}
	return UnknownAuthorName
}

// Count returns the number of interned names.
func (registry *Registry) Count() int {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return len(registry.idToName)
}

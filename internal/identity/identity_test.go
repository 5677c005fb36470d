package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryInternsMonotonically(t *testing.T) {
	registry := NewRegistry()
	alice := registry.IdOf("Alice")
	bob := registry.IdOf("Bob")
	assert.Equal(t, AuthorId(0), alice)
	assert.Equal(t, AuthorId(1), bob)
	assert.Equal(t, alice, registry.IdOf("Alice"))
	assert.Equal(t, 2, registry.Count())
}

func TestRegistryReverseLookup(t *testing.T) {
	registry := NewRegistry()
	id := registry.IdOf("Alice")
	name, exists := registry.NameOf(id)
	assert.True(t, exists)
	assert.Equal(t, "Alice", name)
	_, exists = registry.NameOf(AuthorId(100))
	assert.False(t, exists)
	assert.Equal(t, UnknownAuthorName, registry.FriendlyNameOf(AuthorId(100)))
}

func TestRegistryEmptyNameIsUnknown(t *testing.T) {
	registry := NewRegistry()
	id := registry.IdOf("")
	assert.Equal(t, id, registry.IdOf(UnknownAuthorName))
	assert.Equal(t, UnknownAuthorName, registry.FriendlyNameOf(id))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistryReservedLabels(t *testing.T) {
	registry := NewRegistry()
	older := registry.IdOf(OlderCodeName)
	assert.Equal(t, AuthorId(0), older)
	assert.NotEqual(t, older, registry.IdOf("Alice"))
}

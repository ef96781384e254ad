package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierHasher_Hash(t *testing.T) {
	h := NewIdentifierHasher()

	t.Run("known digest", func(t *testing.T) {
		// sha256("test@example.com")
		assert.Equal(t, "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b", h.Hash("test@example.com"))
	})

	t.Run("digest passes through", func(t *testing.T) {
		digest := h.Hash("someone@example.com")
		assert.Equal(t, digest, h.Hash(digest))
	})

	t.Run("uppercase digest passes through unchanged", func(t *testing.T) {
		digest := strings.ToUpper(h.Hash("someone@example.com"))
		assert.Equal(t, digest, h.Hash(digest))
	})

	t.Run("no normalization", func(t *testing.T) {
		assert.NotEqual(t, h.Hash("Test@Example.com"), h.Hash("test@example.com"))
		assert.NotEqual(t, h.Hash(" test@example.com"), h.Hash("test@example.com"))
	})

	t.Run("output shape", func(t *testing.T) {
		out := h.Hash("x")
		assert.Len(t, out, 64)
		assert.True(t, IsDigest(out))
		assert.Equal(t, strings.ToLower(out), out)
	})

	t.Run("63 hex chars is not a digest", func(t *testing.T) {
		almost := strings.Repeat("a", 63)
		assert.NotEqual(t, almost, h.Hash(almost))
	})
}

func TestIdentifierHasher_Prepare(t *testing.T) {
	h := NewIdentifierHasher()

	assert.Equal(t, "test@example.com", h.Prepare("test@example.com", false))
	assert.Equal(t, h.Hash("test@example.com"), h.Prepare("test@example.com", true))

	digest := h.Hash("a@b.c")
	assert.Equal(t, digest, h.Prepare(digest, true))
}

package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	t.Run("hash verifies against the original secret", func(t *testing.T) {
		digest, err := hasher.Hash("S3cure-Passw0rd!")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(digest, "$2a$"))
		assert.True(t, hasher.Verify("S3cure-Passw0rd!", digest))
	})

	t.Run("same secret hashed twice yields different digests", func(t *testing.T) {
		first, err := hasher.Hash("S3cure-Passw0rd!")
		require.NoError(t, err)
		second, err := hasher.Hash("S3cure-Passw0rd!")
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.True(t, hasher.Verify("S3cure-Passw0rd!", first))
		assert.True(t, hasher.Verify("S3cure-Passw0rd!", second))
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		digest, err := hasher.Hash("S3cure-Passw0rd!")
		require.NoError(t, err)

		assert.False(t, hasher.Verify("s3cure-passw0rd!", digest))
		assert.False(t, hasher.Verify("", digest))
	})
}

func TestHasher_VerifyMalformedDigest(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	tests := []struct {
		name   string
		digest string
	}{
		{"empty digest", ""},
		{"plain text", "not-a-hash"},
		{"truncated bcrypt", "$2a$04$abc"},
		{"unknown prefix", "$9z$04$aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, hasher.Verify("anything", tt.digest))
			})
		})
	}
}

func TestNewHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}

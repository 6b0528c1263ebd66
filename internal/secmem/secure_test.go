package secmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSlice_CopiesData(t *testing.T) {
	t.Parallel()

	src := []byte("twenty five word seed phrase")
	sb := FromSlice(src)
	defer sb.Destroy()

	require.Equal(t, src, sb.Bytes())

	// Mutating the source must not affect the secure copy.
	src[0] = 'X'
	assert.Equal(t, byte('t'), sb.Bytes()[0])
}

func TestDestroy_ZeroesAndNils(t *testing.T) {
	t.Parallel()

	sb := FromString("secret descriptor")
	data := sb.Bytes()
	require.NotEmpty(t, data)

	sb.Destroy()

	assert.Nil(t, sb.Bytes())
	assert.Equal(t, 0, sb.Len())
	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	t.Parallel()

	sb := FromString("secret")
	sb.Destroy()
	sb.Destroy() // must not panic
	assert.Nil(t, sb.Bytes())
}

func TestString_RoundTrip(t *testing.T) {
	t.Parallel()

	sb := FromString("wpkh(xpub/0/*)")
	defer sb.Destroy()

	assert.Equal(t, "wpkh(xpub/0/*)", sb.String())
}

func TestNewSecureBytes_Empty(t *testing.T) {
	t.Parallel()

	sb := NewSecureBytes(0)
	defer sb.Destroy()

	assert.Equal(t, 0, sb.Len())
	assert.False(t, sb.IsLocked())
}

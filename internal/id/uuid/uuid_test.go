package uuid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	a, err := gen.NewID()
	require.NoError(t, err)
	require.Len(t, a, 36)

	b, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNewShortID(t *testing.T) {
	t.Parallel()

	gen := NewGenerator()
	id, err := gen.NewShortID(6)
	require.NoError(t, err)
	require.Len(t, id, 6)
	require.NotContains(t, id, "-")
}

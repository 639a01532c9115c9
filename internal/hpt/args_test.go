package hpt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgumentAccessors(t *testing.T) {
	args := []any{"rbf", 0.7, 2.6, true, 3, 0.2}

	s, err := String(args, 0)
	require.NoError(t, err)
	assert.Equal(t, "rbf", s)

	f, err := Float(args, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.7, f)

	n, err := Int(args, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "floats round to the nearest integer")

	b, err := Bool(args, 3)
	require.NoError(t, err)
	assert.True(t, b)

	f, err = Float(args, 4)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	b, err = Bool(args, 5)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestArgumentAccessorErrors(t *testing.T) {
	args := []any{"rbf", math.NaN()}

	_, err := Float(args, 0)
	assert.ErrorIs(t, err, ErrArgumentType)
	_, err = Int(args, 1)
	assert.ErrorIs(t, err, ErrArgumentType)
	_, err = String(args, 1)
	assert.ErrorIs(t, err, ErrArgumentType)
	_, err = Bool(args, 0)
	assert.ErrorIs(t, err, ErrArgumentType)
	_, err = Float(args, 2)
	assert.ErrorIs(t, err, ErrArgumentType)
	_, err = Float(args, -1)
	assert.ErrorIs(t, err, ErrArgumentType)
}

package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLiveValueDistinctFromTombstone(t *testing.T) {
	live := Live([]byte("x"))
	require.False(t, live.IsTombstone())
	require.Equal(t, []byte("x"), live.Bytes())
	require.Equal(t, 1, live.Len())

	tomb := Tombstone()
	require.True(t, tomb.IsTombstone())
	require.Nil(t, tomb.Bytes())
	require.Zero(t, tomb.Len())
}

func TestEmptyLiveValueIsNotATombstone(t *testing.T) {
	v := Live([]byte{})
	require.False(t, v.IsTombstone())
	require.Zero(t, v.Len())
}

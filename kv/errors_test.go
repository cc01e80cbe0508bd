package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	cause := errors.New("disk full")
	err := NewIoError("write record", cause)

	require.True(t, Is(err, KindIO))
	require.False(t, Is(err, KindChecksum))
}

func TestChecksumErrorMessageNamesChecksumMismatch(t *testing.T) {
	err := NewChecksumError("sstable %s", "table-1.sst")
	require.Contains(t, err.Error(), "checksum mismatch:")
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewIoError("open wal file", cause)

	require.ErrorIs(t, err, cause)
}

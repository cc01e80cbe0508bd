package sstable

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devkarn/lsmkv/kv"
	"github.com/devkarn/lsmkv/testutil"
)

func buildTable(t *testing.T, path string, pairs [][2]string, tombstones map[string]bool) {
	t.Helper()
	w, err := Open(path)
	require.NoError(t, err)
	for _, kvPair := range pairs {
		key := []byte(kvPair[0])
		if tombstones[kvPair[0]] {
			require.NoError(t, w.Add(key, kv.Tombstone()))
			continue
		}
		require.NoError(t, w.Add(key, kv.Live([]byte(kvPair[1]))))
	}
	require.NoError(t, w.Finalize())
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")

	pairs := [][2]string{
		{"alpha", "1"}, {"bravo", "2"}, {"charlie", "3"}, {"delta", "4"},
	}
	buildTable(t, path, pairs, nil)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, 4, r.NumEntries())
	for _, p := range pairs {
		value, found, err := r.Get([]byte(p[0]))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, p[1], string(value))
	}
}

func TestGetOnMissingKeyReturnsNotFound(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	buildTable(t, path, [][2]string{{"alpha", "1"}, {"charlie", "3"}}, nil)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, found, err := r.Get([]byte("bravo"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetOnTombstoneReturnsNotFound(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	buildTable(t, path,
		[][2]string{{"alpha", "1"}, {"user", ""}},
		map[string]bool{"user": true},
	)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, found, err := r.Get([]byte("user"))
	require.NoError(t, err)
	require.False(t, found, "a tombstone must read back as absent")
}

func TestIterYieldsStrictlyIncreasingOrder(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	pairs := [][2]string{{"alpha", "1"}, {"bravo", "2"}, {"charlie", "3"}}
	buildTable(t, path, pairs, nil)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	entries, err := r.Iter()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, p := range pairs {
		require.Equal(t, p[0], string(entries[i].Key))
		require.Equal(t, p[1], string(entries[i].Value.Bytes()))
	}
}

func TestAddRejectsNonIncreasingKeys(t *testing.T) {
	dir := testutil.TempDir(t)
	w, err := Open(filepath.Join(dir, "test.sst"))
	require.NoError(t, err)

	require.NoError(t, w.Add([]byte("bravo"), kv.Live([]byte("2"))))
	err = w.Add([]byte("alpha"), kv.Live([]byte("1")))
	require.Error(t, err)
	require.True(t, kv.Is(err, kv.KindOrder))

	err = w.Add([]byte("bravo"), kv.Live([]byte("2")))
	require.Error(t, err, "a repeated key is not strictly greater and must be rejected")
	require.True(t, kv.Is(err, kv.KindOrder))

	require.NoError(t, w.Abort())
}

func TestAbortRemovesPartialFile(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("alpha"), kv.Live([]byte("1"))))

	require.NoError(t, w.Abort())
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestOpenOnBadMagicReturnsFormatError(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "bad.sst")
	require.NoError(t, os.WriteFile(path, make([]byte, headerSize+footerSize), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	require.True(t, kv.Is(err, kv.KindFormat))
}

func TestOpenOnCorruptedFileReturnsChecksumError(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	buildTable(t, path, [][2]string{{"alpha", "1"}, {"bravo", "2"}}, nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0x01 // flip a bit inside the first data record
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	require.Error(t, err)
	require.True(t, kv.Is(err, kv.KindChecksum))
}

func TestSparseIndexAcrossManyEntries(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "large.sst")

	const n = 10_000
	w, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key%06d", i))
		value := []byte(fmt.Sprintf("value%06d", i))
		require.NoError(t, w.Add(key, kv.Live(value)))
	}
	require.NoError(t, w.Finalize())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.EqualValues(t, n, r.NumEntries())

	for _, i := range []int{0, 1, 15, 16, 17, 4999, 5000, 9999} {
		key := []byte(fmt.Sprintf("key%06d", i))
		value, found, err := r.Get(key)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, fmt.Sprintf("value%06d", i), string(value))
	}

	_, found, err := r.Get([]byte("key999999"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetRangeIsHalfOpen(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.sst")
	pairs := [][2]string{
		{"alpha", "1"}, {"bravo", "2"}, {"charlie", "3"}, {"delta", "4"}, {"echo", "5"},
	}
	buildTable(t, path, pairs, nil)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	entries, err := r.GetRange([]byte("bravo"), []byte("echo"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "bravo", string(entries[0].Key))
	require.Equal(t, "charlie", string(entries[1].Key))
	require.Equal(t, "delta", string(entries[2].Key))
}

func TestAddRejectsEmptyKey(t *testing.T) {
	dir := testutil.TempDir(t)
	w, err := Open(filepath.Join(dir, "test.sst"))
	require.NoError(t, err)
	defer w.Abort()

	err = w.Add(nil, kv.Live([]byte("v")))
	require.Error(t, err)
	require.True(t, kv.Is(err, kv.KindType))
}

// Package testutil provides test fixtures shared across the wal,
// memtable, and sstable test suites.
package testutil

import (
	"os"
	"testing"
)

// TempDir creates a temporary directory for a test and registers its
// removal on test cleanup.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "lsmkv-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

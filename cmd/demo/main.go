// Command demo exercises one full write-flush-read cycle of the
// WAL, memtable, and SSTable core: write a handful of keys (including
// a delete), flush the memtable to an SSTable, truncate the WAL, and
// read the results back — demonstrating the data flow described in
// spec.md §2 without the multi-SSTable orchestration that sits above
// the core (out of scope for this module).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devkarn/lsmkv/kv"
	"github.com/devkarn/lsmkv/memtable"
	"github.com/devkarn/lsmkv/sstable"
	"github.com/devkarn/lsmkv/wal"
)

func main() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("lsmkv core demo: WAL -> Memtable -> SSTable")
	fmt.Println(strings.Repeat("=", 72))

	dir, err := os.MkdirTemp("", "lsmkv-demo-*")
	if err != nil {
		fatal(err)
	}
	defer os.RemoveAll(dir)

	if err := run(dir); err != nil {
		fatal(err)
	}
}

func run(dir string) error {
	log, err := wal.Open(filepath.Join(dir, "demo.wal"), wal.DefaultOptions())
	if err != nil {
		return err
	}
	defer log.Close()

	mt := memtable.New(memtable.DefaultMaxSizeBytes)

	writes := []struct {
		key, value string
		tombstone  bool
	}{
		{"user", "alice", false},
		{"user", "bob", false},
		{"session", "abc123", false},
		{"user", "", true},
	}

	fmt.Println("\nappending to WAL and applying to memtable:")
	for _, w := range writes {
		key := []byte(w.key)
		if w.tombstone {
			if err := log.Append(key, kv.Tombstone()); err != nil {
				return err
			}
			if err := mt.Delete(key); err != nil {
				return err
			}
			fmt.Printf("  DELETE %s\n", w.key)
			continue
		}
		value := []byte(w.value)
		if err := log.Append(key, kv.Live(value)); err != nil {
			return err
		}
		if err := mt.Put(key, value); err != nil {
			return err
		}
		fmt.Printf("  PUT %s = %q\n", w.key, w.value)
	}

	fmt.Printf("\nmemtable: %d entries, %d bytes\n", mt.NumEntries(), mt.SizeBytes())

	sstPath := filepath.Join(dir, "demo-000001.sst")
	writer, err := sstable.Open(sstPath)
	if err != nil {
		return err
	}
	for _, e := range mt.Iter() {
		if err := writer.Add(e.Key, e.Value); err != nil {
			_ = writer.Abort()
			return err
		}
	}
	if err := writer.Finalize(); err != nil {
		return err
	}
	fmt.Printf("flushed memtable to %s\n", sstPath)

	if err := log.Truncate(); err != nil {
		return err
	}
	mt.Clear()
	fmt.Println("wal truncated, memtable cleared")

	reader, err := sstable.Open(sstPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	fmt.Println("\nreading back from the flushed sstable:")
	for _, key := range []string{"user", "session", "missing"} {
		value, found, err := reader.Get([]byte(key))
		if err != nil {
			return err
		}
		switch {
		case found:
			fmt.Printf("  GET %s -> %q\n", key, value)
		default:
			fmt.Printf("  GET %s -> not found\n", key)
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "demo failed:", err)
	os.Exit(1)
}

// Command benchmark drives the WAL, memtable, and SSTable core under
// a synthetic workload and reports latency percentiles, adapted from
// the teacher's cmd/benchmark flag-based CLI down to this module's
// single core engine.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/devkarn/lsmkv/benchmark"
)

func main() {
	numKeys := flag.Int("keys", 50_000, "number of distinct keys to generate")
	keySize := flag.Int("keysize", 16, "key size in bytes")
	valueSize := flag.Int("valsize", 100, "value size in bytes")
	distribution := flag.String("dist", "sequential", "key distribution: sequential or uniform")
	syncOnWrite := flag.Bool("sync", true, "fsync the WAL after every append")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	fmt.Println("lsmkv core benchmark")
	fmt.Println("====================")
	fmt.Printf("keys=%d keysize=%d valsize=%d dist=%s sync=%v\n\n",
		*numKeys, *keySize, *valueSize, *distribution, *syncOnWrite)

	dir, err := os.MkdirTemp("", "lsmkv-bench-*")
	if err != nil {
		fail(err)
	}
	defer os.RemoveAll(dir)

	cfg := benchmark.Config{
		NumKeys:           *numKeys,
		KeySize:           *keySize,
		ValueSize:         *valueSize,
		Distribution:      benchmark.KeyDistribution(*distribution),
		Seed:              *seed,
		SyncOnWrite:       *syncOnWrite,
		MaxGeneratedBytes: 2 << 30, // 2 GiB runaway guard
	}

	result, err := benchmark.Run(dir, cfg)
	if err != nil {
		fail(err)
	}

	fmt.Print(benchmark.Summary(result))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "benchmark failed:", err)
	os.Exit(1)
}

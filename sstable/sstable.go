// Package sstable implements the immutable, sorted, on-disk table
// produced by flushing a memtable. A table carries a sparse index (one
// entry per INDEX_INTERVAL data records) for bounded-scan point lookup,
// and a whole-file CRC32 for integrity verification on open.
//
// File layout:
//
//	[Header (24 B)] [Data Block] [Index Block] [Footer (16 B)]
//
// Header, little-endian:
//
//	offset  size  field
//	0       8     magic (u64) = 0x5353_5441_4242_4C45
//	8       4     version (u32) = 1
//	12      8     num_entries (u64)
//	20      4     reserved (u32), zero
//
// Data record:
//
//	size  field
//	4     key_size (u32)
//	4     value_size (u32) — 0xFFFF_FFFF means tombstone
//	ks    key bytes
//	vs    value bytes (absent for tombstone)
//
// Index entry (one per INDEX_INTERVAL data records):
//
//	size  field
//	4     key_size (u32)
//	ks    key bytes
//	8     data_offset (u64)
//
// Footer, the last 16 bytes of the file:
//
//	size  field
//	8     index_offset (u64)
//	8     checksum (u64; low 32 bits = CRC32, high 32 bits = zero)
//
// The CRC32 covers every byte of the file except the final 8-byte
// checksum field: [0, file_size-8).
package sstable

const (
	Magic   uint64 = 0x5353_5441_4242_4C45
	Version uint32 = 1

	// IndexInterval (G) is the sparse-index gap: one index entry is
	// recorded for every INDEX_INTERVAL-th data record.
	IndexInterval = 16

	headerSize = 24
	footerSize = 16

	tombstoneSentinel uint32 = 0xFFFF_FFFF
)

// dataStart is the fixed byte offset where the data block begins.
const dataStart = headerSize

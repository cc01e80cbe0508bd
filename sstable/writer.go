package sstable

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/devkarn/lsmkv/kv"
)

// indexEntry records the key and data-block offset of one sampled
// record, for the sparse index.
type indexEntry struct {
	key    []byte
	offset uint64
}

// Writer builds a new SSTable file from a single sorted pass over
// (key, value-or-tombstone) pairs. Add must be called in strictly
// increasing key order; Finalize must be called exactly once.
type Writer struct {
	file       *os.File
	path       string
	offset     uint64
	numEntries uint64
	prevKey    []byte
	hasPrev    bool
	index      []indexEntry
	log        *logrus.Entry
	finalized  bool
}

// Open creates the file at path and reserves space for the header,
// which is rewritten with the true entry count at Finalize.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, kv.NewIoError("create sstable file", err)
	}

	placeholder := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(placeholder[0:8], Magic)
	binary.LittleEndian.PutUint32(placeholder[8:12], Version)
	// num_entries (12:20) and reserved (20:24) stay zero until Finalize.
	if _, err := f.Write(placeholder); err != nil {
		f.Close()
		return nil, kv.NewIoError("write sstable header placeholder", err)
	}

	return &Writer{
		file:   f,
		path:   path,
		offset: headerSize,
		log:    logrus.WithField("component", "sstable-writer").WithField("path", path),
	}, nil
}

// Add appends a (key, value-or-tombstone) record. key must be
// strictly greater than the key passed to the previous Add call, or
// an OrderError is returned and the record is not written.
func (w *Writer) Add(key []byte, value kv.Value) error {
	if len(key) == 0 {
		return kv.NewTypeError("sstable: key must be a non-empty byte string")
	}
	if w.hasPrev && bytes.Compare(key, w.prevKey) <= 0 {
		return kv.NewOrderError(key, w.prevKey)
	}

	recordOffset := w.offset
	if w.numEntries%IndexInterval == 0 {
		w.index = append(w.index, indexEntry{
			key:    append([]byte(nil), key...),
			offset: recordOffset,
		})
	}

	valBytes := value.Bytes()
	valSize := tombstoneSentinel
	if !value.IsTombstone() {
		valSize = uint32(len(valBytes))
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(header[4:8], valSize)

	n, err := w.file.Write(header)
	if err != nil {
		return kv.NewIoError("write sstable record header", err)
	}
	w.offset += uint64(n)

	n, err = w.file.Write(key)
	if err != nil {
		return kv.NewIoError("write sstable record key", err)
	}
	w.offset += uint64(n)

	if !value.IsTombstone() {
		n, err = w.file.Write(valBytes)
		if err != nil {
			return kv.NewIoError("write sstable record value", err)
		}
		w.offset += uint64(n)
	}

	w.prevKey = append([]byte(nil), key...)
	w.hasPrev = true
	w.numEntries++
	return nil
}

// Finalize writes the index block, rewrites the header with the true
// entry count, flushes and syncs, computes the whole-file checksum,
// and syncs again before closing. It must be called exactly once.
func (w *Writer) Finalize() error {
	indexOffset := w.offset

	for _, e := range w.index {
		entryBuf := make([]byte, 4+len(e.key)+8)
		binary.LittleEndian.PutUint32(entryBuf[0:4], uint32(len(e.key)))
		copy(entryBuf[4:4+len(e.key)], e.key)
		binary.LittleEndian.PutUint64(entryBuf[4+len(e.key):], e.offset)

		n, err := w.file.Write(entryBuf)
		if err != nil {
			return kv.NewIoError("write sstable index entry", err)
		}
		w.offset += uint64(n)
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:8], indexOffset)
	// checksum placeholder, rewritten below.
	if _, err := w.file.Write(footer); err != nil {
		return kv.NewIoError("write sstable footer placeholder", err)
	}

	if _, err := w.file.WriteAt(numEntriesField(w.numEntries), 12); err != nil {
		return kv.NewIoError("rewrite sstable header entry count", err)
	}

	if err := w.file.Sync(); err != nil {
		return kv.NewIoError("sync sstable file", err)
	}

	fileSize := w.offset + footerSize
	checksum, err := computeChecksum(w.file, fileSize-8)
	if err != nil {
		return err
	}

	checksumField := make([]byte, 8)
	binary.LittleEndian.PutUint64(checksumField, uint64(checksum))
	if _, err := w.file.WriteAt(checksumField, int64(fileSize-8)); err != nil {
		return kv.NewIoError("rewrite sstable footer checksum", err)
	}

	if err := w.file.Sync(); err != nil {
		return kv.NewIoError("sync sstable file after checksum", err)
	}

	w.finalized = true
	w.log.WithField("entries", w.numEntries).Info("sstable finalized")
	return w.file.Close()
}

// Abort closes and deletes a partially written SSTable file. Callers
// should invoke Abort when Finalize fails or is never reached, since a
// non-finalized file must never be treated as a valid SSTable.
func (w *Writer) Abort() error {
	if !w.finalized {
		w.file.Close()
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return kv.NewIoError("remove aborted sstable file", err)
	}
	return nil
}

func numEntriesField(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// computeChecksum returns the CRC32 (IEEE) over [0, n) of f.
func computeChecksum(f *os.File, n uint64) (uint32, error) {
	hasher := crc32.NewIEEE()
	section := io.NewSectionReader(f, 0, int64(n))
	if _, err := io.Copy(hasher, section); err != nil {
		return 0, kv.NewIoError("checksum sstable file", err)
	}
	return hasher.Sum32(), nil
}

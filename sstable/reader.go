package sstable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/devkarn/lsmkv/kv"
)

// sparseIndexEntry is one in-memory (key, data_offset) pair loaded
// from the on-disk index block at open time.
type sparseIndexEntry struct {
	key    []byte
	offset uint64
}

// Reader opens an existing, finalized SSTable file, verifies its
// integrity, and loads the sparse index into memory.
type Reader struct {
	file        *os.File
	path        string
	numEntries  uint64
	indexOffset uint64
	index       []sparseIndexEntry
	log         *logrus.Entry
}

// Entry is one (key, value-or-tombstone) pair yielded by Iter/GetRange.
type Entry struct {
	Key   []byte
	Value kv.Value
}

// Open opens path, verifies the header magic/version, recomputes and
// checks the whole-file CRC32 against the stored checksum, and parses
// the full index block into memory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kv.NewIoError("open sstable file", err)
	}

	r := &Reader{file: f, path: path, log: logrus.WithField("component", "sstable-reader").WithField("path", path)}

	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.verifyChecksumAndReadFooter(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	header := make([]byte, headerSize)
	if _, err := r.file.ReadAt(header, 0); err != nil {
		return kv.NewIoError("read sstable header", err)
	}

	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != Magic {
		return kv.NewFormatError("sstable %s: bad magic number %#x", r.path, magic)
	}
	version := binary.LittleEndian.Uint32(header[8:12])
	if version != Version {
		return kv.NewFormatError("sstable %s: unsupported version %d", r.path, version)
	}
	r.numEntries = binary.LittleEndian.Uint64(header[12:20])
	return nil
}

func (r *Reader) verifyChecksumAndReadFooter() error {
	stat, err := r.file.Stat()
	if err != nil {
		return kv.NewIoError("stat sstable file", err)
	}
	fileSize := stat.Size()
	if fileSize < headerSize+footerSize {
		return kv.NewFormatError("sstable %s: file too small (%d bytes)", r.path, fileSize)
	}

	footer := make([]byte, footerSize)
	if _, err := r.file.ReadAt(footer, fileSize-footerSize); err != nil {
		return kv.NewIoError("read sstable footer", err)
	}
	r.indexOffset = binary.LittleEndian.Uint64(footer[0:8])
	storedChecksum := binary.LittleEndian.Uint64(footer[8:16])

	computed, err := computeChecksum(r.file, uint64(fileSize-8))
	if err != nil {
		return err
	}
	if uint64(computed) != storedChecksum {
		r.log.WithField("stored", storedChecksum).WithField("computed", computed).Warn("sstable checksum mismatch")
		return kv.NewChecksumError("sstable %s", r.path)
	}
	return nil
}

func (r *Reader) readIndex() error {
	stat, err := r.file.Stat()
	if err != nil {
		return kv.NewIoError("stat sstable file", err)
	}
	indexSize := stat.Size() - footerSize - int64(r.indexOffset)
	if indexSize < 0 {
		return kv.NewFormatError("sstable %s: index offset past end of file", r.path)
	}

	buf := make([]byte, indexSize)
	if _, err := r.file.ReadAt(buf, int64(r.indexOffset)); err != nil {
		return kv.NewIoError("read sstable index block", err)
	}

	pos := 0
	for pos < len(buf) {
		if pos+4 > len(buf) {
			return kv.NewFormatError("sstable %s: truncated index entry", r.path)
		}
		keySize := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		if pos+keySize+8 > len(buf) {
			return kv.NewFormatError("sstable %s: truncated index entry", r.path)
		}
		key := append([]byte(nil), buf[pos:pos+keySize]...)
		pos += keySize
		offset := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8
		r.index = append(r.index, sparseIndexEntry{key: key, offset: offset})
	}
	return nil
}

// NumEntries returns the number of data records in the table.
func (r *Reader) NumEntries() uint64 {
	return r.numEntries
}

// Get performs a point lookup: binary search the sparse index, then
// scan forward at most IndexInterval records (or until the data block
// ends). Returns (value, true) for a live entry, (nil, false) for a
// tombstone or a genuinely absent key.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	start := uint64(dataStart)
	idx := sort.Search(len(r.index), func(i int) bool {
		return compareBytes(r.index[i].key, key) > 0
	})
	if idx > 0 {
		start = r.index[idx-1].offset
	}

	br := bufio.NewReader(&sectionAt{file: r.file, pos: int64(start)})
	pos := start
	for i := 0; i < IndexInterval && pos < r.indexOffset; i++ {
		recKey, recValue, n, err := decodeRecord(br)
		if err != nil {
			return nil, false, err
		}
		pos += uint64(n)

		cmp := compareBytes(recKey, key)
		if cmp == 0 {
			if recValue.IsTombstone() {
				return nil, false, nil
			}
			return recValue.Bytes(), true, nil
		}
		if cmp > 0 {
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// Iter returns every (key, value-or-tombstone) pair in the table, in
// strictly increasing key order.
func (r *Reader) Iter() ([]Entry, error) {
	br := bufio.NewReader(&sectionAt{file: r.file, pos: dataStart})
	entries := make([]Entry, 0, r.numEntries)
	for i := uint64(0); i < r.numEntries; i++ {
		key, value, _, err := decodeRecord(br)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

// GetRange returns every entry with start <= key < end. A nil bound is
// open on that side.
func (r *Reader) GetRange(start, end []byte) ([]Entry, error) {
	all, err := r.Iter()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0)
	for _, e := range all {
		if start != nil && compareBytes(e.Key, start) < 0 {
			continue
		}
		if end != nil && compareBytes(e.Key, end) >= 0 {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the underlying file handle.
func (r *Reader) Close() error {
	if err := r.file.Close(); err != nil {
		return kv.NewIoError("close sstable file", err)
	}
	return nil
}

// Remove closes the file handle and deletes the SSTable from disk,
// for the enclosing engine to quarantine a file that failed checks.
func (r *Reader) Remove() error {
	r.file.Close()
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return kv.NewIoError("remove sstable file", err)
	}
	return nil
}

func compareBytes(a, b []byte) int {
	return bytes.Compare(a, b)
}

// decodeRecord reads one data record from br and reports how many
// bytes it consumed (for callers tracking a byte cursor).
func decodeRecord(br *bufio.Reader) ([]byte, kv.Value, int, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, kv.Value{}, 0, kv.NewFormatError("sstable: truncated data record: %v", err)
	}
	keySize := binary.LittleEndian.Uint32(header[0:4])
	valSize := binary.LittleEndian.Uint32(header[4:8])
	tombstone := valSize == tombstoneSentinel

	key := make([]byte, keySize)
	if _, err := io.ReadFull(br, key); err != nil {
		return nil, kv.Value{}, 0, kv.NewFormatError("sstable: truncated data record key: %v", err)
	}

	n := 8 + int(keySize)
	if tombstone {
		return key, kv.Tombstone(), n, nil
	}

	value := make([]byte, valSize)
	if _, err := io.ReadFull(br, value); err != nil {
		return nil, kv.Value{}, 0, kv.NewFormatError("sstable: truncated data record value: %v", err)
	}
	n += int(valSize)
	return key, kv.Live(value), n, nil
}

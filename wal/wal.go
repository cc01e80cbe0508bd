// Package wal implements the write-ahead log: a durable, append-only
// record of mutations that is applied to the memtable only after the
// record has reached stable storage.
//
// Record wire format, little-endian throughout:
//
//	offset   size  field
//	0        8     timestamp (u64 microseconds)
//	8        4     key_size (u32)
//	12       4     value_size (u32) — 0xFFFF_FFFF means tombstone
//	16       ks    key bytes
//	16+ks    vs    value bytes (absent for tombstone)
//	...      4     CRC32 (u32) over all preceding bytes of this record
package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devkarn/lsmkv/kv"
)

// tombstoneSentinel is the value_size field value that marks a
// deletion record. No value bytes follow it on the wire.
const tombstoneSentinel uint32 = 0xFFFF_FFFF

const headerSize = 8 + 4 + 4 // timestamp + key_size + value_size
const crcSize = 4

// Record is a single parsed WAL entry, as replayed from the log.
type Record struct {
	Timestamp uint64
	Key       []byte
	Value     kv.Value
}

// Options configures a WAL instance.
type Options struct {
	// SyncOnWrite requests an fsync after every Append, so a returned
	// Append implies the bytes reached stable storage.
	SyncOnWrite bool
}

// DefaultOptions returns the durable-by-default configuration.
func DefaultOptions() Options {
	return Options{SyncOnWrite: true}
}

// WAL is a single append-only log file. It assumes exclusive access by
// one goroutine at a time: there is no internal locking.
type WAL struct {
	file   *os.File
	path   string
	opts   Options
	log    *logrus.Entry
	closed bool
}

// Open creates or opens the log file at path for append, ready to
// accept Append calls and to be replayed from the beginning.
func Open(path string, opts Options) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kv.NewIoError("open wal file", err)
	}
	return &WAL{
		file: f,
		path: path,
		opts: opts,
		log:  logrus.WithField("component", "wal").WithField("path", path),
	}, nil
}

// Append stamps key/value with the current wall-clock microsecond
// timestamp, serializes it per the wire format, writes it, and — in
// durable-sync mode — fsyncs before returning. A returned error means
// the record must not be treated as durable.
func (w *WAL) Append(key []byte, value kv.Value) error {
	if w.closed {
		return kv.NewIoError("append", os.ErrClosed)
	}
	if len(key) == 0 {
		return kv.NewTypeError("wal: key must be a non-empty byte string")
	}

	valBytes := value.Bytes()
	valSize := uint32(tombstoneSentinel)
	if !value.IsTombstone() {
		valSize = uint32(len(valBytes))
	}

	recLen := headerSize + len(key) + len(valBytes)
	buf := make([]byte, recLen+crcSize)

	binary.LittleEndian.PutUint64(buf[0:8], uint64(time.Now().UnixMicro()))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[12:16], valSize)
	copy(buf[16:16+len(key)], key)
	if !value.IsTombstone() {
		copy(buf[16+len(key):recLen], valBytes)
	}

	crc := crc32.ChecksumIEEE(buf[:recLen])
	binary.LittleEndian.PutUint32(buf[recLen:recLen+crcSize], crc)

	if _, err := w.file.Write(buf); err != nil {
		return kv.NewIoError("write wal record", err)
	}

	if w.opts.SyncOnWrite {
		if err := w.file.Sync(); err != nil {
			return kv.NewIoError("sync wal file", err)
		}
	}
	return nil
}

// Replay reads the log from the beginning and invokes fn for each
// successfully parsed record, in order. It stops cleanly — without
// returning an error — the moment it encounters a short read, a CRC
// mismatch, or any other structural inconsistency: this is the defined
// recovery behavior for a torn tail record left by a crash mid-write.
// Only a failure to open the file for reading is surfaced as an error,
// apart from an error returned by fn, which stops replay and is
// returned unchanged.
func (w *WAL) Replay(fn func(Record) error) error {
	f, err := os.Open(w.path)
	if err != nil {
		return kv.NewIoError("open wal file for replay", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		header := make([]byte, headerSize)
		if _, err := io.ReadFull(r, header); err != nil {
			return nil
		}

		timestamp := binary.LittleEndian.Uint64(header[0:8])
		keySize := binary.LittleEndian.Uint32(header[8:12])
		valSize := binary.LittleEndian.Uint32(header[12:16])
		tombstone := valSize == tombstoneSentinel

		valLen := int(valSize)
		if tombstone {
			valLen = 0
		}

		body := make([]byte, int(keySize)+valLen)
		if _, err := io.ReadFull(r, body); err != nil {
			w.log.WithError(err).Debug("replay stopped: torn tail record")
			return nil
		}

		var crcBuf [crcSize]byte
		if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
			w.log.WithError(err).Debug("replay stopped: missing crc")
			return nil
		}
		storedCRC := binary.LittleEndian.Uint32(crcBuf[:])

		computed := crc32.NewIEEE()
		computed.Write(header)
		computed.Write(body)
		if computed.Sum32() != storedCRC {
			w.log.Debug("replay stopped: checksum mismatch")
			return nil
		}

		key := body[:keySize]
		rec := Record{Timestamp: timestamp, Key: key}
		if tombstone {
			rec.Value = kv.Tombstone()
		} else {
			rec.Value = kv.Live(body[keySize:])
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Truncate atomically reduces the file to zero bytes. A subsequent
// Replay sees no records. Truncating an empty log is a no-op.
func (w *WAL) Truncate() error {
	if err := w.file.Truncate(0); err != nil {
		return kv.NewIoError("truncate wal file", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return kv.NewIoError("seek wal file after truncate", err)
	}
	w.log.Debug("wal truncated")
	return nil
}

// Close closes the underlying file handle without deleting it. It
// does not fsync.
func (w *WAL) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return kv.NewIoError("close wal file", err)
	}
	return nil
}

// Remove closes the file handle and deletes the log file from disk.
func (w *WAL) Remove() error {
	if err := w.Close(); err != nil {
		return err
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return kv.NewIoError("remove wal file", err)
	}
	return nil
}

package sstable

import "os"

// sectionAt adapts os.File.ReadAt into a sequential io.Reader starting
// at a given byte offset, without disturbing the file's shared seek
// cursor — each lookup opens its own cursor over the same handle.
type sectionAt struct {
	file *os.File
	pos  int64
}

func (s *sectionAt) Read(p []byte) (int, error) {
	n, err := s.file.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// reader decodes big-endian class file primitives. The first failure sticks:
// later reads return zero values and err keeps the original cause.
type reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (rd *reader) fill(n int) []byte {
	if rd.err != nil {
		return nil
	}
	if _, err := io.ReadFull(rd.r, rd.buf[:n]); err != nil {
		rd.err = err
		return nil
	}
	return rd.buf[:n]
}

func (rd *reader) u1() uint8 {
	b := rd.fill(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (rd *reader) u2() uint16 {
	b := rd.fill(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (rd *reader) u4() uint32 {
	b := rd.fill(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (rd *reader) u8() uint64 {
	b := rd.fill(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (rd *reader) bytes(n int) []byte {
	if rd.err != nil {
		return nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(rd.r, out); err != nil {
		rd.err = err
		return nil
	}
	return out
}

// check wraps a pending read error with what was being read.
func (rd *reader) check(format string, args ...any) error {
	if rd.err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), rd.err)
}

// slice is the in-memory counterpart of reader used for attribute payloads.
type slice struct {
	data []byte
	off  int
}

func (s *slice) need(n int) error {
	if s.off+n > len(s.data) {
		return fmt.Errorf("need %d bytes at offset %d, have %d", n, s.off, len(s.data)-s.off)
	}
	return nil
}

func (s *slice) u2() (uint16, error) {
	if err := s.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(s.data[s.off:])
	s.off += 2
	return v, nil
}

func (s *slice) u4() (uint32, error) {
	if err := s.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(s.data[s.off:])
	s.off += 4
	return v, nil
}

func (s *slice) take(n int) ([]byte, error) {
	if err := s.need(n); err != nil {
		return nil, err
	}
	out := s.data[s.off : s.off+n]
	s.off += n
	return out, nil
}

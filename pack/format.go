// Package pack reads and writes the binary localization packs: the meta index shared
// by every language and one text pack per language.
//
// Integers are little-endian int32. Strings are prefixed with their UTF-8 byte length
// encoded 7 bits at a time (low group first, high bit set on every byte but the last),
// the layout produced by .NET's BinaryWriter, so packs written by existing build
// pipelines load unchanged.
package pack

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrDecode is returned for any malformed, truncated or inconsistent pack.
var ErrDecode = errors.New("pack: malformed data")

const (
	maxVarintBytes  = 5
	maxStringLength = 16 << 20
	maxPreallocate  = 4096
)

type decoder struct {
	ctx context.Context
	r   *bufio.Reader
}

func newDecoder(ctx context.Context, r io.Reader) *decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &decoder{ctx: ctx, r: br}
}

// step is polled between entries so a canceled load stops at the next boundary.
func (d *decoder) step() error {
	return d.ctx.Err()
}

func (d *decoder) int32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, decodeErr("int32", err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil //nolint:gosec // two's complement by definition
}

func (d *decoder) count(what string) (int, error) {
	n, err := d.int32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative %s %d", ErrDecode, what, n)
	}
	return int(n), nil
}

func (d *decoder) length() (int, error) {
	var value uint64
	for i := range maxVarintBytes {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, decodeErr("string length", err)
		}
		value |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if value > math.MaxInt32 {
				return 0, fmt.Errorf("%w: string length %d overflows int32", ErrDecode, value)
			}
			return int(value), nil
		}
	}
	return 0, fmt.Errorf("%w: string length prefix longer than %d bytes", ErrDecode, maxVarintBytes)
}

func (d *decoder) string() (string, error) {
	n, err := d.length()
	if err != nil {
		return "", err
	}
	if n > maxStringLength {
		return "", fmt.Errorf("%w: string of %d bytes exceeds limit", ErrDecode, n)
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err = io.ReadFull(d.r, buf); err != nil {
		return "", decodeErr("string", err)
	}
	return string(buf), nil
}

func decodeErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrDecode, what)
	}
	return fmt.Errorf("%w: reading %s: %w", ErrDecode, what, err)
}

func preallocate(n int) int {
	return min(n, maxPreallocate)
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{w: bufio.NewWriter(w)}
}

func (e *encoder) int32(v int) {
	if e.err != nil {
		return
	}
	if v < 0 || v > math.MaxInt32 {
		e.err = fmt.Errorf("pack: count %d out of int32 range", v)
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, e.err = e.w.Write(buf[:])
}

func (e *encoder) string(s string) {
	if e.err != nil {
		return
	}
	n := uint32(len(s)) //nolint:gosec // bounded by maxStringLength below
	if len(s) > maxStringLength {
		e.err = fmt.Errorf("pack: string of %d bytes exceeds limit", len(s))
		return
	}
	for n >= 0x80 {
		if e.err = e.w.WriteByte(byte(n) | 0x80); e.err != nil {
			return
		}
		n >>= 7
	}
	if e.err = e.w.WriteByte(byte(n)); e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *encoder) flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

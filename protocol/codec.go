package protocol

import (
	"encoding/binary"
	"math"
)

var byteOrder = binary.BigEndian

// writer appends big-endian payload fields.
type writer struct{ b []byte }

func (w *writer) u8(v uint8) { w.b = append(w.b, v) }
func (w *writer) u16(v uint16) {
	var buf [2]byte
	byteOrder.PutUint16(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) u32(v uint32) {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) u64(v uint64) {
	var buf [8]byte
	byteOrder.PutUint64(buf[:], v)
	w.b = append(w.b, buf[:]...)
}
func (w *writer) i16(v int16)   { w.u16(uint16(v)) }
func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *writer) bool8(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// str writes fixed-width text field: at most width-1 characters,
// NUL terminated, zero filled to width.
func (w *writer) str(s string, width int) {
	field := make([]byte, width)
	n := len(s)
	if n > width-1 {
		n = width - 1
	}
	copy(field, s[:n])
	w.b = append(w.b, field...)
}

// reader consumes big-endian payload fields.
// Reading past end yields zero values, caller validates length beforehand.
type reader struct {
	b   []byte
	pos int
}

func (r *reader) take(n int) []byte {
	if r.pos+n > len(r.b) {
		r.pos = len(r.b)
		return make([]byte, n)
	}
	x := r.b[r.pos : r.pos+n]
	r.pos += n
	return x
}

func (r *reader) u8() uint8    { return r.take(1)[0] }
func (r *reader) u16() uint16  { return byteOrder.Uint16(r.take(2)) }
func (r *reader) u32() uint32  { return byteOrder.Uint32(r.take(4)) }
func (r *reader) u64() uint64  { return byteOrder.Uint64(r.take(8)) }
func (r *reader) i16() int16   { return int16(r.u16()) }
func (r *reader) i32() int32   { return int32(r.u32()) }
func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }
func (r *reader) bool8() bool  { return r.u8() != 0 }
func (r *reader) str(width int) string {
	field := r.take(width)
	for i, c := range field {
		if c == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

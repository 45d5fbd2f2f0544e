package protocol

import (
	"bytes"
	"sync/atomic"

	"github.com/juju/errors"
)

// Parser extracts frames from byte stream, resynchronizing on garbage.
// Not safe for concurrent Feed, use one Parser per link reader.
type Parser struct {
	buf       []byte
	malformed uint64
	skipped   uint64
}

// Feed appends input and calls fn for every complete valid frame.
// Incomplete tail is kept for next Feed. Returns number of frames
// dropped as malformed during this call.
func (p *Parser) Feed(b []byte, fn func(Frame)) int {
	p.buf = append(p.buf, b...)
	dropped := 0
	for len(p.buf) > 0 {
		start := bytes.IndexByte(p.buf, Magic)
		if start < 0 {
			atomic.AddUint64(&p.skipped, uint64(len(p.buf)))
			p.buf = p.buf[:0]
			break
		}
		if start > 0 {
			atomic.AddUint64(&p.skipped, uint64(start))
			p.buf = p.buf[start:]
		}
		if len(p.buf) < FrameOverhead {
			break
		}
		if FrameOverhead+int(p.buf[1]) > len(p.buf) {
			break
		}
		f, n, err := ParseFrame(p.buf)
		if err != nil {
			// magic byte inside garbage or corrupted frame, resync after it
			dropped++
			atomic.AddUint64(&p.malformed, 1)
			p.buf = p.buf[1:]
			continue
		}
		p.buf = p.buf[n:]
		fn(f)
	}
	if len(p.buf) == 0 && cap(p.buf) > 4*FrameMaxLength {
		p.buf = nil
	}
	return dropped
}

// Pending is count of buffered bytes not yet forming complete frame.
func (p *Parser) Pending() int { return len(p.buf) }

func (p *Parser) Malformed() uint64 { return atomic.LoadUint64(&p.malformed) }
func (p *Parser) Skipped() uint64   { return atomic.LoadUint64(&p.skipped) }

// ParseDatagram parses buffer expected to hold only whole frames,
// e.g. one UDP datagram. Trailing partial frame is an error.
func ParseDatagram(b []byte, fn func(Frame)) error {
	for len(b) > 0 {
		f, n, err := ParseFrame(b)
		if err != nil {
			return errors.Annotatef(err, "datagram=%x", b)
		}
		fn(f)
		b = b[n:]
	}
	return nil
}

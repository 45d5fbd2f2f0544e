// Package protocol is telemetry wire format: frame envelope, checksum,
// message kinds and fixed-schema payloads.
//
// Frame layout:
//   0x55 | len | seq | sysid | compid | kind | payload[len] | ck_a | ck_b
// Checksum is CRC-16/MCRF4XX over len..payload, low byte first.
// Payload fields are big-endian in declaration order.
package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/crc"
)

const (
	Magic            byte = 0x55
	HeaderLength          = 6
	FrameOverhead         = HeaderLength + 2
	PayloadMaxLength      = 255
	FrameMaxLength        = FrameOverhead + PayloadMaxLength
)

// Frame is one decoded envelope, payload is not interpreted.
type Frame struct {
	Seq         uint8
	SystemID    uint8
	ComponentID uint8
	Kind        Kind
	Payload     []byte
}

// Wire returns frame bytes with magic and checksum.
func (f *Frame) Wire() []byte {
	plen := len(f.Payload)
	if plen > PayloadMaxLength {
		panic(fmt.Sprintf("code error protocol.Frame payload length=%d > max=%d", plen, PayloadMaxLength))
	}
	b := make([]byte, FrameOverhead+plen)
	b[0] = Magic
	b[1] = byte(plen)
	b[2] = f.Seq
	b[3] = f.SystemID
	b[4] = f.ComponentID
	b[5] = byte(f.Kind)
	copy(b[HeaderLength:], f.Payload)
	chk := crc.X25(b[1 : HeaderLength+plen])
	b[HeaderLength+plen] = byte(chk & 0xff)
	b[HeaderLength+plen+1] = byte(chk >> 8)
	return b
}

// ParseFrame reads exactly one frame from the beginning of b.
// Returns number of bytes consumed on success.
// errors.IsNotValid(err) means structural decode failure (Malformed).
func ParseFrame(b []byte) (Frame, int, error) {
	if len(b) == 0 {
		return Frame{}, 0, errors.NotValidf("frame empty")
	}
	if b[0] != Magic {
		return Frame{}, 0, errors.NotValidf("frame=%x magic=%02x", b, b[0])
	}
	if len(b) < FrameOverhead {
		return Frame{}, 0, errors.NotValidf("frame=%x length=%d < min=%d", b, len(b), FrameOverhead)
	}
	plen := int(b[1])
	total := FrameOverhead + plen
	if total > len(b) {
		return Frame{}, 0, errors.NotValidf("frame=%x claims payload=%d > buffer=%d", b, plen, len(b)-FrameOverhead)
	}
	chkLocal := crc.X25(b[1 : HeaderLength+plen])
	chkIn := uint16(b[HeaderLength+plen]) | uint16(b[HeaderLength+plen+1])<<8
	if chkIn != chkLocal {
		return Frame{}, 0, errors.NotValidf("frame=%x crc=%04x actual=%04x", b[:total], chkIn, chkLocal)
	}
	f := Frame{
		Seq:         b[2],
		SystemID:    b[3],
		ComponentID: b[4],
		Kind:        Kind(b[5]),
		Payload:     make([]byte, plen),
	}
	copy(f.Payload, b[HeaderLength:HeaderLength+plen])
	return f, total, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("seq=%d sys=%d comp=%d kind=%s payload=%s",
		f.Seq, f.SystemID, f.ComponentID, f.Kind.String(), FormatHex(f.Payload))
}

// FormatHex groups bytes by 4 for log readability.
func FormatHex(b []byte) string {
	h := hex.EncodeToString(b)
	hlen := len(h)
	ss := make([]string, 0, (hlen/8)+1)
	for i := 0; i < hlen; i += 8 {
		hi := i + 8
		if hi > hlen {
			hi = hlen
		}
		ss = append(ss, h[i:hi])
	}
	return strings.Join(ss, " ")
}

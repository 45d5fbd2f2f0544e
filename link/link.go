// Package link moves frame bytes over UDP, serial port or in-memory mock.
package link

import (
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
)

type Config struct {
	Name    string `hcl:"name,key"`
	Kind    string `hcl:"kind"`
	Disable bool   `hcl:"disable"`
	// udp
	Listen string `hcl:"listen"`
	Remote string `hcl:"remote"`
	// serial
	Device string `hcl:"device"`
	Baud   int    `hcl:"baud"`
}

const (
	KindUDP    = "udp"
	KindSerial = "serial"
	KindMock   = "mock"
)

// Handler receives link input. Frame is called for every valid frame,
// Malformed for every dropped frame or datagram.
type Handler struct {
	Frame     func(l Conn, f protocol.Frame)
	Malformed func(l Conn, err error)
}

func (h Handler) frame(l Conn, f protocol.Frame) {
	if h.Frame != nil {
		h.Frame(l, f)
	}
}

func (h Handler) malformed(l Conn, err error) {
	if h.Malformed != nil {
		h.Malformed(l, err)
	}
}

// Conn is bidirectional frame transport.
// Run blocks reading until alive is stopped or link fails.
type Conn interface {
	Name() string
	IsConnected() bool
	WriteBytes(b []byte) error
	Run(a *alive.Alive, h Handler) error
	Close() error
}

func Open(c Config, log *log2.Log) (Conn, error) {
	switch c.Kind {
	case KindUDP:
		u, err := OpenUDP(c, log)
		if err != nil {
			return nil, err
		}
		return u, nil
	case KindSerial:
		return OpenSerial(c, log)
	case KindMock:
		return NewMock(c.Name, true), nil
	}
	return nil, errors.NotSupportedf("link=%s kind=%s", c.Name, c.Kind)
}

// streamFeed parses byte stream chunk and reports frames and corruption.
func streamFeed(l Conn, p *protocol.Parser, b []byte, h Handler) {
	dropped := p.Feed(b, func(f protocol.Frame) { h.frame(l, f) })
	for i := 0; i < dropped; i++ {
		h.malformed(l, errors.NotValidf("link=%s stream frame", l.Name()))
	}
}

package link

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uasbridge/protocol"
)

// Mock is in-memory link for tests and dry runs.
// Bytes pushed with Inject are parsed as stream, writes are recorded.
type Mock struct {
	name string
	in   chan []byte

	mu        sync.Mutex
	connected bool
	writeErr  error
	written   [][]byte
}

func NewMock(name string, connected bool) *Mock {
	return &Mock{name: name, connected: connected, in: make(chan []byte, 16)}
}

func (self *Mock) Name() string { return self.name }

func (self *Mock) IsConnected() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.connected
}

func (self *Mock) SetConnected(c bool) {
	self.mu.Lock()
	self.connected = c
	self.mu.Unlock()
}

// SetWriteError makes following writes fail, nil restores.
func (self *Mock) SetWriteError(err error) {
	self.mu.Lock()
	self.writeErr = err
	self.mu.Unlock()
}

func (self *Mock) WriteBytes(b []byte) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if !self.connected {
		return errors.Errorf("link=%s not connected", self.name)
	}
	if self.writeErr != nil {
		return self.writeErr
	}
	self.written = append(self.written, append([]byte(nil), b...))
	return nil
}

// Written returns copy of recorded writes.
func (self *Mock) Written() [][]byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([][]byte(nil), self.written...)
}

// WrittenFrames parses recorded writes.
func (self *Mock) WrittenFrames() ([]protocol.Frame, error) {
	fs := make([]protocol.Frame, 0)
	for _, b := range self.Written() {
		if err := protocol.ParseDatagram(b, func(f protocol.Frame) { fs = append(fs, f) }); err != nil {
			return fs, err
		}
	}
	return fs, nil
}

func (self *Mock) Inject(b []byte) { self.in <- b }

func (self *Mock) Run(a *alive.Alive, h Handler) error {
	var p protocol.Parser
	for {
		select {
		case b, ok := <-self.in:
			if !ok {
				return nil
			}
			streamFeed(self, &p, b, h)
		case <-a.StopChan():
			return nil
		}
	}
}

func (self *Mock) Close() error {
	self.SetConnected(false)
	return nil
}

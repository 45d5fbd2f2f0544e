package link

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
)

// UDP listens on local address, one datagram holds whole frames.
// Remote peer is fixed by config or learned from last received datagram.
type UDP struct {
	name   string
	log    *log2.Log
	conn   *net.UDPConn
	closed uint32

	mu     sync.Mutex
	remote *net.UDPAddr
}

func OpenUDP(c Config, log *log2.Log) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", c.Listen)
	if err != nil {
		return nil, errors.Annotatef(err, "link=%s listen=%s", c.Name, c.Listen)
	}
	self := &UDP{name: c.Name, log: log}
	if c.Remote != "" {
		if self.remote, err = net.ResolveUDPAddr("udp", c.Remote); err != nil {
			return nil, errors.Annotatef(err, "link=%s remote=%s", c.Name, c.Remote)
		}
	}
	if self.conn, err = net.ListenUDP("udp", laddr); err != nil {
		return nil, errors.Annotatef(err, "link=%s listen=%s", c.Name, c.Listen)
	}
	log.Debugf("link=%s udp listen=%s", c.Name, self.conn.LocalAddr())
	return self, nil
}

func (self *UDP) Name() string { return self.name }

func (self *UDP) LocalAddr() net.Addr { return self.conn.LocalAddr() }

func (self *UDP) Remote() *net.UDPAddr {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.remote
}

func (self *UDP) IsConnected() bool {
	return atomic.LoadUint32(&self.closed) == 0 && self.Remote() != nil
}

func (self *UDP) WriteBytes(b []byte) error {
	remote := self.Remote()
	if remote == nil {
		return errors.Errorf("link=%s remote unknown", self.name)
	}
	_, err := self.conn.WriteToUDP(b, remote)
	return errors.Annotatef(err, "link=%s write", self.name)
}

func (self *UDP) Run(a *alive.Alive, h Handler) error {
	go func() {
		<-a.StopChan()
		self.Close()
	}()
	buf := make([]byte, 64<<10)
	for {
		n, from, err := self.conn.ReadFromUDP(buf)
		if err != nil {
			if atomic.LoadUint32(&self.closed) != 0 {
				return nil
			}
			return errors.Annotatef(err, "link=%s read", self.name)
		}
		self.mu.Lock()
		if self.remote == nil || !self.remote.IP.Equal(from.IP) || self.remote.Port != from.Port {
			self.log.Infof("link=%s remote=%s", self.name, from)
			self.remote = from
		}
		self.mu.Unlock()

		err = protocol.ParseDatagram(buf[:n], func(f protocol.Frame) { h.frame(self, f) })
		if err != nil {
			h.malformed(self, errors.Annotatef(err, "link=%s from=%s", self.name, from))
		}
	}
}

func (self *UDP) Close() error {
	if !atomic.CompareAndSwapUint32(&self.closed, 0, 1) {
		return nil
	}
	return self.conn.Close()
}

package link

import (
	"os"
	"sync/atomic"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
	"golang.org/x/sys/unix"
)

const defaultBaud = 57600

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// Serial is raw 8N1 tty, frames are resynchronized from byte stream.
type Serial struct {
	name   string
	log    *log2.Log
	f      *os.File
	closed uint32
}

func OpenSerial(c Config, log *log2.Log) (Conn, error) {
	baud := c.Baud
	if baud == 0 {
		baud = defaultBaud
	}
	speed, ok := baudRates[baud]
	if !ok {
		return nil, errors.NotSupportedf("link=%s baud=%d", c.Name, baud)
	}
	f, err := os.OpenFile(c.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_CLOEXEC, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "link=%s device=%s", c.Name, c.Device)
	}
	if err = setRaw(int(f.Fd()), speed); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "link=%s device=%s termios", c.Name, c.Device)
	}
	log.Debugf("link=%s serial device=%s baud=%d", c.Name, c.Device, baud)
	return &Serial{name: c.Name, log: log, f: f}, nil
}

func setRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETSF, t)
}

func (self *Serial) Name() string      { return self.name }
func (self *Serial) IsConnected() bool { return atomic.LoadUint32(&self.closed) == 0 }

func (self *Serial) WriteBytes(b []byte) error {
	return errors.Annotatef(helpers.WriteAll(self.f, b), "link=%s write", self.name)
}

func (self *Serial) Run(a *alive.Alive, h Handler) error {
	go func() {
		<-a.StopChan()
		self.Close()
	}()
	var p protocol.Parser
	buf := make([]byte, 4<<10)
	for {
		n, err := self.f.Read(buf)
		if n > 0 {
			streamFeed(self, &p, buf[:n], h)
		}
		if err != nil {
			if atomic.LoadUint32(&self.closed) != 0 {
				return nil
			}
			return errors.Annotatef(err, "link=%s read", self.name)
		}
	}
}

func (self *Serial) Close() error {
	if !atomic.CompareAndSwapUint32(&self.closed, 0, 1) {
		return nil
	}
	return self.f.Close()
}

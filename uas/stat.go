package uas

import "github.com/temoto/uasbridge/protocol"

// Stats receives counters for monitoring. All methods must be concurrent safe.
type Stats interface {
	Frame(kind protocol.Kind)
	Malformed()
	Unknown(kind protocol.Kind)
	FanoutFailure(link string)
}

type NoopStats struct{}

func (NoopStats) Frame(protocol.Kind)   {}
func (NoopStats) Malformed()            {}
func (NoopStats) Unknown(protocol.Kind) {}
func (NoopStats) FanoutFailure(string)  {}

// seqCounter tracks sequence gaps of one sender on one link.
type seqCounter struct {
	last     uint8
	started  bool
	received uint64
	lost     uint64
}

func (self *seqCounter) observe(seq uint8) {
	if self.started {
		// uint8 arithmetic handles wrap
		self.lost += uint64(seq - self.last - 1)
	}
	self.started = true
	self.last = seq
	self.received++
}

// dropCounter aggregates receive drop rate over all links of a vehicle.
type dropCounter struct {
	links map[Link]*seqCounter
}

func (self *dropCounter) observe(l Link, seq uint8) {
	if self.links == nil {
		self.links = make(map[Link]*seqCounter, 2)
	}
	c, ok := self.links[l]
	if !ok {
		c = &seqCounter{}
		self.links[l] = c
	}
	c.observe(seq)
}

func (self *dropCounter) forget(l Link) { delete(self.links, l) }

// Rate is lost frames percent of expected.
func (self *dropCounter) Rate() float64 {
	var received, lost uint64
	for _, c := range self.links {
		received += c.received
		lost += c.lost
	}
	return percent(lost, received+lost)
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	r := 100 * float64(part) / float64(total)
	if r > 100 {
		r = 100
	}
	return r
}

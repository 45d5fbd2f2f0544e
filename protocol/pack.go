package protocol

import "sync/atomic"

// Packer builds outbound frames on behalf of ground station identity.
// Sequence number wraps at 256 and is shared by all frames from this packer.
type Packer struct {
	SystemID    uint8
	ComponentID uint8
	seq         uint32
}

func NewPacker(systemID, componentID uint8) *Packer {
	return &Packer{SystemID: systemID, ComponentID: componentID}
}

func (p *Packer) Pack(m Message) Frame {
	seq := atomic.AddUint32(&p.seq, 1) - 1
	return Frame{
		Seq:         uint8(seq),
		SystemID:    p.SystemID,
		ComponentID: p.ComponentID,
		Kind:        m.Kind(),
		Payload:     Payload(m),
	}
}

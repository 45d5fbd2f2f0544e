package uas

import (
	"fmt"

	"github.com/temoto/uasbridge/protocol"
)

// UnknownMessageTracker remembers undecodable kinds for session lifetime.
type UnknownMessageTracker struct {
	seen map[protocol.Kind]struct{}
}

// Observe returns true on first occurrence of kind.
func (self *UnknownMessageTracker) Observe(kind protocol.Kind) bool {
	if self.seen == nil {
		self.seen = make(map[protocol.Kind]struct{}, 4)
	}
	if _, ok := self.seen[kind]; ok {
		return false
	}
	self.seen[kind] = struct{}{}
	return true
}

func (self *UnknownMessageTracker) Len() int { return len(self.seen) }

func unknownText(kind protocol.Kind, sysid uint8) string {
	return fmt.Sprintf("UNABLE TO DECODE MESSAGE WITH ID %d FROM SYSTEM %d", uint8(kind), sysid)
}

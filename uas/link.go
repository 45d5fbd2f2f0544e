package uas

import (
	"fmt"
	"sync"

	"github.com/temoto/uasbridge/helpers"
)

// Link is transport collaborator, medium is not known here.
// Implementations must be comparable (pointer types) to serve as set keys.
type Link interface {
	Name() string
	IsConnected() bool
	WriteBytes(b []byte) error
}

// LinkError is per-link send failure, never aborts fan-out.
type LinkError struct {
	Link string
	Err  error
}

func (e *LinkError) Error() string { return fmt.Sprintf("link=%s err=%v", e.Link, e.Err) }
func (e *LinkError) Cause() error  { return e.Err }

// linkSet is insertion ordered, owned by Vehicle.
type linkSet struct {
	mu    sync.Mutex
	list  []Link
	index map[Link]struct{}
}

// add returns true if link was not in set.
func (self *linkSet) add(l Link) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.index == nil {
		self.index = make(map[Link]struct{}, 2)
	}
	if _, ok := self.index[l]; ok {
		return false
	}
	self.index[l] = struct{}{}
	self.list = append(self.list, l)
	return true
}

func (self *linkSet) remove(l Link) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if _, ok := self.index[l]; !ok {
		return false
	}
	delete(self.index, l)
	for i, x := range self.list {
		if x == l {
			self.list = append(self.list[:i:i], self.list[i+1:]...)
			break
		}
	}
	return true
}

func (self *linkSet) snapshot() []Link {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.list[:len(self.list):len(self.list)]
}

// FanoutReport describes delivery of one frame.
type FanoutReport struct {
	Sent         int
	Disconnected int
	Failed       []*LinkError
}

// Err folds per-link failures, nil if none.
func (r FanoutReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, e := range r.Failed {
		errs[i] = e
	}
	return helpers.FoldErrors(errs)
}

// fanout writes wire bytes to every connected link, at most once each.
func fanout(links []Link, wire []byte, stats Stats) FanoutReport {
	var r FanoutReport
	for _, l := range links {
		if !l.IsConnected() {
			r.Disconnected++
			continue
		}
		if err := l.WriteBytes(wire); err != nil {
			r.Failed = append(r.Failed, &LinkError{Link: l.Name(), Err: err})
			stats.FanoutFailure(l.Name())
			continue
		}
		r.Sent++
	}
	return r
}

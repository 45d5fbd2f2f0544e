package state

import (
	"sync"

	"github.com/temoto/uasbridge/log2"
)

// LogAlarm is AlarmSink for headless station: utterances and siren go to log.
type LogAlarm struct {
	Log *log2.Log

	mu    sync.Mutex
	label string
}

func (self *LogAlarm) Say(text string) { self.Log.Infof("say: %s", text) }

func (self *LogAlarm) StartEmergency(label string) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.label == label {
		return
	}
	self.label = label
	self.Log.Errorf("EMERGENCY %s", label)
}

func (self *LogAlarm) StopEmergency() {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.label == "" {
		return
	}
	self.Log.Infof("emergency %s cleared", self.label)
	self.label = ""
}

// Emergency returns active label, empty if none.
func (self *LogAlarm) Emergency() string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.label
}

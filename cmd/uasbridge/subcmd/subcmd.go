// Package subcmd selects uasbridge mode by first command line argument
// and talks to systemd service manager.
package subcmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/state"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(context.Context, *state.Config) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, errors.NotValidf("empty command")
	}
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			return m, nil
		}
	}
	return nil, errors.NotFoundf("command=%s", command)
}

func PrintUsage(w io.Writer, modules []Mod) {
	width := 0
	for _, m := range modules {
		if len(m.Name) > width {
			width = len(m.Name)
		}
	}
	for _, m := range modules {
		fmt.Fprintf(w, "  %-*s  %s\n", width, m.Name, m.Usage)
	}
}

// notify is replaced in tests.
var notify = daemon.SdNotify

// SdNotify reports true when running under systemd with notify socket.
// Failure to notify is logged, service keeps running.
func SdNotify(log *log2.Log, s string) bool {
	ok, err := notify(false, s)
	if err != nil {
		log.Errorf("sdnotify state=%s err=%v", s, err)
		return false
	}
	return ok
}

// Watchdog pings systemd at half of WatchdogSec until stop is closed.
// Returns immediately when watchdog is not configured for this unit.
func Watchdog(log *log2.Log, stop <-chan struct{}) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Errorf("sdnotify watchdog err=%v", err)
		return
	}
	if interval <= 0 {
		return
	}
	watchdogLoop(log, interval/2, stop)
}

func watchdogLoop(log *log2.Log, period time.Duration, stop <-chan struct{}) {
	tmr := time.NewTicker(period)
	defer tmr.Stop()
	for {
		select {
		case <-tmr.C:
			SdNotify(log, daemon.SdNotifyWatchdog)
		case <-stop:
			return
		}
	}
}

package subcmd

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/state"
)

var testModules = []Mod{
	{Name: "bridge", Usage: "headless daemon", Main: noopMain},
	{Name: "console", Usage: "operator prompt", Main: noopMain},
	{Name: "version", Main: noopMain},
}

func noopMain(context.Context, *state.Config) error { return nil }

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect string
		check  func(error) bool
	}{
		{"console", "console", nil},
		{"version", "version", nil},
		{"", "", errors.IsNotValid},
		{"fly", "", errors.IsNotFound},
		{"Bridge", "", errors.IsNotFound},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("input=%q", c.input), func(t *testing.T) {
			t.Parallel()
			m, err := Parse(c.input, testModules)
			if c.check != nil {
				require.Error(t, err)
				assert.True(t, c.check(err), err.Error())
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, m.Name)
		})
	}
}

func TestParseUnnamedPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{Main: noopMain}}) })
}

func TestPrintUsage(t *testing.T) {
	t.Parallel()
	buf := bytes.NewBuffer(nil)
	PrintUsage(buf, testModules)
	assert.Equal(t, "  bridge   headless daemon\n  console  operator prompt\n  version  \n", buf.String())
}

// notify is package state, so these run sequentially.
func TestSdNotify(t *testing.T) {
	saved := notify
	defer func() { notify = saved }()

	var mu sync.Mutex
	var states []string
	notify = func(_ bool, s string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
		if s == "bad" {
			return true, errors.New("socket gone")
		}
		return true, nil
	}

	var logged []string
	log := log2.NewFunc(func(format string, args ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}, log2.LDebug)
	log.SetFlags(0)

	assert.True(t, SdNotify(log, daemon.SdNotifyReady))
	assert.False(t, SdNotify(log, "bad"), "error must not report systemd presence")
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "sdnotify state=bad err=socket gone")

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		watchdogLoop(log, time.Millisecond, stop)
		close(done)
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 4
	}, 5*time.Second, time.Millisecond)
	close(stop)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{daemon.SdNotifyReady, "bad"}, states[:2])
	for _, s := range states[2:] {
		assert.Equal(t, daemon.SdNotifyWatchdog, s)
	}
}

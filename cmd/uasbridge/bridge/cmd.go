// Package bridge is headless ground station daemon:
// links feed vehicle models, events go to tele, metrics served over HTTP.
package bridge

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/cmd/uasbridge/subcmd"
	"github.com/temoto/uasbridge/metrics"
	"github.com/temoto/uasbridge/state"
)

var Mod = subcmd.Mod{Name: "bridge", Usage: "headless ground station daemon", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.Alarm = &state.LogAlarm{Log: g.Log}
	if err := g.Init(ctx, config); err != nil {
		return errors.Annotate(err, "bridge init")
	}
	g.Log.Debugf("config=%+v", g.Config)

	if listen := g.Config.Metrics.Listen; listen != "" {
		srv := &http.Server{Addr: listen, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				g.Error(err, "metrics listen=%s", listen)
			}
		}()
		defer srv.Close()
	}

	g.RunLinks()
	subcmd.SdNotify(g.Log, daemon.SdNotifyReady)
	go subcmd.Watchdog(g.Log, g.Alive.StopChan())
	g.Log.Infof("bridge running links=%d vehicles=%d", len(g.Links()), len(g.Manager.List()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		g.Log.Infof("signal=%s stopping", sig)
	case <-g.Alive.StopChan():
	}
	subcmd.SdNotify(g.Log, daemon.SdNotifyStopping)
	g.Stop()
	return nil
}

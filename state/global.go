package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/link"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/metrics"
	"github.com/temoto/uasbridge/protocol"
	"github.com/temoto/uasbridge/tele"
	"github.com/temoto/uasbridge/uas"
)

type Global struct {
	Alive   *alive.Alive
	Config  *Config
	Log     *log2.Log
	Manager *uas.Manager
	Tele    tele.Teler
	// set before Init, nil = NoopAlarm
	Alarm uas.AlarmSink
	// set before Init, nil = destructive actions refused
	Confirm uas.ConfirmGate

	lk    sync.Mutex
	links []link.Conn
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log, teler tele.Teler) (context.Context, *Global) {
	if log == nil {
		panic("code error state.NewContext() log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	if cfg.LogDebug {
		g.Log.SetLevel(log2.LDebug)
	}
	if g.Tele == nil {
		g.Tele = tele.Noop{}
	}

	uasConfig := g.Config.UAS()
	if _, err := uas.NewBatteryEstimator(uasConfig.Battery, time.Now()); err != nil {
		return errors.Annotate(err, "config")
	}

	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = "./tmp-uasbridge-db"
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	if g.Config.Tele.PersistPath == "" {
		g.Config.Tele.PersistPath = filepath.Join(g.Config.Persist.Root, "tele")
	}
	if err := g.Tele.Init(ctx, g.Log.Clone(log2.LInfo), g.Config.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}
	// vehicle loggers clone hook from here
	g.Log.SetErrorFunc(g.Tele.Error)

	metrics.Register()
	g.Manager = uas.NewManager(uas.Env{
		Config:  uasConfig,
		Log:     g.Log,
		Alarm:   g.Alarm,
		Confirm: g.Confirm,
		Stats:   metrics.NewStats(),
	})
	g.Manager.Subscribe(g.Tele)

	errs := make([]error, 0)
	if err := g.Manager.RegisterConfigured(); err != nil {
		errs = append(errs, err)
	}
	for _, lc := range g.Config.Links {
		if lc.Disable {
			g.Log.Debugf("config: link=%s disabled", lc.Name)
			continue
		}
		l, err := link.Open(lc, g.Log)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "config: link=%s", lc.Name))
			continue
		}
		g.lk.Lock()
		g.links = append(g.links, l)
		g.lk.Unlock()
	}
	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) Links() []link.Conn {
	g.lk.Lock()
	defer g.lk.Unlock()
	return append([]link.Conn(nil), g.links...)
}

// LinkByName is nil if not configured.
func (g *Global) LinkByName(name string) link.Conn {
	for _, l := range g.Links() {
		if l.Name() == name {
			return l
		}
	}
	return nil
}

// RunLinks starts receive loop per link, frames go to Manager.
// Loops end with Alive.Stop.
func (g *Global) RunLinks() {
	stats := g.Manager.Stats()
	h := link.Handler{
		Frame: func(l link.Conn, f protocol.Frame) {
			if err := g.Manager.Receive(l, f); err != nil {
				g.Log.Debugf("link=%s %v", l.Name(), err)
			}
		},
		Malformed: func(l link.Conn, err error) {
			stats.Malformed()
			g.Log.Debugf("link=%s %v", l.Name(), err)
		},
	}
	for _, l := range g.Links() {
		if !g.Alive.Add(1) {
			return
		}
		go func(l link.Conn) {
			defer g.Alive.Done()
			g.Log.Infof("link=%s running", l.Name())
			if err := l.Run(g.Alive, h); err != nil {
				g.Error(err, "link=%s", l.Name())
			}
			g.Manager.RemoveLink(l)
			g.Log.Infof("link=%s stopped", l.Name())
		}(l)
	}
}

// Stop ends link loops, waits for them and flushes tele state.
func (g *Global) Stop() {
	g.Tele.State(tele.StateStopping)
	g.Alive.Stop()
	for _, l := range g.Links() {
		if err := l.Close(); err != nil {
			g.Log.Errorf("link=%s close err=%v", l.Name(), err)
		}
	}
	g.Alive.Wait()
	g.Tele.Close()
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(errors.ErrorStack(err))
	}
}

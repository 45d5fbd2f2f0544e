// Package console is interactive operator console.
// Commands address vehicles by system id, destructive actions ask confirmation.
package console

import (
	"context"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/cmd/uasbridge/subcmd"
	"github.com/temoto/uasbridge/helpers/cli"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
	"github.com/temoto/uasbridge/state"
	"github.com/temoto/uasbridge/uas"
)

const modName = "console"

var Mod = subcmd.Mod{Name: modName, Usage: "interactive operator console", Main: Main}

const usage = `commands:
- list                          vehicles and state
- mode ID NAME                  LOCKED MANUAL GUIDED AUTO TEST1..3
- action ID NAME                HOLD LAUNCH RETURN HALT ... EMCY_KILL SHUTDOWN
- param ID COMP NAME VALUE      set onboard parameter
- params ID                     request all parameters
- stream ID COMP KIND HZ on|off request telemetry stream
- data ID on|off                all telemetry streams
- raw ID on|off                 raw sensor streams
- manual ID ROLL PITCH YAW THR  manual control vector, -1..1, thrust 0..1
- log=yes|no                    debug logging
`

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.Alarm = &state.LogAlarm{Log: g.Log}
	g.Confirm = cli.NewConfirmer()
	if err := g.Init(ctx, config); err != nil {
		return errors.Annotate(err, "console init")
	}
	g.RunLinks()
	g.Log.Infof(usage)

	cli.MainLoop(modName, newExecutor(ctx), newCompleter(), g.Stop)
	g.Stop()
	return nil
}

var commandSuggests = []prompt.Suggest{
	{Text: "list", Description: "vehicles and state"},
	{Text: "mode", Description: "ID NAME"},
	{Text: "action", Description: "ID NAME"},
	{Text: "param", Description: "ID COMP NAME VALUE"},
	{Text: "params", Description: "ID"},
	{Text: "stream", Description: "ID COMP KIND HZ on|off"},
	{Text: "data", Description: "ID on|off"},
	{Text: "raw", Description: "ID on|off"},
	{Text: "manual", Description: "ID ROLL PITCH YAW THRUST"},
	{Text: "log=yes"},
	{Text: "log=no"},
	{Text: "help"},
}

func newCompleter() func(d prompt.Document) []prompt.Suggest {
	return func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), " ") {
			return nil
		}
		return prompt.FilterHasPrefix(commandSuggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	return func(line string) {
		if err := Execute(ctx, line); err != nil {
			g.Log.Error(errors.ErrorStack(err))
		}
	}
}

// Execute runs one console command line.
func Execute(ctx context.Context, line string) error {
	g := state.GetGlobal(ctx)
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(words[0]), words[1:]
	switch cmd {
	case "help", "?":
		g.Log.Infof(usage)
		return nil
	case "log=yes":
		g.Log.SetLevel(log2.LDebug)
		return nil
	case "log=no":
		g.Log.SetLevel(log2.LInfo)
		return nil
	case "list":
		for _, v := range g.Manager.List() {
			s := v.State()
			g.Log.Infof("%s mode=%s status=%s voltage=%.2f remaining=%s links=%d uptime=%s",
				v.Name(), s.Mode.String(), s.Status.String(), s.Battery.FilteredVoltage, s.Battery.Remaining(), len(v.Links()), v.Uptime())
		}
		return nil
	}

	if len(args) == 0 {
		return errors.NotValidf("command=%s without vehicle id", cmd)
	}
	v, err := vehicle(g, args[0])
	if err != nil {
		return err
	}
	args = args[1:]
	var r uas.FanoutReport
	switch cmd {
	case "mode":
		if err = needArgs(cmd, args, 1); err != nil {
			return err
		}
		mode, err := parseMode(args[0])
		if err != nil {
			return err
		}
		r, err = v.SetMode(mode)
		if err != nil {
			return err
		}

	case "action":
		if err = needArgs(cmd, args, 1); err != nil {
			return err
		}
		action, err := parseAction(args[0])
		if err != nil {
			return err
		}
		r, err = v.Command(ctx, action)
		if err != nil {
			return err
		}

	case "param":
		if err = needArgs(cmd, args, 3); err != nil {
			return err
		}
		comp, err := parseUint8(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(args[2], 32)
		if err != nil {
			return errors.NotValidf("value=%s", args[2])
		}
		r, err = v.SetParameter(comp, args[1], float32(value))
		if err != nil {
			return err
		}

	case "params":
		r, err = v.RequestParameters()
		if err != nil {
			return err
		}

	case "stream":
		if err = needArgs(cmd, args, 4); err != nil {
			return err
		}
		comp, err := parseUint8(args[0])
		if err != nil {
			return err
		}
		kind, err := parseUint8(args[1])
		if err != nil {
			return err
		}
		hz, err := strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return errors.NotValidf("hz=%s", args[2])
		}
		on, err := parseSwitch(args[3])
		if err != nil {
			return err
		}
		r, err = v.RequestStream(comp, protocol.Kind(kind), uint16(hz), on)
		if err != nil {
			return err
		}

	case "data", "raw":
		if err = needArgs(cmd, args, 1); err != nil {
			return err
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		if cmd == "data" {
			r, err = v.EnableAllData(on)
		} else {
			r, err = v.EnableRawSensorData(on)
		}
		if err != nil {
			return err
		}

	case "manual":
		if err = needArgs(cmd, args, 4); err != nil {
			return err
		}
		var xs [4]float64
		for i := range xs {
			if xs[i], err = strconv.ParseFloat(args[i], 64); err != nil {
				return errors.NotValidf("manual[%d]=%s", i, args[i])
			}
		}
		sent, err := v.ManualControl(xs[0], xs[1], xs[2], xs[3])
		if err != nil {
			return err
		}
		g.Log.Debugf("%s manual sent=%t", v.Name(), sent)
		return nil

	default:
		return errors.NotSupportedf("command=%s", cmd)
	}
	g.Log.Debugf("%s %s sent=%d disconnected=%d", v.Name(), cmd, r.Sent, r.Disconnected)
	return r.Err()
}

func needArgs(cmd string, args []string, n int) error {
	if len(args) < n {
		return errors.NotValidf("command=%s expected args=%d", cmd, n)
	}
	return nil
}

func vehicle(g *state.Global, s string) (*uas.Vehicle, error) {
	id, err := parseUint8(s)
	if err != nil {
		return nil, err
	}
	v, ok := g.Manager.Get(id)
	if !ok {
		return nil, errors.NotFoundf("uas=%d", id)
	}
	return v, nil
}

func parseUint8(s string) (uint8, error) {
	x, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, errors.NotValidf("number=%s", s)
	}
	return uint8(x), nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "1", "start":
		return true, nil
	case "off", "no", "0", "stop":
		return false, nil
	}
	return false, errors.NotValidf("switch=%s", s)
}

func parseMode(s string) (protocol.Mode, error) {
	s = strings.ToUpper(s)
	for m := protocol.ModeUninit; m <= protocol.ModeReady; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errors.NotValidf("mode=%s", s)
}

func parseAction(s string) (protocol.Action, error) {
	s = strings.ToUpper(s)
	for a := protocol.ActionHold; a <= protocol.ActionShutdown; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, errors.NotValidf("action=%s", s)
}


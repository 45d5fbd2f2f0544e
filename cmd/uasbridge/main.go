package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/cmd/uasbridge/bridge"
	"github.com/temoto/uasbridge/cmd/uasbridge/console"
	"github.com/temoto/uasbridge/cmd/uasbridge/subcmd"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/state"
	"github.com/temoto/uasbridge/tele"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	bridge.Mod,
	console.Mod,
	{Name: "version", Usage: "print build version", Main: versionMain},
}

var BuildVersion string = "unknown" // set by ldflags -X

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagConfig := cmdline.String("config", "uasbridge.hcl", "")
	cmdline.Usage = func() {
		fmt.Fprintf(cmdline.Output(), "Usage: %s [option] command\n\nOptions:\n", os.Args[0])
		cmdline.PrintDefaults()
		fmt.Fprintf(cmdline.Output(), "\nCommands:\n")
		subcmd.PrintUsage(cmdline.Output(), modules)
	}
	if err := cmdline.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	mod, err := subcmd.Parse(cmdline.Arg(0), modules)
	if err != nil {
		cmdline.Usage()
		log.Fatal(err)
	}

	log.SetFlags(log2.LInteractiveFlags)
	if subcmd.SdNotify(log, "start") {
		// under systemd journal, timestamp is redundant
		log.SetFlags(log2.LServiceFlags)
	}
	log.Debugf("uasbridge version=%s starting %s", BuildVersion, mod.Name)

	config := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	ctx, _ := state.NewContext(log, tele.New())
	if err := mod.Main(ctx, config); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func versionMain(ctx context.Context, config *state.Config) error {
	fmt.Printf("uasbridge %s\n", BuildVersion)
	return nil
}

// Package cli is interactive operator console plumbing.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
	"github.com/temoto/uasbridge/protocol"
)

func IsTerminal() bool { return isatty.IsTerminal(os.Stdin.Fd()) }

// MainLoop runs exec for each line: interactive prompt on terminal,
// otherwise script from stdin. onSignal is called once on termination signal.
func MainLoop(tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest, onSignal func()) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-signalCh
		if onSignal != nil {
			onSignal()
		}
		os.Exit(1)
	}()

	if IsTerminal() {
		prompt.New(exec, complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	RunScript(os.Stdin, exec)
}

// RunScript executes non-empty lines, # starts comment line.
func RunScript(r io.Reader, exec func(line string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exec(line)
	}
}

// Confirmer implements operator confirmation of destructive actions.
// Nil Ask refuses everything, e.g. when stdin is not a terminal.
type Confirmer struct {
	Ask func(question string) string
}

func NewConfirmer() *Confirmer {
	if !IsTerminal() {
		return &Confirmer{}
	}
	return &Confirmer{Ask: func(question string) string {
		return prompt.Input(question, func(prompt.Document) []prompt.Suggest { return nil })
	}}
}

func (self *Confirmer) Confirm(ctx context.Context, uasID uint8, action protocol.Action) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if self.Ask == nil {
		return false, nil
	}
	answer := self.Ask(fmt.Sprintf("uas=%d %s: type yes to confirm> ", uasID, action.String()))
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}

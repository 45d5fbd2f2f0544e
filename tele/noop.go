package tele

import (
	"context"

	"github.com/temoto/uasbridge/log2"
	tele_config "github.com/temoto/uasbridge/tele/config"
	"github.com/temoto/uasbridge/uas"
)

type Noop struct{}

var _ Teler = Noop{} // compile-time interface test

func (Noop) Init(context.Context, *log2.Log, tele_config.Config) error { return nil }
func (Noop) Close()                                                    {}
func (Noop) State(State)                                               {}
func (Noop) OnEvent(uas.Event)                                         {}
func (Noop) Error(error)                                               {}

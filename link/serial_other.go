//go:build !linux
// +build !linux

package link

import (
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/log2"
)

func OpenSerial(c Config, log *log2.Log) (Conn, error) {
	return nil, errors.NotSupportedf("link=%s serial on this platform", c.Name)
}

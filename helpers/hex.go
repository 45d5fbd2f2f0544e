package helpers

import (
	"encoding/hex"
	"strings"
)

// MustHex decodes hex dump, whitespace between bytes is allowed: "55 03 00".
func MustHex(s string) []byte {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		panic(err)
	}
	return b
}

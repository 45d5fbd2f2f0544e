package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestX25Check(t *testing.T) {
	t.Parallel()
	// CRC-16/MCRF4XX check value
	assert.Equal(t, uint16(0x6f91), X25([]byte("123456789")))
	assert.Equal(t, X25Init, X25(nil))
}

func TestX25Reference(t *testing.T) {
	t.Parallel()
	for crc := 0; crc <= 0xffff; crc += 257 {
		for b := 0; b <= 0xff; b++ {
			expect := X25NextReference(uint16(crc), byte(b))
			actual := X25Next(uint16(crc), byte(b))
			if actual != expect {
				t.Fatalf("X25Next(%04x, %02x)=%04x reference=%04x", crc, b, actual, expect)
			}
		}
	}
}

// Package crc implements CRC-16/MCRF4XX (X.25 polynomial, reflected, init 0xffff)
// used by telemetry frame checksum.
package crc

const (
	X25Init  uint16 = 0xffff
	x25PolyR uint16 = 0x8408
)

// X25Next accumulates one byte, byte-wise form.
func X25Next(crc uint16, data byte) uint16 {
	tmp := data ^ byte(crc&0xff)
	tmp ^= tmp << 4
	t16 := uint16(tmp)
	return (crc >> 8) ^ (t16 << 8) ^ (t16 << 3) ^ (t16 >> 4)
}

func X25N(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = X25Next(crc, b)
	}
	return crc
}

// X25 is checksum of data from initial value.
func X25(data []byte) uint16 { return X25N(X25Init, data) }

// X25NextReference is bit-wise form, slow, kept to verify X25Next.
func X25NextReference(crc uint16, data byte) uint16 {
	crc ^= uint16(data)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ x25PolyR
		} else {
			crc >>= 1
		}
	}
	return crc
}

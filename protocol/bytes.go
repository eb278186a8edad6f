package protocol

import (
	"encoding/binary"
	"math"
)

// decodeFloat32 reads one little-endian IEEE-754 single float starting at
// buf[0], mirroring the reference VM's float32FromBytes helper.
func decodeFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

// encodeFloat32 writes f as a little-endian IEEE-754 single float starting
// at buf[0], mirroring the reference VM's float32ToBytes helper.
func encodeFloat32(f float32, buf []byte) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
}

// align4 rounds n up to the next multiple of 4.
func align4(n int) int {
	return (n + 3) &^ 3
}

// upperBound returns the smallest index i in [0, n) for which pred(i) is
// true, or n if no such index exists. This is the same binary search the
// reference implementation uses for both Lut row selection and Path
// segment selection.
func upperBound(n int, pred func(i int) bool) int {
	base, count := 0, n
	for count > 0 {
		h := count / 2
		if pred(base + h) {
			count = h
		} else {
			if h == 0 {
				break
			}
			base += h
			count -= h
		}
	}
	return base + count
}

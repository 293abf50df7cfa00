/*
Package bitint provides the power-of-2 helpers used to size FFT analysis
windows. All functions are O(1), allocation free and safe to call from the
analysis hot path.

	windowSize := bitint.NextPowerOfTwo(500) // 512
	ok := bitint.IsPowerOfTwo(windowSize)    // true

NextPowerOfTwo works on size-1 so that exact powers of 2 are preserved:
for 8, bits.Len(7) is 3 and 1<<3 is 8 again, while bits.Len(8) would give 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Zero and negative
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of 2 have
// exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of 2, or -1 when n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}

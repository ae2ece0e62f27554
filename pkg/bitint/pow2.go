// SPDX-License-Identifier: MIT

/*
Package bitint holds the power-of-2 helpers used to validate analyser
resolutions. An analyser's fft size is always a power of 2, and its
frequency bin count is half of it.

Usage:

	// Reject an fft size the analyser cannot use
	if !bitint.IsPowerOfTwo(fftSize) { ... }

	// Suggest the closest usable size in an error message
	hint := bitint.NextPowerOfTwo(1000) // 1024

NextPowerOfTwo subtracts one before measuring the bit length so that an
exact power of 2 is returned unchanged:

	size=8:  bits.Len(7) = 3, 1<<3 = 8
	size=9:  bits.Len(8) = 4, 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// Zero and negative sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	1000   1024
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// A power of 2 has exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Package bitops holds the handful of bit-arithmetic primitives the
// field codec is built on: masks, width-fit tests, and ceiling division.
package bitops

// Mask returns a contiguous bit mask of len bits starting at bit start,
// within a word of the given width. It reports ok=false (mask=0) if
// len is zero, len exceeds width, start is out of range, or the span
// runs past the top of the word.
func Mask(start, length, width int) (mask uint64, ok bool) {
	if length == 0 || length > width || start < 0 || start >= width || start+length > width {
		return 0, false
	}
	if length == width {
		// 1<<64 is undefined; the full-width mask is all ones.
		return ^uint64(0) >> (64 - width), true
	}
	return ((uint64(1) << uint(length)) - 1) << uint(start), true
}

// Fits reports whether value can be represented in width bits.
// A width of 64 or more always fits.
func Fits(value uint64, width int) bool {
	if width >= 64 {
		return true
	}
	return value>>uint(width) == 0
}

// CeilDiv returns ⌈x/y⌉ for positive y.
func CeilDiv(x, y int) int {
	return (x + y - 1) / y
}

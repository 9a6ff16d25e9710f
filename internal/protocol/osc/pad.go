package osc

// Align is the field alignment of the wire format.
const Align = 4

// Pad rounds n up to the next multiple of Align.
func Pad(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + Align - 1) &^ (Align - 1)
}

// Size is the encoded size of s: its bytes plus the NUL terminator, rounded
// up to a multiple of Align. Every sender and receiver must agree on it.
func Size(s string) int {
	return Pad(len(s) + 1)
}

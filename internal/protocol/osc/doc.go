// Package osc owns the instrument control wire format.
//
// Ownership boundary:
// - message model and capacity bounds
// - 4-byte alignment rule shared by encoder and decoder
// - typed argument construction and lazy argument parsing
//
// Wire layout of one datagram:
//
//	[address][NUL][pad to %4==0]
//	[type tag][NUL][pad to %4==0]
//	[argument 1][argument 2]...
//
// Integer and float arguments are 4 bytes big-endian. String arguments are the
// raw bytes plus NUL, zero-padded to the next multiple of 4.
package osc

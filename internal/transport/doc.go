// Package transport owns datagram I/O for the instrument.
//
// Ownership boundary:
// - connectionless send/receive with a would-block result for polling
// - blocking mode switch used only while discovering a controller
// - broadcast as an explicit, revocable capability
//
// Nothing here retries. Retry policy belongs to the caller.
package transport

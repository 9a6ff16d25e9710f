// Package session owns controller discovery for one instrument voice.
//
// Ownership boundary:
// - registration announce/ack messages
// - the one-shot handshake state machine
// - the controller address, written once and read-only afterward
// - backoff for opt-in re-announce
//
// Lifecycle order:
// - Idle -> Announcing -> AwaitingAck -> Registered
//
// - any transport or encode failure moves to Failed; both end states are terminal.
package session

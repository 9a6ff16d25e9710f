// Package voice runs one instrument voice: it registers with a controller,
// then polls the unicast socket and routes play commands to the driver
// boards while keeping their output state synchronized.
package voice

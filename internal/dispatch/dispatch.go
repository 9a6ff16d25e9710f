// Package dispatch routes decoded messages to local handlers.
//
// An address is split on '/' with empty segments skipped. The first segment
// must name this instrument, the second selects a route, and the message's
// type tag must equal the route's tag exactly before the handler runs.
package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/rs/zerolog/log"
)

var (
	ErrRouting      = errors.New("dispatch: routing failed")
	ErrRouteExists  = errors.New("dispatch: route already registered")
	ErrInvalidRoute = errors.New("dispatch: invalid route")
)

// Reasons carried by RoutingError.
const (
	ReasonWrongInstrument = "wrong_instrument"
	ReasonUnknownMethod   = "unknown_method"
	ReasonTagMismatch     = "tag_mismatch"
)

// RoutingError reports a message that was dropped before reaching a
// handler. It matches ErrRouting.
type RoutingError struct {
	Address string
	TypeTag string
	Reason  string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("dispatch: %s: address=%q tag=%q", e.Reason, e.Address, e.TypeTag)
}

func (e *RoutingError) Unwrap() error {
	return ErrRouting
}

// HandlerFunc consumes a message whose type tag already matched.
type HandlerFunc func(msg *osc.Message) error

// Route binds a method segment to a handler and its exact type tag.
type Route struct {
	Method  string
	TypeTag string
	Handle  HandlerFunc
}

// Dispatcher holds the routes for one instrument name.
type Dispatcher struct {
	name   string
	routes map[string]Route
}

func New(name string) *Dispatcher {
	return &Dispatcher{name: name, routes: make(map[string]Route)}
}

func (d *Dispatcher) Name() string {
	return d.name
}

func (d *Dispatcher) Register(r Route) error {
	method := strings.TrimSpace(r.Method)
	if method == "" || strings.Contains(method, "/") || r.Handle == nil {
		return fmt.Errorf("%w: method=%q", ErrInvalidRoute, r.Method)
	}
	if r.TypeTag == "" || r.TypeTag[0] != osc.Sentinel {
		return fmt.Errorf("%w: method=%q tag=%q", ErrInvalidRoute, r.Method, r.TypeTag)
	}
	if _, ok := d.routes[method]; ok {
		return fmt.Errorf("%w: %s", ErrRouteExists, method)
	}
	r.Method = method
	d.routes[method] = r
	return nil
}

// Methods lists registered methods in sorted order.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.routes))
	for m := range d.routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch routes msg. A RoutingError means the message was logged and
// dropped; any other error came from the handler.
func (d *Dispatcher) Dispatch(msg *osc.Message) error {
	segments := Segments(msg.Address)
	if len(segments) == 0 || segments[0] != d.name {
		return d.drop(msg, ReasonWrongInstrument)
	}
	if len(segments) < 2 {
		return d.drop(msg, ReasonUnknownMethod)
	}
	route, ok := d.routes[segments[1]]
	if !ok {
		return d.drop(msg, ReasonUnknownMethod)
	}
	if msg.TypeTag != route.TypeTag {
		return d.drop(msg, ReasonTagMismatch)
	}
	if err := route.Handle(msg); err != nil {
		log.Warn().Err(err).Str("addr", msg.Address).Msg("dispatch.Dispatcher handler failed")
		return err
	}
	return nil
}

func (d *Dispatcher) drop(msg *osc.Message, reason string) error {
	err := &RoutingError{Address: msg.Address, TypeTag: msg.TypeTag, Reason: reason}
	// Other instruments share the broadcast domain; their traffic is normal.
	if reason == ReasonWrongInstrument {
		log.Debug().Str("addr", msg.Address).Msg("dispatch.Dispatcher ignored message for another instrument")
	} else {
		log.Warn().Str("addr", msg.Address).Str("tag", msg.TypeTag).Str("reason", reason).Msg("dispatch.Dispatcher dropped message")
	}
	return err
}

// Segments splits an address path on '/', skipping empty segments.
func Segments(address string) []string {
	return strings.FieldsFunc(address, func(r rune) bool { return r == '/' })
}

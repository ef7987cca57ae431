// Package registry multiplexes named-event listeners from independent
// consumers onto the single inbound event stream.
//
// Any number of call sites may subscribe to the same event name without
// interfering with each other. Dispatch runs handlers in registration
// order against a snapshot taken before the first handler fires, so
// handlers may subscribe or unsubscribe from inside a callback without
// affecting the in-flight dispatch. Registrations live for the consumer's
// lifetime, not the connection's: they survive reconnects, and the
// connection manager re-issues server-side subscriptions from the active
// name set after each reconnect.
package registry

// Package connection owns the single authenticated push connection for
// a session.
//
// Client wraps one WebSocket connection: dial, handshake, read loop,
// and heartbeat probing. Manager drives the lifecycle state machine
// (Disconnected, Connecting, Connected, Error), classifies failures as
// recoverable or fatal, schedules exponential-backoff reconnects, and
// feeds decoded events into the subscription registry. StatusReporter
// is the minimal projection the UI layer reads.
//
// A Manager is explicitly constructed at login and torn down at logout;
// nothing in this package holds package-level connection state.
package connection

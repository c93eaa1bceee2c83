// Package httpserver is the echo transport of the gateway.
//
// POST / carries commands, GET /ws upgrades to the event stream, and the
// health, version and metrics routes serve operators.
package httpserver

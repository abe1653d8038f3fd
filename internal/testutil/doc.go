// Package testutil provides in-memory stand-ins for the remote services and
// a recording feedback sink, shared by driver and CLI tests.
package testutil

// Package record defines the phone record lifecycle shared by the store and
// the batch drivers.
//
// A record moves through a fixed state machine:
//
//	ready ──► uploaded ──► cleared
//	  │
//	  ├────► broken
//	  └────► cleared   (phone already existed remotely, no purchase id)
//
// broken and cleared are terminal. Transient failures never change the state;
// they set a sticky flag (failed_to_upload from ready, failed_to_clear from
// uploaded) that keeps the record out of automatic batches until an operator
// resets it.
//
// Drivers report what happened to an item as an Outcome; the store is the only
// place that turns an Outcome into a write.
package record

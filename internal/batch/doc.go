// Package batch drives phone records through the remote services with a
// small pool of concurrent workers.
//
// Both drivers share the same protocol:
//
//   - The batch is loaded into a Pool. Workers pop one item at a time; Pop is
//     the only point where workers synchronize with each other, and no item is
//     ever handed to two workers.
//   - Each item is turned into a record.Outcome. Remote failures become
//     outcomes, never errors: a failing item cannot stop its siblings or the
//     batch. The exception is a rejected token (AUTH_FAILED), which belongs
//     to the session rather than the item: it cancels the run and is returned
//     from Run, and the item is left as it was.
//   - The outcome is written to the store with a single keyed UPDATE and
//     reported through Feedback (best-effort, failures are only logged).
//   - A progress reporter prints the remaining pool size at a fixed interval
//     and is stopped on every exit path.
//
// The upload driver is safe to run with several workers. The removal driver
// resolves its company id once when opened and should run with very few
// workers; the admin service serializes requests.
package batch

// Package session coordinates one RFID reader on behalf of a host
// application. It is structured into small files by concern:
//
//   - session.go: Session type, constructor, connect/disconnect and host requests.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: states, access requests, outcomes and the pending operation.
//   - errors.go: error types and helpers (IsBusy).
//   - dispatcher.go: the single execution queue every handler runs on.
//   - clock.go: injectable time source and timers.
//   - access.go: single in-flight tag read/write with timeout and scan restore.
//   - inventory.go: debounced inventory starts and round-end backoff.
//   - tuner.go: auto-tuning walk over the radio configuration space.
//   - listener.go: driver events marshalled onto the queue.
//   - status_report.go: Status snapshot.
//   - events.go, eventpub_memory.go, broadcast.go: host push events.
//   - metrics.go: Prometheus collectors.
//
// All mutable state is confined to the execution queue. Exported methods
// post closures onto it; the blocking variants wait for the reply or for
// their context. Timers never mutate state directly: their callbacks post
// back to the queue and re-validate what they act on, since a stopped timer
// may still fire once.
package session

// Package timers implements a cooperative, frame-driven timer registry.
//
// # Overview
//
// A Registry owns a set of Timers. Nothing ticks on its own: a host loop calls
// Registry.Update with the time elapsed since its previous frame, and the
// registry adds that delta to every enabled timer. When a timer's elapsed time
// reaches its interval the timer fires a Tick to its observers and keeps the
// overshoot (elapsed -= interval), so the long-run firing rate stays accurate
// when frames are irregular. A single Update fires a timer at most once; any
// extra time is carried to the next Update.
//
// # Removal
//
// Removal is two-phase. RemoveTimer (and Timer.Dispose) disables the timer and
// queues it; the timer leaves the live set only in the drain phase at the end
// of Update. This makes it safe to dispose timers, including the firing timer
// itself, from inside an observer.
//
// # Locking
//
// Update copies the enabled timers under the registry lock, releases it, and
// dispatches without holding any lock. RemoveTimer only takes the separate
// destruction-queue lock. Observers may therefore call AddTimer, RemoveTimer,
// NewTimer or Dispose on any timer of the same registry without deadlocking.
// The drain takes the queue lock first and the registry lock second; no code
// path takes them in the opposite order.
//
// # One-shot timers
//
// A timer built with the OneShot policy removes itself right after notifying
// its observers, so it fires exactly once and is purged by the same Update.
package timers

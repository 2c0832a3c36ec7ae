// Package queue persists download jobs in SQLite and exposes the query
// shapes the scheduler, runner, and API rely on: the FIFO set of admitted
// jobs, paged terminal history, and the downloading-state concurrency gauge.
//
// The store degrades rather than crashes when the backing database lives on
// storage that goes away: reads return empty results, writes become no-ops,
// and reconnection is re-attempted on an interval. Callers treat "no rows" as
// a valid, recoverable state.
package queue

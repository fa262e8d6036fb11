// Package reconcile schedules the periodic sweep that removes lapsed
// sessions from the secondary indexes.
//
// A [Scheduler] wraps a robfig/cron job. With a lock key configured, every
// run first takes a redsync mutex with a single attempt, so when several
// processes share a namespace at most one of them sweeps per tick and the
// others skip.
//
// The package does not know about sessions; it calls a [SweepFunc] supplied
// by the engine.
package reconcile

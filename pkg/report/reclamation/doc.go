// Package reclamation implements the batched job that expires reports.
//
// A run has two phases. Phase A hard-deletes reports whose recovery window
// has elapsed; phase B soft-deletes drafts that have not been edited for the
// staleness threshold. Each phase pages through candidates ordered by
// (timestamp, id) with a keyset cursor; each page is one batch whose writes
// go to the store in a single ApplyBatch call. Every document is evaluated
// against a fresh clock reading.
//
// The job is safe to run concurrently with user edits, with itself (a
// scheduled and a manual run) and to rerun after a crash: every write carries
// a precondition mirroring the decision, so a second application is a no-op.
//
// Runs are started by the cron Scheduler, by ManualTrigger for privileged
// callers, or directly with Reclaimer.Run from the CLI.
//
// Instances sharing a store can serialize runs with a Locker; RedisLocker
// holds a Redis key for the duration of a run, and a run that finds it taken
// returns report.ErrRunInProgress without touching the store.
//
// With archiving enabled, hard-delete candidates are first written to an
// ArchiveSink: daily JSON-lines files (Archiver) or one S3 object per batch
// (S3Archiver). Candidates whose archive write failed are kept for the next
// run.
package reclamation

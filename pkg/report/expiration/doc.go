// Package expiration decides what the reclamation job does with a report.
//
// Evaluate is a pure function of a report and the current time. Rules are
// checked in order and the first match wins:
//
//  1. A soft-deleted report whose recovery window has elapsed is hard-deleted.
//  2. A live draft (stage1 or stage2) not edited for the staleness threshold
//     is soft-deleted with reason stale-draft.
//  3. Anything else is left alone.
//
// Completed (stage3) reports are never stale; they are only removed after a
// user deletes them and the recovery window runs out.
//
// Both thresholds are strict: a report exactly at a boundary is kept.
package expiration

// Package engine implements the pipeline run state machine.
//
// A run moves pending → running → {completed | failed | cancelled}. Terminal
// states are absorbing. Advance is the only entry point that executes
// actions; it is idempotent so the job runner may redeliver it freely.
//
// STEP COMMIT:
//
// Each action is executed against the document body as persisted at that
// moment, then committed in one store transaction: snapshot of the old
// body, new body, applied_actions append, and the run's advanced index and
// results. A step that fails before the commit leaves no trace on the
// document. Earlier committed steps are never rolled back.
//
// FAILURE CLASSES:
//
// Transient provider failures (timeout, rate limit, transport) and
// concurrent body edits leave the run running at the same index and
// surface as *RetryableError. Everything else an action can do wrong
// (unparseable response, no effect when changes are required, template or
// local routine errors) fails the run and is reported through the run's
// persisted state, not through Advance's error.
//
// CANCELLATION:
//
// Cancel only sets a flag. Advance checks it between actions, never during
// one.
package engine

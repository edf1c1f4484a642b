// Package harness runs scripted pipeline scenarios against the real engine,
// store and job runner, with only the generative provider replaced by
// canned replies.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: cite_patch
//	description: "A citation patch is applied and costed"
//	catalog: ../catalog.cue
//	documents:
//	  - id: doc-1
//	    project: acme
//	    title: Revenue
//	    body: "Revenue grew last year.\n"
//	replies:
//	  cite:
//	    - text: '{"replacements": [{"find": "grew", "replace": "grew 42%"}]}'
//	      input_tokens: 1000
//	      output_tokens: 200
//	max_attempts: 2
//	flow:
//	  - create: {document: doc-1, pipeline: cite}
//	  - process: {run: run-1}
//	    expect: {status: completed}
//	assertions:
//	  - type: run_state
//	    run: run-1
//	    total_cost: 0.006
//	  - type: document
//	    document: doc-1
//	    applied_actions: [cite]
//
// # Flow Steps
//
//   - create: create a run (ids are run-1, run-2, ... in creation order)
//   - advance: one engine Advance call, no retries
//   - process: advance through the job runner, retrying transient failures
//     up to max_attempts and abandoning the run afterwards
//   - cancel: request cancellation
//   - edit: replace a document body outside any run
//   - delete: remove a document
//
// advance and process accept cancel_during: <action>, which requests
// cancellation when the provider receives that action's request.
//
// A step without expect must succeed. expect.error names the error kind
// (retryable, conflict, document_gone, run_not_found, run_terminal, config,
// active_run, not_found, context, error).
//
// # Assertion Types
//
//   - run_state: status, current_index, total_cost, total_tokens,
//     failed_action, results (count)
//   - document: last_action, body, body_contains, applied_actions
//   - snapshot_count: number of snapshots of a document
//   - provider_calls: the exact sequence of actions sent to the provider
//
// # Golden Traces
//
// RunWithGolden compares the canonical JSON trace of a result against
// testdata/golden/<name>.golden. Timestamps, error texts and hashes are
// left out so traces are stable.
package harness

// Package ir provides the shared data model for the content pipeline.
//
// This package contains type definitions plus the canonical JSON and hashing
// helpers used for audit records. All other internal packages import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - Action definitions and pipeline definitions are immutable after load
//   - A Run's resolved action list is frozen at creation
//   - Document.AppliedActions only grows
//   - All JSON tags use snake_case
package ir

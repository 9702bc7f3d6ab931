// Package core implements bulk import of HR records from delimited text.
//
// The package is independent of transport. The web handlers and the hrctl
// command both go through [Service].
//
// # Pipeline
//
// An import streams one file through three stages:
//
//  1. [RowReader] decodes the stream (UTF-8 or UTF-16 with BOM), reads the
//     header once and yields one [Row] per non-blank record. Ragged rows
//     are padded or truncated to the header width.
//  2. [Mapper] turns a row's [Fields] into a staff member, work log or
//     holiday, applying coercion and the defaulting policy.
//  3. [Runner] writes each record through [ImportStore] and keeps counters
//     on the [hr.ImportJob]. Failures become "Row N: reason" entries and
//     the batch continues.
//
// The job is created in processing once the header has been accepted and
// finalized as completed exactly once, even when every row fails.
//
// # Kinds
//
// [Kind] is a closed set. Each kind carries its template columns, required
// columns, example row and row mapper, so adding a kind means adding one
// table entry.
//
// # Error Handling
//
// [MapError] converts technical errors to a [UserMessage] with a support
// code:
//
//   - DB001-DB005: store errors
//   - VAL001-VAL005: validation errors
//   - FILE001-FILE004: file errors
//   - IMP001-IMP004: import errors
//   - REQ001-REQ004: request errors
package core

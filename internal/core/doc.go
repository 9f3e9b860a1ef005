// Package core provides the CSV import and export pipeline for attendees and
// meetings.
//
// This package holds all domain logic independent of HTTP, storage, or the
// remote admin API. Web handlers, CLI tools, and tests use it unchanged.
//
// # Architecture
//
//   - Schemas: one [ImportSchema] per [Kind], registered at init. Each
//     [ColumnSpec] carries its required flag, default, and validator.
//   - Tokenizer: [Tokenize] yields the header and then one [RawRow] at a time.
//   - Validation: [RowValidator] maps header names to positions and returns a
//     [ValidatedRow] that is either accepted or carries every field error.
//   - Reconciler: [Reconciler.ProcessFile] drives a whole file and returns an
//     [ImportResult]. Row errors are counted, never fatal.
//   - Progress: [Progress] is a single-slot, non-blocking progress signal with
//     a cooperative cancel flag.
//   - Templates and exports: [GenerateTemplate] and [ExportRecords].
//   - Service: [Service] runs imports in the background, fans progress out to
//     subscribers, and submits accepted records through a [Submitter].
//
// # Import Flow
//
//  1. Client calls [Service.StartImport] with a [FileSource] and a kind
//  2. The file is opened once and wrapped with size limiting, byte counting,
//     and BOM/UTF-8 decoding
//  3. Rows are validated inline or on a worker pool ([ReconcilerConfig.Workers])
//  4. Progress is broadcast to subscribers via [Service.Subscribe]
//  5. The caller reviews the result and calls [Service.Submit]
//
// # Error Handling
//
// Fatal errors are [InvalidFileError], [ErrUnknownImportKind] and
// [InvalidDateRangeError]. Row problems are [FieldError] values inside the
// result. [MapError] turns any of them into a coded user-facing message.
package core

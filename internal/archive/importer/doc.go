// Package importer merges staged board files into the destination database.
//
// Each board is imported by an Engine in two passes:
//
//  1. Validate: index <board>_images.csv by its source media_id and
//     <board>_threads.csv by thread_num, then decode every post, resolve
//     its media and thread references against the indexes and collect the
//     distinct referenced media and threads. Nothing is written.
//  2. Write, in one transaction: upsert each referenced media row (keyed by
//     media_hash) and record the destination media_id it returns, upsert the
//     referenced threads (keyed by thread_num), then upsert the posts (keyed
//     by num) carrying the destination media_id.
//
// Source surrogate ids are never written. Every upsert overwrites the
// non-key columns of an existing row, so importing the same files again
// leaves the destination unchanged and overlapping exports converge to the
// latest data.
//
// A Driver discovers boards in the staging directory and runs the engine
// over each one. Boards are independent: one failing board is rolled back
// and reported while the others commit.
package importer

// Package schema defines the ordered table layouts of an Asagi-style board
// archive.
//
// # Overview
//
// Every board (partition) is stored as three tables:
//
//	<board>          posts, natural key num, surrogate doc_id
//	<board>_images   media, natural key media_hash, surrogate media_id
//	<board>_threads  threads, natural key thread_num
//
// The same three names are used for the staged CSV files
// (<board>.csv, <board>_images.csv, <board>_threads.csv).
//
// # Column Order
//
// A Table lists its columns in declaration order. That order is the only
// order used anywhere a list of values is bound to a list of columns:
//
//	cols := schema.Posts.WriteColumns()     // every column except doc_id
//	vals, err := schema.Posts.Project(rec)  // values in the same order
//
// Writers never build column lists by hand, so a value list and its column
// list cannot drift apart.
//
// # Empty Fields
//
// Flat files cannot tell NULL from the empty string. Project maps an empty
// field to nil when the column is Nullable and keeps it as "" (text) or
// rejects it (integer) otherwise.
//
// # Destination DDL
//
// The embedded schema.sql template creates the three tables for one board.
// The %%BOARD%% placeholder is replaced with the board name by Render.
package schema

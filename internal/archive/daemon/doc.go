// Package daemon keeps the destination database in step with the staging
// directory.
//
// The daemon imports every staged board once at startup, then watches the
// staging directory with fsnotify. Changes are grouped per board and a board
// is re-imported once none of its three files has changed for the debounce
// interval and all three exist. Re-importing is always safe because every
// write is a natural-key upsert.
//
// Exports write to <table>.csv.tmp and rename into place, so the watcher
// only ever sees complete files; the temporary names are ignored.
package daemon

// Package sessionlog persists the per-drive recordings log: a JSON array of
// finished sessions capped to the most recent entries, with overflow
// optionally spilled into an unbounded archive file.
//
// Every write goes through a temporary sibling that is fsynced and renamed
// over the target, and the read-modify-write cycle holds an advisory file
// lock. A corrupt log is reset to an empty array instead of failing.
package sessionlog

// Package main hosts the tecscanner CLI entrypoint and command graph.
//
// Most commands are thin IPC calls against the running daemon: starting and
// stopping a recording session, reading status, the recordings log and the
// session journal, and following diagnostic logs on the drive. The daemon
// itself runs under "tecscanner daemon run"; "doctor", "config" and
// "test-notify" work without it.
package main

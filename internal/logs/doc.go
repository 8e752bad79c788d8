// Package logs reads diagnostic log files with bounded memory: the last N
// lines of a file, or everything appended after a byte offset. The CLI uses
// the offset form to follow a log on the drive through the daemon.
package logs

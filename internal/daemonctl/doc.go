// Package daemonctl holds the CLI side of daemon lifecycle management:
// launching a detached daemon, waiting for its socket, terminating it and
// assembling status snapshots that still work while the daemon is offline.
package daemonctl

// Package storage discovers writable removable media and prepares the
// recordings layout on it.
//
// Locator re-reads the OS mount table on every call so hot-plug and removal
// are observed without caching stale paths. Watcher optionally listens for
// udev block events so the daemon can react to drives as soon as they appear.
package storage

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func writeMountTable(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write mount table: %v", err)
	}
	return path
}

// mountLine renders one /proc/self/mountinfo record.
func mountLine(id int, point, fstype, source, mode string) string {
	return fmt.Sprintf("%d 25 8:%d / %s %s,relatime - %s %s %s", id, id, point, mode, fstype, source, mode)
}

const procLine = "22 1 0:21 / /proc rw,nosuid - proc proc rw"

func TestResolveFindsFirstWritableMountUnderRoot(t *testing.T) {
	root := t.TempDir()
	readOnly := filepath.Join(root, "ro")
	usb := filepath.Join(root, "usb")
	for _, dir := range []string{readOnly, usb} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	table := writeMountTable(t,
		procLine,
		mountLine(41, readOnly, "vfat", "/dev/sdb1", "ro"),
		mountLine(42, usb, "vfat", "/dev/sdc1", "rw"),
	)

	loc := NewLocator(Options{Roots: []string{root}, MountTable: table}, nil)
	loc.writable = func(path string) bool { return path != readOnly }

	mount, ok := loc.Resolve()
	if !ok {
		t.Fatal("expected mount to resolve")
	}
	if mount.Path != usb {
		t.Fatalf("unexpected mount %q", mount.Path)
	}
	if mount.RecordingsDir != filepath.Join(usb, "recordings") {
		t.Fatalf("unexpected recordings dir %q", mount.RecordingsDir)
	}
	data, err := os.ReadFile(mount.LogPath())
	if err != nil {
		t.Fatalf("expected empty log to be created: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("unexpected initial log %q", data)
	}
	if _, err := os.Stat(mount.ArchivePath()); !os.IsNotExist(err) {
		t.Fatalf("archive should not be created eagerly, stat err=%v", err)
	}
	if current, ok := loc.Current(); !ok || current.Path != usb {
		t.Fatalf("unexpected current mount %+v ok=%v", current, ok)
	}
}

func TestResolveKeepsExistingLog(t *testing.T) {
	root := t.TempDir()
	usb := filepath.Join(root, "usb")
	if err := os.MkdirAll(filepath.Join(usb, "recordings"), 0o755); err != nil {
		t.Fatal(err)
	}
	existing := `[{"folder":"session_1","frames":1}]`
	if err := os.WriteFile(filepath.Join(usb, "recordings", LogFileName), []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}
	table := writeMountTable(t, mountLine(42, usb, "ext4", "/dev/sdc1", "rw"))

	loc := NewLocator(Options{Roots: []string{root}, MountTable: table}, nil)
	mount, ok := loc.Resolve()
	if !ok {
		t.Fatal("expected mount")
	}
	data, err := os.ReadFile(mount.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != existing {
		t.Fatalf("existing log overwritten: %q", data)
	}
}

func TestResolveNoMatch(t *testing.T) {
	table := writeMountTable(t,
		mountLine(1, "/", "ext4", "/dev/sda1", "rw"),
		mountLine(41, "/mediaextra", "vfat", "/dev/sdb1", "rw"),
	)
	loc := NewLocator(Options{Roots: []string{"/media"}, MountTable: table}, nil)
	loc.writable = func(string) bool { return true }
	if mount, ok := loc.Resolve(); ok {
		t.Fatalf("expected no mount, got %+v", mount)
	}
}

func TestResolveUnreadableMountTable(t *testing.T) {
	loc := NewLocator(Options{Roots: []string{"/media"}, MountTable: filepath.Join(t.TempDir(), "missing")}, nil)
	if _, ok := loc.Resolve(); ok {
		t.Fatal("expected no mount when table is unreadable")
	}
}

func TestResolveTracksRemoval(t *testing.T) {
	root := t.TempDir()
	usb := filepath.Join(root, "usb")
	if err := os.MkdirAll(usb, 0o755); err != nil {
		t.Fatal(err)
	}
	table := writeMountTable(t, mountLine(42, usb, "vfat", "/dev/sdc1", "rw"))
	loc := NewLocator(Options{Roots: []string{root}, MountTable: table}, nil)
	var changes []bool
	loc.OnChange(func(_ Mount, ok bool) { changes = append(changes, ok) })
	if _, ok := loc.Resolve(); !ok {
		t.Fatal("expected mount")
	}
	if _, ok := loc.Resolve(); !ok {
		t.Fatal("expected mount on second resolve")
	}

	if err := os.WriteFile(table, []byte(procLine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := loc.Resolve(); ok {
		t.Fatal("expected mount to disappear")
	}
	if _, ok := loc.Current(); ok {
		t.Fatal("expected Current to report no mount after removal")
	}
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("expected one attach and one detach notification, got %v", changes)
	}
}

func TestResolveDecodesEscapedMountPoint(t *testing.T) {
	root := t.TempDir()
	drive := filepath.Join(root, "USB DRIVE")
	if err := os.MkdirAll(drive, 0o755); err != nil {
		t.Fatal(err)
	}
	escaped := strings.ReplaceAll(drive, " ", `\040`)
	table := writeMountTable(t, procLine, mountLine(42, escaped, "vfat", "/dev/sdc1", "rw"))

	loc := NewLocator(Options{Roots: []string{root}, MountTable: table}, nil)
	mount, ok := loc.Resolve()
	if !ok {
		t.Fatal("expected escaped mount point to resolve")
	}
	if mount.Path != drive {
		t.Fatalf("unexpected mount %q, want %q", mount.Path, drive)
	}
	if _, err := os.Stat(mount.LogPath()); err != nil {
		t.Fatalf("expected log inside decoded path: %v", err)
	}
}

func TestResolveMatchesRootItself(t *testing.T) {
	root := t.TempDir()
	table := writeMountTable(t, mountLine(42, root, "vfat", "/dev/sdc1", "rw"))
	loc := NewLocator(Options{Roots: []string{root}, MountTable: table}, nil)
	if mount, ok := loc.Resolve(); !ok || mount.Path != root {
		t.Fatalf("expected root mount, got %+v ok=%v", mount, ok)
	}
}

func TestStatUsage(t *testing.T) {
	usage, err := StatUsage(t.TempDir())
	if err != nil {
		t.Fatalf("StatUsage: %v", err)
	}
	if usage.TotalBytes == 0 || usage.FreeBytes > usage.TotalBytes {
		t.Fatalf("implausible usage %+v", usage)
	}
	if _, err := StatUsage(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.CHANGE, netlink.REMOVE} {
		event := netlink.UEvent{
			Action: action,
			Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "partition"},
		}
		if !matcher.Evaluate(event) {
			t.Errorf("expected matcher to accept %s", action)
		}
	}
	disk := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "block", "DEVTYPE": "disk"},
	}
	if matcher.Evaluate(disk) {
		t.Error("expected matcher to reject whole-disk events")
	}
}

func TestWatcherHandleEvent(t *testing.T) {
	var gotAction, gotDevice string
	w := NewWatcher(nil, func(action, device string) {
		gotAction, gotDevice = action, device
	})

	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{}})
	if gotDevice != "" {
		t.Fatal("callback should not fire without a device name")
	}

	w.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "sdb1"}})
	if gotAction != "add" || gotDevice != "/dev/sdb1" {
		t.Fatalf("unexpected callback args %q %q", gotAction, gotDevice)
	}

	w.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/block/sdc/sdc1"}})
	if gotAction != "remove" || gotDevice != "/dev/sdc1" {
		t.Fatalf("unexpected callback args from DEVPATH %q %q", gotAction, gotDevice)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	var w *Watcher
	w.Stop()
	if w.Running() {
		t.Fatal("nil watcher should not report running")
	}

	w = NewWatcher(nil, nil)
	w.Stop()
	w.Stop()
	if w.Running() {
		t.Fatal("unstarted watcher should not report running")
	}
}

package daemon_test

import (
	"context"
	"testing"
	"time"

	"tecscanner/internal/daemon"
	"tecscanner/internal/metrics"
	"tecscanner/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountedDrive())
	store := testsupport.MustOpenJournal(t, cfg)
	controller := testsupport.NewController(t, cfg, testsupport.NewFakeRunner(), store)

	d, err := daemon.New(cfg, daemon.Deps{Controller: controller, Journal: store, Metrics: metrics.New(false)})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	info := d.Info()
	if !info.Running {
		t.Fatal("expected daemon to report running")
	}
	if info.APIAddress == "" {
		t.Fatal("expected API address while running")
	}
	if info.JournalPath != cfg.JournalPath() {
		t.Fatalf("unexpected journal path %q", info.JournalPath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Info().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""

	first, err := daemon.New(cfg, daemon.Deps{Controller: testsupport.NewController(t, cfg, testsupport.NewFakeRunner(), nil)})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	second, err := daemon.New(cfg, daemon.Deps{Controller: testsupport.NewController(t, cfg, testsupport.NewFakeRunner(), nil)})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release failed: %v", err)
	}
}

func TestDaemonCloseFinalizesSessionAndJournals(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountedDrive())
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenJournal(t, cfg)
	controller := testsupport.NewController(t, cfg, testsupport.NewFakeRunner(), store)

	d, err := daemon.New(cfg, daemon.Deps{Controller: controller, Journal: store})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ok, code := controller.Start(context.Background()); !ok {
		t.Fatalf("controller Start failed: %q", code)
	}
	deadline := time.Now().Add(5 * time.Second)
	for controller.Status().FramesRecorded == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a frame")
		}
		time.Sleep(5 * time.Millisecond)
	}

	records, err := d.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history before close, got %d", len(records))
	}

	controller.Stop()
	records, err = d.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 1 || records[0].Mount != testsupport.DrivePath(cfg) {
		t.Fatalf("unexpected history %+v", records)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestNewRequiresController(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Deps{}); err == nil {
		t.Fatal("expected error without controller")
	}
}

package service_test

import (
	"context"
	"testing"
	"time"

	"vistacrop/internal/service"
)

// ─────────────────────────────────────────────────────────────
// RunningJobsGuard tests — exports are keyed by composition id
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_OneExportPerComposition(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("comp-a") {
		t.Fatal("first export for a composition should acquire the lock")
	}
	if g.TryLock("comp-a") {
		t.Fatal("a second export of the same composition must be rejected while one runs")
	}
	if !g.TryLock("comp-b") {
		t.Fatal("exports of different compositions should run independently")
	}
	g.Unlock("comp-a")
	g.Unlock("comp-b")

	if !g.TryLock("comp-a") {
		t.Fatal("a finished composition should be exportable again")
	}
	g.Unlock("comp-a")
}

func TestRunningGuard_ShutdownWaitsForExports(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("comp-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	// The export finishes while shutdown is waiting.
	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("comp-a")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll did not return after the export finished")
	}
}

func TestRunningGuard_WaitAllHonorsContext(t *testing.T) {
	var g service.ExportedRunningGuard

	if !g.TryLock("comp-stuck") {
		t.Fatal("expected lock to succeed")
	}
	defer g.Unlock("comp-stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.WaitAll(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll must give up when the shutdown context expires")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsChangeEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "composition:changed", "drop")
	m.Emit(ctx, "export:done", "comp-a")

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "composition:changed" || m.Events[0].Data != "drop" {
		t.Errorf("unexpected first event: %+v", m.Events[0])
	}
	if m.Events[len(m.Events)-1].Event != "export:done" {
		t.Errorf("expected export:done last, got %q", m.Events[len(m.Events)-1].Event)
	}
}

package dispatch_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/yaoapp/signals/dispatch"
	"github.com/yaoapp/signals/types"
)

// ---------------------------------------------------------------------------
// Helper: snapshot goroutine count after GC stabilization.
// ---------------------------------------------------------------------------

func stableGoroutineCount() int {
	// Let runtime settle: GC + cleanups + scheduler
	for i := 0; i < 5; i++ {
		runtime.GC()
		runtime.Gosched()
		time.Sleep(10 * time.Millisecond)
	}
	return runtime.NumGoroutine()
}

// ---------------------------------------------------------------------------
// Test: 200 hub create/shutdown cycles leak no workers.
// ---------------------------------------------------------------------------

func TestLeak_HubCreateShutdown(t *testing.T) {
	before := stableGoroutineCount()

	const cycles = 200
	for i := 0; i < cycles; i++ {
		h := dispatch.NewHub(dispatch.MaxWorkers(4))
		for j := 0; j < 8; j++ {
			_, _ = h.Submit(task(types.Normal, func([]any) error { return nil }))
		}
		h.Shutdown()
	}

	after := stableGoroutineCount()
	if diff := after - before; diff > 5 {
		t.Fatalf("goroutine leak: before=%d after=%d diff=%d", before, after, diff)
	}
}

// ---------------------------------------------------------------------------
// Test: default hub Shutdown/GetOrCreate cycles leak no workers.
// ---------------------------------------------------------------------------

func TestLeak_DefaultHubCycles(t *testing.T) {
	dispatch.Reset()
	defer dispatch.Reset()

	before := stableGoroutineCount()

	for i := 0; i < 100; i++ {
		h := dispatch.GetOrCreate()
		_, _ = h.Submit(task(types.Low, func([]any) error { return nil }))
		dispatch.Shutdown()
	}

	after := stableGoroutineCount()
	if diff := after - before; diff > 5 {
		t.Fatalf("goroutine leak: before=%d after=%d diff=%d", before, after, diff)
	}
}

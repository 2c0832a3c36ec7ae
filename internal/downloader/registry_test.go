package downloader

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistryTerminateOnce(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.Add("job-1", func() error {
		calls++
		return nil
	})

	if !registry.Contains("job-1") {
		t.Fatal("expected handle to be registered")
	}

	terminated, err := registry.Terminate("job-1")
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if !terminated {
		t.Fatal("expected termination")
	}

	terminated, err = registry.Terminate("job-1")
	if err != nil {
		t.Fatalf("Terminate second: %v", err)
	}
	if terminated {
		t.Fatal("expected second termination to find nothing")
	}
	if calls != 1 {
		t.Fatalf("terminate func called %d times", calls)
	}
}

func TestRegistryTerminateError(t *testing.T) {
	registry := NewRegistry()
	registry.Add("job-1", func() error {
		return errors.New("no such process")
	})

	terminated, err := registry.Terminate("job-1")
	if !terminated {
		t.Fatal("expected handle to be found")
	}
	if err == nil {
		t.Fatal("expected terminate error to propagate")
	}
	if registry.Contains("job-1") {
		t.Fatal("handle must be removed even when the signal fails")
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry()
	registry.Add("job-1", func() error { return nil })
	registry.Remove("job-1")

	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Len())
	}
	if terminated, _ := registry.Terminate("job-1"); terminated {
		t.Fatal("removed handle must not be terminable")
	}
}

func TestRegistryConcurrentTerminate(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	var callMu sync.Mutex
	registry.Add("job-1", func() error {
		callMu.Lock()
		calls++
		callMu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = registry.Terminate("job-1")
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("terminate func called %d times under contention", calls)
	}
}

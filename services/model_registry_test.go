package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"multi-model-summarizer/internal/logger"
)

func TestRegistryLoadsOnceUnderConcurrency(t *testing.T) {
	b := &stubBackend{loadWait: 50 * time.Millisecond}
	reg := NewModelRegistry(b, DefaultModels(testConfig()), logger.Discard())

	var wg sync.WaitGroup
	handles := make([]*ModelHandle, 16)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := reg.Get(context.Background(), "BART")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	if n := b.loads.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Fatalf("handle %d differs", i)
		}
	}
	if !reg.Loaded("bart") || reg.Loaded("t5") {
		t.Fatal("unexpected loaded state")
	}
}

func TestRegistryLookupAndOrder(t *testing.T) {
	reg := NewModelRegistry(&stubBackend{}, DefaultModels(testConfig()), logger.Discard())

	spec, err := reg.Lookup(" pegasus ")
	if err != nil || spec.ID != "google/pegasus-xsum" || spec.Strategy != StrategyTruncate {
		t.Fatalf("Lookup = %+v, %v", spec, err)
	}

	var names []string
	for _, m := range reg.Models() {
		names = append(names, m.Name)
	}
	if len(names) != 3 || names[0] != "T5" || names[1] != "BART" || names[2] != "Pegasus" {
		t.Fatalf("models = %v", names)
	}
}

func TestRegistryPreload(t *testing.T) {
	b := &stubBackend{}
	reg := NewModelRegistry(b, DefaultModels(testConfig()), logger.Discard())

	if err := reg.Preload(context.Background()); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if b.loads.Load() != 3 {
		t.Fatalf("loads = %d", b.loads.Load())
	}
	if !reg.Loaded(" T5 ") || !reg.Loaded("PEGASUS") {
		t.Fatal("Loaded should match names like Lookup does")
	}
	if err := reg.Preload(context.Background()); err != nil {
		t.Fatalf("second Preload: %v", err)
	}
	if b.loads.Load() != 3 {
		t.Fatalf("models reloaded: loads = %d", b.loads.Load())
	}
}

package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_SuppressesDuplicateWithinWindow(t *testing.T) {
	c := NewCache(5 * time.Minute)

	if !c.ShouldProcess("+51999888777", "CUPON: 1234567890 DNI: 87654321") {
		t.Fatalf("first observation must be processed")
	}
	c.MarkProcessed("+51999888777", "CUPON: 1234567890 DNI: 87654321")

	if c.ShouldProcess("+51999888777", "CUPON: 1234567890 DNI: 87654321") {
		t.Fatalf("duplicate within window must be suppressed")
	}
}

func TestCache_DifferentSenderOrBodyIsNotADuplicate(t *testing.T) {
	c := NewCache(5 * time.Minute)
	c.MarkProcessed("+51999888777", "same body same body")

	if !c.ShouldProcess("+51999888778", "same body same body") {
		t.Fatalf("different sender must not be suppressed")
	}
	if !c.ShouldProcess("+51999888777", "another body entirely") {
		t.Fatalf("different body must not be suppressed")
	}
}

func TestCache_ExpiredEntryIsProcessedAgainAndEvicted(t *testing.T) {
	now := time.Now()
	c := NewCache(5 * time.Minute)
	c.nowFunc = func() time.Time { return now }

	c.MarkProcessed("+51999888777", "CUPON: 1234567890 DNI: 87654321")

	now = now.Add(5*time.Minute + time.Second)

	if !c.ShouldProcess("+51999888777", "CUPON: 1234567890 DNI: 87654321") {
		t.Fatalf("expired entry must be processed again")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be evicted on lookup, cache has %d entries", c.Len())
	}
}

func TestCache_Sweep(t *testing.T) {
	now := time.Now()
	c := NewCache(5 * time.Minute)
	c.nowFunc = func() time.Time { return now }

	c.MarkProcessed("a", "old entry one")
	c.MarkProcessed("b", "old entry two")

	now = now.Add(6 * time.Minute)
	c.MarkProcessed("c", "fresh entry")

	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("expected 2 entries swept, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 live entry after sweep, got %d", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := fmt.Sprintf("+5199900%04d", i)
			body := fmt.Sprintf("CUPON: 12345678%02d DNI: 87654321", i%10)
			c.ShouldProcess(sender, body)
			c.MarkProcessed(sender, body)
			c.ShouldProcess(sender, body)
		}(i)
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", c.Len())
	}
}

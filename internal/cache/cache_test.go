// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheBasicOperations(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	_, exists = c.Get("key2")
	if exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New(100 * time.Millisecond)

	c.Set("key1", "value1")

	_, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(150 * time.Millisecond)

	_, exists = c.Get("key1")
	if exists {
		t.Error("Expected key1 to be expired")
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, exists := c.Get("key1")
	if exists {
		t.Error("Expected key1 to be deleted")
	}

	// Deleting a missing key must not panic.
	c.Delete("never-set")
}

func TestCacheClear(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	c.Clear()

	for _, key := range []string{"key1", "key2", "key3"} {
		_, exists := c.Get(key)
		if exists {
			t.Errorf("Expected %s to be cleared", key)
		}
	}

	stats := c.GetStats()
	if stats.TotalKeys != 0 {
		t.Errorf("Expected TotalKeys 0 after Clear, got %d", stats.TotalKeys)
	}
}

func TestCacheStats(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("key1", "value1")
	c.Get("key1") // hit
	c.Get("key2") // miss
	c.Get("key1") // hit

	stats := c.GetStats()

	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}

	hitRate := c.HitRate()
	expectedHitRate := 66.66666666666667 // 2/3 * 100
	if hitRate < expectedHitRate-0.01 || hitRate > expectedHitRate+0.01 {
		t.Errorf("Expected hit rate around %.2f%%, got %.2f%%", expectedHitRate, hitRate)
	}
}

func TestCacheHitRateZeroOperations(t *testing.T) {
	c := New(1 * time.Minute)

	if rate := c.HitRate(); rate != 0.0 {
		t.Errorf("Expected 0%% hit rate on fresh cache, got %.2f%%", rate)
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	c := New(1 * time.Minute)

	c.SetWithTTL("key1", "value1", 100*time.Millisecond)

	_, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}

	time.Sleep(150 * time.Millisecond)

	_, exists = c.Get("key1")
	if exists {
		t.Error("Expected key1 to be expired")
	}
}

func TestCacheEntryOverwrite(t *testing.T) {
	c := New(1 * time.Minute)

	c.Set("listing", []string{"a.mkv"})
	c.Set("listing", []string{"a.mkv", "b.mkv"})

	value, exists := c.Get("listing")
	if !exists {
		t.Fatal("Expected listing to exist")
	}
	files := value.([]string)
	if len(files) != 2 {
		t.Errorf("Expected overwritten value with 2 files, got %d", len(files))
	}
}

func TestCacheExpirationCountsEviction(t *testing.T) {
	c := New(30 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(50 * time.Millisecond)
	c.Get("key1")

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction from lazy expiry, got %d", stats.Evictions)
	}
}

func TestCacheConcurrency(t *testing.T) {
	c := New(1 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", worker, j)
				c.Set(key, j)
				c.Get(key)
				if j%10 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	// Cache should still be functional.
	c.Set("final", "value")
	if _, exists := c.Get("final"); !exists {
		t.Error("Expected cache to work after concurrent access")
	}
}

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

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a.mkv", 1)
	cache.Add("b.mkv", 2)
	cache.Add("c.mkv", 3)

	value, found := cache.Get("a.mkv")
	if !found {
		t.Fatal("Expected to find key 'a.mkv'")
	}
	if value.(int) != 1 {
		t.Errorf("Expected value 1, got %v", value)
	}
	if _, found := cache.Get("b.mkv"); !found {
		t.Error("Expected to find key 'b.mkv'")
	}
	if _, found := cache.Get("c.mkv"); !found {
		t.Error("Expected to find key 'c.mkv'")
	}

	if cache.Len() != 3 {
		t.Errorf("Expected len 3, got %d", cache.Len())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Add("a", "alpha")
	cache.Add("b", "bravo")
	cache.Add("c", "charlie")

	// Access 'a' to make it most recently used.
	cache.Get("a")

	// Adding a fourth entry should evict 'b', the least recently used.
	cache.Add("d", "delta")

	if _, found := cache.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
	if _, found := cache.Get("a"); !found {
		t.Error("Expected 'a' to be present")
	}
	if _, found := cache.Get("c"); !found {
		t.Error("Expected 'c' to be present")
	}
	if _, found := cache.Get("d"); !found {
		t.Error("Expected 'd' to be present")
	}
}

func TestLRUCache_TTLExpiration(t *testing.T) {
	cache := NewLRUCache(10, 50*time.Millisecond)

	cache.Add("a", "value")

	if _, found := cache.Get("a"); !found {
		t.Error("Expected to find key 'a' immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := cache.Get("a"); found {
		t.Error("Expected key 'a' to be expired")
	}
	if cache.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, len %d", cache.Len())
	}
}

func TestLRUCache_Contains(t *testing.T) {
	cache := NewLRUCache(2, time.Minute)

	cache.Add("a", "alpha")
	cache.Add("b", "bravo")

	if !cache.Contains("a") {
		t.Error("Expected Contains('a') to be true")
	}

	// Contains must not promote: adding a third entry should still evict 'a'.
	cache.Add("c", "charlie")
	if cache.Contains("a") {
		t.Error("Expected 'a' to be evicted despite Contains check")
	}
}

func TestLRUCache_Remove(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", "value")
	cache.Add("b", "other")

	if !cache.Remove("a") {
		t.Error("Expected Remove to return true for existing key")
	}
	if cache.Remove("a") {
		t.Error("Expected Remove to return false for missing key")
	}
	if _, found := cache.Get("a"); found {
		t.Error("Expected 'a' to be gone after Remove")
	}
	if _, found := cache.Get("b"); !found {
		t.Error("Expected 'b' to still be present")
	}
}

func TestLRUCache_Clear(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", 1)
	cache.Add("b", 2)
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, len %d", cache.Len())
	}
	if _, found := cache.Get("a"); found {
		t.Error("Expected 'a' to be gone after Clear")
	}

	// Cache must remain usable after Clear.
	cache.Add("c", 3)
	if _, found := cache.Get("c"); !found {
		t.Error("Expected cache to accept entries after Clear")
	}
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	cache := NewLRUCache(10, 30*time.Millisecond)

	cache.Add("old1", 1)
	cache.Add("old2", 2)

	time.Sleep(40 * time.Millisecond)

	cache.Add("new1", 3)

	removed := cache.CleanupExpired()
	if removed != 2 {
		t.Errorf("Expected 2 expired entries removed, got %d", removed)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 surviving entry, got %d", cache.Len())
	}
	if _, found := cache.Get("new1"); !found {
		t.Error("Expected 'new1' to survive cleanup")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", 1)
	cache.Get("a")      // hit
	cache.Get("b")      // miss
	cache.Get("a")      // hit
	cache.Get("absent") // miss

	hits, misses, size := cache.Stats()
	if hits != 2 {
		t.Errorf("Expected 2 hits, got %d", hits)
	}
	if misses != 2 {
		t.Errorf("Expected 2 misses, got %d", misses)
	}
	if size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Add("a", "first")
	cache.Add("a", "second")

	value, found := cache.Get("a")
	if !found {
		t.Fatal("Expected to find key 'a'")
	}
	if value.(string) != "second" {
		t.Errorf("Expected updated value 'second', got %v", value)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected single entry after update, len %d", cache.Len())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", worker, j)
				cache.Add(key, j)
				cache.Get(key)
				cache.Contains(key)
			}
		}(i)
	}
	wg.Wait()

	// Cache should still be functional and bounded.
	cache.Add("test", "value")
	if _, found := cache.Get("test"); !found {
		t.Error("Cache should still work after concurrent access")
	}
	if cache.Len() > 100 {
		t.Errorf("Expected capacity to bound size, len %d", cache.Len())
	}
}

func TestLRUCache_DefaultsOnInvalidArgs(t *testing.T) {
	cache := NewLRUCache(0, 0)

	cache.Add("a", 1)
	if _, found := cache.Get("a"); !found {
		t.Error("Expected cache with defaulted capacity and TTL to work")
	}
}

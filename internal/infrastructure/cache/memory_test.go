package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/finsight/backend/internal/domain"
)

func testResult(category string) *domain.ClassificationResult {
	return &domain.ClassificationResult{
		Category:   category,
		Confidence: 0.84,
		Method:     domain.MethodRule,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	cache.Set("walmart", testResult("Groceries"))

	got, ok := cache.Get("walmart")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Category != "Groceries" {
		t.Errorf("Get() category = %s, want Groceries", got.Category)
	}
}

func TestMemoryCache_Get_Miss(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	if _, ok := cache.Get("non-existent-key"); ok {
		t.Error("Get() ok = true for missing key, want false")
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)

	cache.Set("shell", testResult("Transportation"))
	time.Sleep(10 * time.Millisecond)

	if _, ok := cache.Get("shell"); ok {
		t.Error("Get() ok = true after expiration, want false")
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewMemoryCache(0)

	cache.Set("walmart", testResult("Groceries"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := cache.Get("walmart"); !ok {
		t.Error("Get() ok = false with zero TTL, want true")
	}
}

func TestMemoryCache_Size(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 for empty cache", size)
	}

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("merchant-%d", i), testResult("Other"))
	}

	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d, want 5", size)
	}

	// Re-setting a key must not grow the cache
	cache.Set("merchant-0", testResult("Groceries"))
	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d after overwrite, want 5", size)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("merchant-%d", i), testResult("Other"))
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d after clear, want 0", size)
	}
	if _, ok := cache.Get("merchant-0"); ok {
		t.Error("Get() ok = true after clear, want false")
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(time.Minute)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("merchant-%d", id)
			cache.Set(key, testResult("Other"))
			if _, ok := cache.Get(key); !ok {
				t.Errorf("concurrent Get(%s) ok = false, want true", key)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if size := cache.Size(); size != 10 {
		t.Errorf("Size() = %d after concurrent writes, want 10", size)
	}
}

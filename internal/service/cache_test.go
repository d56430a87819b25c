package service

import (
	"testing"
	"time"
)

// TestCacheService_GetSet проверяет базовые операции Get/Set.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	if _, ok := cache.Get("XYZ"); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set("XYZ", "photos/file_1.jpg")
	got, ok := cache.Get("XYZ")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got != "photos/file_1.jpg" {
		t.Errorf("file_path = %q", got)
	}
}

// TestCacheService_Delete проверяет инвалидацию устаревшей ссылки.
func TestCacheService_Delete(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	cache.Set("stale", "documents/file_9.pdf")
	cache.Delete("stale")

	if _, ok := cache.Get("stale"); ok {
		t.Fatal("ожидался cache miss после Delete")
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	cache := NewCacheService(100, 50*time.Millisecond)

	cache.Set("ttl-test", "photos/file_2.jpg")
	if _, ok := cache.Get("ttl-test"); !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("ttl-test"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении maxSize.
func TestCacheService_Eviction(t *testing.T) {
	cache := NewCacheService(2, 5*time.Minute)

	cache.Set("r1", "p1")
	cache.Set("r2", "p2")
	cache.Set("r3", "p3")

	if _, ok := cache.Get("r1"); ok {
		t.Error("r1 должен быть вытеснен")
	}
	if _, ok := cache.Get("r3"); !ok {
		t.Error("ожидался cache hit для r3")
	}
}

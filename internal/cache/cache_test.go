package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestKeyForDeterministic(t *testing.T) {
	id := Identity{Name: "cv.pdf", Size: 42, MediaType: "application/pdf", Digest: Digest([]byte("abc"))}

	if KeyFor(id, "text-extraction") != KeyFor(id, "text-extraction") {
		t.Fatal("expected identical keys for identical inputs")
	}

	variants := []Identity{
		{Name: "other.pdf", Size: 42, MediaType: "application/pdf", Digest: id.Digest},
		{Name: "cv.pdf", Size: 43, MediaType: "application/pdf", Digest: id.Digest},
		{Name: "cv.pdf", Size: 42, MediaType: "image/png", Digest: id.Digest},
		{Name: "cv.pdf", Size: 42, MediaType: "application/pdf", Digest: Digest([]byte("abd"))},
	}
	for _, v := range variants {
		if KeyFor(v, "text-extraction") == KeyFor(id, "text-extraction") {
			t.Fatalf("expected different key for %+v", v)
		}
	}

	if KeyFor(id, "a") == KeyFor(id, "b") {
		t.Fatal("expected operation to participate in the key")
	}
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s := New(2)
	s.Put("a", "A", "direct-read")
	s.Put("b", "B", "direct-read")

	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected a to be present")
	}

	s.Put("c", "C", "direct-read")

	if _, ok := s.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	entry, ok := s.Get("a")
	if !ok || entry.Value != "A" || entry.Method != "direct-read" {
		t.Fatalf("unexpected entry for a: %+v ok=%v", entry, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after Clear, got %d", s.Len())
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New(16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := Key(fmt.Sprintf("k%d", (i+j)%20))
				s.Put(key, "v", "ocr")
				s.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 16 {
		t.Fatalf("ceiling exceeded: %d", s.Len())
	}
}

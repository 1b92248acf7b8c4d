package cache

import (
	"testing"
	"time"
)

func TestGetMiss(t *testing.T) {
	c := NewTTLCache[string, int]()
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("empty cache must miss")
	}
}

func TestSetGet(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %v, %v", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry must miss")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("zero TTL must not expire")
	}
}

func TestPurge(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Purge()
	if _, ok := c.Get("a"); ok {
		t.Fatalf("purge must drop every entry")
	}
}

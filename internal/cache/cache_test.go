package cache

import (
	"testing"
	"time"
)

func TestSetGetExpire(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.Set("k", "v", time.Minute)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v; want v, true", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired item still returned")
	}
	if len(c.items) != 0 {
		t.Errorf("expired item not removed, len=%d", len(c.items))
	}
}

func TestGetKeepsLiveItems(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.Set("short", "1", time.Second)
	c.Set("long", "2", time.Hour)
	now = now.Add(time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Errorf("short-lived item still returned")
	}
	if v, ok := c.Get("long"); !ok || v != "2" {
		t.Errorf("long-lived item was dropped")
	}
}

func TestKeySeparatesParts(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Errorf("keys of different part splits collide")
	}
	if Key("zh-CN", "hello") != Key("zh-CN", "hello") {
		t.Errorf("key is not stable")
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), Config{Address: mr.Addr(), TTL: time.Minute, Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedisCache error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v, err %v; want miss", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !mr.Exists("test:k") {
		t.Fatal("expected prefixed key in redis")
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get(k) = %q, %v, %v", got, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestJSONHelpers(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type entry struct {
		Title string
		Width int
	}
	in := &entry{Title: "video", Width: 480}
	if err := SetJSON(ctx, c, "e", in); err != nil {
		t.Fatalf("SetJSON error: %v", err)
	}
	out, ok, err := GetJSON[entry](ctx, c, "e")
	if err != nil || !ok {
		t.Fatalf("GetJSON = %v, %v", ok, err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := mr.Set("test:broken", "{not json"); err != nil {
		t.Fatalf("miniredis Set error: %v", err)
	}
	if _, ok, err := GetJSON[entry](ctx, c, "broken"); ok || err != nil {
		t.Fatalf("broken entry should be a miss, got ok=%v err=%v", ok, err)
	}
}

func TestNew_WithoutAddressIsNoop(t *testing.T) {
	c, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := c.(NoopCache); !ok {
		t.Fatalf("expected NoopCache, got %T", c)
	}
	if err := c.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Fatal("NoopCache must never hit")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisCache(context.Background(), Config{Address: addr}); err == nil {
		t.Fatal("expected connection error")
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func TestStoreJSONRoundTripAndMiss(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	var out map[string]int
	ok, err := s.GetJSON(ctx, "missing", &out)
	if err != nil || ok {
		t.Fatalf("miss should be ok=false err=nil, got %v %v", ok, err)
	}

	if err := s.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	ok, err = s.GetJSON(ctx, "k", &out)
	if err != nil || !ok || out["a"] != 1 {
		t.Fatalf("got %v %v %v", out, ok, err)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetBytes(ctx, "k"); ok {
		t.Fatal("key should have expired")
	}
}

func TestStoreDelPrefix(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"odds:nba:us", "odds:nfl:us", "opps:current:nba"} {
		if err := mr.Set(k, "x"); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.DelPrefix(ctx, "odds:")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if !mr.Exists("opps:current:nba") {
		t.Fatal("unrelated key removed")
	}
}

package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", RedisOptions{ClientName: "microlend-test", PoolSize: 4, OpTimeout: time.Second})
	if err != nil {
		t.Fatalf("new redis client: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected value in miniredis, got %q", got)
	}
}

func TestNewRedisClientRejectsEmptyURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "", RedisOptions{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestNewPostgresPoolRejectsBadURL(t *testing.T) {
	ctx := context.Background()
	if _, err := NewPostgresPool(ctx, "", PostgresOptions{}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewPostgresPool(ctx, "postgres://%zz", PostgresOptions{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisClient(context.Background(), "redis://"+addr+"/0", RedisOptions{OpTimeout: 100 * time.Millisecond}); err == nil {
		t.Fatal("expected ping failure")
	}
}

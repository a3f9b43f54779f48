package redis

// These tests need a real Redis because the single-use property rests on
// GETDEL and the expiry on the key TTL. Set TEST_REDIS_ADDR to run them.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"channelboard/api"
)

func testConnect(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	r, err := Connect(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRedis_IssueAndRedeem(t *testing.T) {
	r := testConnect(t)
	ctx := context.Background()

	token, err := r.Issue(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("Got an empty token")
	}

	telegramID, err := r.Redeem(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if telegramID != 7 {
		t.Errorf("Got telegram id %d, want 7", telegramID)
	}

	// A token is single use.
	if _, err := r.Redeem(ctx, token); !errors.Is(err, api.ErrTokenNotFound) {
		t.Errorf("Got error %v on second redemption, want api.ErrTokenNotFound", err)
	}
}

func TestRedis_Issue_setsExpiry(t *testing.T) {
	r := testConnect(t)
	ctx := context.Background()

	token, err := r.Issue(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _, _ = r.Redeem(ctx, token) })

	ttl, err := r.cli.TTL(ctx, fmt.Sprintf("%s:%s", tokenPrefix, token)).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > tokenTTL {
		t.Errorf("Got TTL %v, want in (0, %v]", ttl, tokenTTL)
	}
}

func TestRedis_Redeem_unknownToken(t *testing.T) {
	r := testConnect(t)

	if _, err := r.Redeem(context.Background(), "not-a-token"); !errors.Is(err, api.ErrTokenNotFound) {
		t.Errorf("Got error %v, want api.ErrTokenNotFound", err)
	}
}

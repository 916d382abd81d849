package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/2", false},
		{"valid-with-password", "redis://:secret@localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestOperations_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	c := NewFromClient(redis.NewClient(&redis.Options{
		Addr:        "localhost:59999",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	}))
	defer c.Close()
	ctx := t.Context()

	data, ok, err := c.GetBytes(ctx, "training:curriculum:c1")
	if err == nil {
		t.Fatal("GetBytes() should return error for unreachable host")
	}
	if ok || data != nil {
		t.Errorf("GetBytes() = %q, %v; want nil, false", data, ok)
	}
	if err := c.SetBytes(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("SetBytes() should return error for unreachable host")
	}
	if err := c.Delete(ctx, "k"); err == nil {
		t.Error("Delete() should return error for unreachable host")
	}
}

func TestDelete_NoKeys(t *testing.T) {
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: "localhost:59999"}))
	defer c.Close()

	if err := c.Delete(t.Context()); err != nil {
		t.Errorf("Delete() with no keys = %v, want nil", err)
	}
}

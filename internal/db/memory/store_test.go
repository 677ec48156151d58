package memory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/kailas-cloud/ragdex/internal/db"
)

func frozenStore(at time.Time) (*Store, *time.Time) {
	s := NewStore()
	now := at
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_GetSet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("value")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "value" {
		t.Errorf("unexpected read %q, %v", got, err)
	}
}

func TestStore_CopiesValues(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	in := []byte("original")
	if err := s.Set(ctx, "k", in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	in[0] = 'X'

	got, _ := s.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value must not alias the caller's slice, got %q", got)
	}
	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("returned value must not alias the stored slice, got %q", again)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s, now := frozenStore(time.Unix(1700000000, 0))
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Fatal("key must be live before expiry")
	}

	*now = now.Add(2 * time.Minute)
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("key must be gone after expiry")
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after expiry, got %v", err)
	}
}

func TestStore_SetKeepTTLPreservesExpiry(t *testing.T) {
	s, now := frozenStore(time.Unix(1700000000, 0))
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("old"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if err := s.SetKeepTTL(ctx, "k", []byte("new")); err != nil {
		t.Fatalf("SetKeepTTL: %v", err)
	}

	got, _ := s.Get(ctx, "k")
	if string(got) != "new" {
		t.Errorf("expected the new value, got %q", got)
	}

	*now = now.Add(2 * time.Minute)
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("the original expiry must still apply")
	}
}

func TestStore_SetKeepTTLOnFreshKey(t *testing.T) {
	s, now := frozenStore(time.Unix(1700000000, 0))
	ctx := context.Background()

	if err := s.SetKeepTTL(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("SetKeepTTL: %v", err)
	}
	*now = now.Add(24 * time.Hour)
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Error("a key written without a prior TTL must not expire")
	}
}

func TestStore_SetClearsTTL(t *testing.T) {
	s, now := frozenStore(time.Unix(1700000000, 0))
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	*now = now.Add(time.Hour)
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Error("a plain Set must drop the previous expiry")
	}
}

func TestStore_Del(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("key must be gone after delete")
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key must not error: %v", err)
	}
}

func TestStore_Scan(t *testing.T) {
	s, now := frozenStore(time.Unix(1700000000, 0))
	ctx := context.Background()

	for _, key := range []string{"app:emb:a", "app:emb:b", "app:res:c", "other:emb:d"} {
		if err := s.Set(ctx, key, []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := s.SetWithTTL(ctx, "app:emb:expired", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	*now = now.Add(time.Hour)

	keys, err := s.Scan(ctx, "app:emb:*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "app:emb:a" || keys[1] != "app:emb:b" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"exact", "exact", true},
		{"exact", "other", false},
		{"pre:*", "pre:anything", true},
		{"pre:*", "other:anything", false},
		{"pre:*:suf", "pre:mid:suf", true},
		{"pre:*:suf", "pre:mid:nope", false},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}

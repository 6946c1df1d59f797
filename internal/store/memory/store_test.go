package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/postwatch-io/postwatch/internal/monitor"
)

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	user := monitor.User{ID: "u1", Email: "Alice@Example.com", PasswordHash: "hash"}

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	err := store.CreateUser(ctx, monitor.User{ID: "u2", Email: "alice@example.COM"})
	if !errors.Is(err, monitor.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	got, err := store.UserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if got.ID != "u1" || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}

	byID, err := store.UserByID(ctx, "u1")
	if err != nil || byID.Email != "alice@example.com" {
		t.Fatalf("UserByID() = %+v, %v", byID, err)
	}
	if _, err := store.UserByID(ctx, "missing"); !errors.Is(err, monitor.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWebhookUpsert(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	if _, err := store.Webhook(ctx, "u1"); !errors.Is(err, monitor.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before set, got %v", err)
	}
	if err := store.SetWebhook(ctx, "u1", "https://hooks.example.com/a"); err != nil {
		t.Fatalf("SetWebhook() error = %v", err)
	}
	if err := store.SetWebhook(ctx, "u1", "https://hooks.example.com/b"); err != nil {
		t.Fatalf("SetWebhook() overwrite error = %v", err)
	}
	url, err := store.Webhook(ctx, "u1")
	if err != nil {
		t.Fatalf("Webhook() error = %v", err)
	}
	if url != "https://hooks.example.com/b" {
		t.Fatalf("expected upsert to overwrite, got %q", url)
	}
}

func TestAddIsIdempotentPerUser(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	added, err := store.Add(ctx, "u1", "https://fb.com/p/posts/1")
	if err != nil || !added {
		t.Fatalf("first Add() = %v, %v", added, err)
	}
	added, err = store.Add(ctx, "u1", "https://fb.com/p/posts/1")
	if err != nil || added {
		t.Fatalf("second Add() should report already present, got %v, %v", added, err)
	}
	// Same URL for a different user is independent.
	added, err = store.Add(ctx, "u2", "https://fb.com/p/posts/1")
	if err != nil || !added {
		t.Fatalf("Add() for other user = %v, %v", added, err)
	}

	urls, err := store.ListForUser(ctx, "u1")
	if err != nil || len(urls) != 1 {
		t.Fatalf("ListForUser() = %v, %v", urls, err)
	}
}

func TestRemoveIsSlashTolerant(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	if _, err := store.Add(ctx, "u1", "https://fb.com/p/posts/1"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	removed, err := store.Remove(ctx, "u1", "https://fb.com/p/posts/1/")
	if err != nil || !removed {
		t.Fatalf("slash-variant Remove() = %v, %v", removed, err)
	}

	if _, err := store.Add(ctx, "u1", "https://fb.com/p/posts/2/"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	removed, err = store.Remove(ctx, "u1", "https://fb.com/p/posts/2")
	if err != nil || !removed {
		t.Fatalf("stripped-slash Remove() = %v, %v", removed, err)
	}

	removed, err = store.Remove(ctx, "u1", "https://fb.com/p/posts/2")
	if err != nil || removed {
		t.Fatalf("Remove() of absent URL should be false, got %v, %v", removed, err)
	}
}

func TestAddDoesNotNormalizeSlashes(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	// Add is exact-match only: both slash variants can coexist.
	if added, _ := store.Add(ctx, "u1", "https://fb.com/p/posts/1"); !added {
		t.Fatal("expected first variant to be added")
	}
	if added, _ := store.Add(ctx, "u1", "https://fb.com/p/posts/1/"); !added {
		t.Fatal("expected slash variant to be tracked separately")
	}
	urls, _ := store.ListForUser(ctx, "u1")
	if len(urls) != 2 {
		t.Fatalf("expected both variants listed, got %v", urls)
	}
}

func TestListAllSpansUsers(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	_, _ = store.Add(ctx, "u1", "https://fb.com/a/posts/1")
	_, _ = store.Add(ctx, "u2", "https://fb.com/b/posts/2")

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pairs, got %v", all)
	}
}

func TestConcurrentAddRemove(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Add(ctx, "u1", "https://fb.com/p/posts/1")
			_, _ = store.Remove(ctx, "u1", "https://fb.com/p/posts/1")
		}()
	}
	wg.Wait()
}

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// openTestDB connects to INFOVAULT_TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("INFOVAULT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("INFOVAULT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Connect(ctx, DefaultConfig(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE documents"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/infovault")
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 {
		t.Errorf("unexpected pool sizes: %+v", cfg)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("unexpected lifetime: %v", cfg.ConnMaxLifetime)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	if schema == "" {
		t.Fatal("schema.sql not embedded")
	}
}

func TestLockKey_Stable(t *testing.T) {
	if lockKey("sweep:drive") != lockKey("sweep:drive") {
		t.Error("lock key is not deterministic")
	}
	if lockKey("sweep:drive") == lockKey("sweep:gmail") {
		t.Error("distinct names collided")
	}
}

func TestDocumentStore_Integration(t *testing.T) {
	db := openTestDB(t)
	store := NewDocumentStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, name := range []string{"a.txt", "b.pdf"} {
		id := "doc-" + name
		err := store.Save(ctx, &domain.Document{
			DocumentMetadata: domain.DocumentMetadata{
				ID: id, StorageKey: domain.StorageKey(id, name), Filename: name, ContentType: "text/plain",
			},
			SizeBytes: 10,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}

	err := store.Save(ctx, &domain.Document{DocumentMetadata: domain.DocumentMetadata{ID: "doc-a.txt", StorageKey: "other", Filename: "a.txt"}})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	exists, err := store.ExistsByFilename(ctx, "b.pdf")
	if err != nil || !exists {
		t.Errorf("expected b.pdf to exist: %v %v", exists, err)
	}

	docs, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].Filename != "b.pdf" {
		t.Errorf("unexpected list order: %+v", docs)
	}

	if err := store.Delete(ctx, "doc-a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "doc-a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "doc-a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestAdvisoryLock_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := NewAdvisoryLock(db)
	b := NewAdvisoryLock(db)

	ok, err := a.Acquire(ctx, "sweep:drive", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire, got %v %v", ok, err)
	}
	if ok, _ := b.Acquire(ctx, "sweep:drive", time.Minute); ok {
		t.Error("second instance must not acquire a held lock")
	}
	if err := a.Extend(ctx, "sweep:drive", time.Minute); err != nil {
		t.Errorf("extend: %v", err)
	}
	if err := b.Extend(ctx, "sweep:drive", time.Minute); err == nil {
		t.Error("extend without holding must fail")
	}
	if err := a.Release(ctx, "sweep:drive"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = b.Acquire(ctx, "sweep:drive", time.Minute)
	if err != nil || !ok {
		t.Errorf("expected acquire after release, got %v %v", ok, err)
	}
	_ = b.Release(ctx, "sweep:drive")
}

package mongo

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"testing"
	"time"

	"gobarber/backend/internal/domain"
)

func TestMongoIntegration_CreateAndListNotifications(t *testing.T) {
	uri := strings.TrimSpace(os.Getenv("GOBARBER_TEST_MONGO_URI"))
	if uri == "" {
		t.Skip("GOBARBER_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	t.Cleanup(func() {
		_ = Disconnect(context.Background(), client)
	})

	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	db := client.Database("gobarber_test_" + hex.EncodeToString(b))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
	})

	repo := NewNotificationRepo(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes error: %v", err)
	}

	first, err := repo.Create(ctx, domain.Notification{Content: "primeiro", UserID: 7})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if first.ID == "" || first.Read || first.CreatedAt.IsZero() {
		t.Fatalf("created = %+v", first)
	}
	if _, err := repo.Create(ctx, domain.Notification{Content: "segundo", UserID: 7, CreatedAt: first.CreatedAt.Add(time.Minute)}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := repo.Create(ctx, domain.Notification{Content: "outro", UserID: 8}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rows, err := repo.ListByUser(ctx, 7, 10)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Content != "segundo" || rows[1].Content != "primeiro" {
		t.Fatalf("order = %q, %q", rows[0].Content, rows[1].Content)
	}
}

package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coursemind/api/internal/config"
)

func testObjectStore(t *testing.T) *ObjectStore {
	t.Helper()
	store, err := NewObjectStore(&config.StorageConfig{
		AccountID:       "test-account",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      "course-content",
	})
	if err != nil {
		t.Fatalf("NewObjectStore failed: %v", err)
	}
	return store
}

func TestObjectStoreRejectsIncompleteConfig(t *testing.T) {
	if _, err := NewObjectStore(&config.StorageConfig{BucketName: "course-content"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestGetSignedURLDefaultExpiry(t *testing.T) {
	store := testObjectStore(t)

	// Presigning is local; no request is made.
	url, err := store.GetSignedURL(context.Background(), "content/u1/f1/notes.pdf", 0)
	if err != nil {
		t.Fatalf("GetSignedURL failed: %v", err)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("expected default 15m expiry in %s", url)
	}
}

func TestGetSignedURLExplicitExpiry(t *testing.T) {
	store := testObjectStore(t)

	url, err := store.GetSignedURL(context.Background(), "content/u1/f1/notes.pdf", 5*time.Minute)
	if err != nil {
		t.Fatalf("GetSignedURL failed: %v", err)
	}
	if !strings.Contains(url, "X-Amz-Expires=300") {
		t.Errorf("expected 5m expiry in %s", url)
	}
}

func TestGetPublicURLFallsBackToBucketEndpoint(t *testing.T) {
	store := testObjectStore(t)

	got := store.GetPublicURL("content/u1/f1/notes.pdf")
	if !strings.Contains(got, "course-content") || !strings.HasSuffix(got, "/content/u1/f1/notes.pdf") {
		t.Errorf("unexpected public URL %s", got)
	}
}

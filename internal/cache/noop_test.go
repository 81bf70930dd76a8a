package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestNoOpCache verifies that NoOpCache implements the Cache interface correctly.
func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	ctx := context.Background()
	key := Key{TenantID: uuid.New(), Query: "hello", Limit: 10, ScoreThreshold: 0.5}

	results, err := c.GetSearchResults(ctx, key)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results (cache miss), got %v", results)
	}

	err = c.SetSearchResults(ctx, key, []Result{{Text: "x"}}, time.Hour)
	if err != nil {
		t.Errorf("expected no error on SetSearchResults, got %v", err)
	}

	results, err = c.GetSearchResults(ctx, key)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results (no-op cache doesn't store), got %v", results)
	}

	if err := c.InvalidateDocument(ctx, key.TenantID, uuid.New()); err != nil {
		t.Errorf("expected no error on InvalidateDocument, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("expected no error on Close, got %v", err)
	}
}

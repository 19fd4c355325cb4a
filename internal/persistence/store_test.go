package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations;`).Scan(&count); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one schema_migrations row, got %d", count)
	}
}

func TestCallbackDeliveryLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{
			name: "enqueue then appears in due callbacks",
			fn: func(t *testing.T) {
				id, err := store.EnqueueCallback(ctx, "batch-1", "https://example.test/cb", `{"results":[]}`, 5)
				if err != nil {
					t.Fatalf("EnqueueCallback: %v", err)
				}
				due, err := store.DueCallbacks(ctx, 10)
				if err != nil {
					t.Fatalf("DueCallbacks: %v", err)
				}
				found := false
				for _, d := range due {
					if d.ID == id {
						found = true
						if d.Status != CallbackStatusPending {
							t.Errorf("expected pending status, got %s", d.Status)
						}
					}
				}
				if !found {
					t.Errorf("enqueued callback %d not found in DueCallbacks", id)
				}
			},
		},
		{
			name: "mark delivered removes it from due callbacks",
			fn: func(t *testing.T) {
				id, err := store.EnqueueCallback(ctx, "batch-2", "https://example.test/cb", `{}`, 5)
				if err != nil {
					t.Fatalf("EnqueueCallback: %v", err)
				}
				if err := store.MarkDelivered(ctx, id); err != nil {
					t.Fatalf("MarkDelivered: %v", err)
				}
				due, err := store.DueCallbacks(ctx, 100)
				if err != nil {
					t.Fatalf("DueCallbacks: %v", err)
				}
				for _, d := range due {
					if d.ID == id {
						t.Errorf("delivered callback %d still due", id)
					}
				}
			},
		},
		{
			name: "record failure backs off and eventually dead-letters",
			fn: func(t *testing.T) {
				id, err := store.EnqueueCallback(ctx, "batch-3", "https://example.test/cb", `{}`, 2)
				if err != nil {
					t.Fatalf("EnqueueCallback: %v", err)
				}
				if err := store.RecordFailure(ctx, id, time.Second, errors.New("connection refused")); err != nil {
					t.Fatalf("RecordFailure (1st): %v", err)
				}
				var status CallbackStatus
				var attempt int
				if err := store.DB().QueryRowContext(ctx, `SELECT status, attempt FROM callback_deliveries WHERE id = ?;`, id).Scan(&status, &attempt); err != nil {
					t.Fatalf("query after 1st failure: %v", err)
				}
				if status != CallbackStatusPending || attempt != 1 {
					t.Errorf("after 1st failure: status=%s attempt=%d, want pending/1", status, attempt)
				}

				if err := store.RecordFailure(ctx, id, time.Second, errors.New("connection refused")); err != nil {
					t.Fatalf("RecordFailure (2nd): %v", err)
				}
				if err := store.DB().QueryRowContext(ctx, `SELECT status, attempt FROM callback_deliveries WHERE id = ?;`, id).Scan(&status, &attempt); err != nil {
					t.Fatalf("query after 2nd failure: %v", err)
				}
				if status != CallbackStatusDeadLetter || attempt != 2 {
					t.Errorf("after 2nd failure: status=%s attempt=%d, want dead_letter/2", status, attempt)
				}
			},
		},
		{
			name: "record failure on unknown id errors",
			fn: func(t *testing.T) {
				if err := store.RecordFailure(ctx, 999999, time.Second, errors.New("boom")); err == nil {
					t.Errorf("expected error for unknown callback id")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, tc.fn)
	}
}

func TestBackoffForCapsAtCeiling(t *testing.T) {
	base := time.Second
	d := backoffFor(base, 20)
	if d > 30*time.Minute {
		t.Errorf("backoffFor did not cap: got %s", d)
	}
	if d != 30*time.Minute {
		t.Errorf("expected backoff to saturate at ceiling for large attempt count, got %s", d)
	}
}
